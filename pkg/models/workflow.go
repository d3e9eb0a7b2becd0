package models

import (
	"time"
)

// Node is an opaque graph node document. Only its "id" key carries meaning
// outside the editor that produced it.
type Node = map[string]any

// Edge is an opaque graph edge document referencing node ids through its
// "source" and "target" keys.
type Edge = map[string]any

// Workflow represents a user-built automation pipeline: a named graph of nodes and edges.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Nodes       []Node    `json:"nodes"`
	Edges       []Edge    `json:"edges"`
	RPCEndpoint string    `json:"rpcEndpoint"`
	Owner       string    `json:"owner,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Summary returns the list view of the workflow.
func (w *Workflow) Summary() WorkflowSummary {
	return WorkflowSummary{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		NodeCount:   len(w.Nodes),
		EdgeCount:   len(w.Edges),
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

// Clone returns a deep copy so stored records never alias caller memory.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.Nodes = cloneDocs(w.Nodes)
	out.Edges = cloneDocs(w.Edges)
	return &out
}

// WorkflowSummary is the list representation of a workflow, without node and edge payloads.
type WorkflowSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	NodeCount   int       `json:"nodeCount"`
	EdgeCount   int       `json:"edgeCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateWorkflowInput is the body accepted when creating a workflow.
type CreateWorkflowInput struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=500"`
	Nodes       []Node `json:"nodes" validate:"required"`
	Edges       []Edge `json:"edges" validate:"required"`
	RPCEndpoint string `json:"rpcEndpoint" validate:"omitempty,url"`
}

// UpdateWorkflowInput carries a partial update; nil fields are left untouched.
type UpdateWorkflowInput struct {
	Name        *string `json:"name" validate:"omitnil,min=1,max=100"`
	Description *string `json:"description" validate:"omitnil,max=500"`
	Nodes       *[]Node `json:"nodes"`
	Edges       *[]Edge `json:"edges"`
	RPCEndpoint *string `json:"rpcEndpoint" validate:"omitnil,omitempty,url"`
}

// ValidationResult reports the structural checks of a workflow graph.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func cloneDocs(in []map[string]any) []map[string]any {
	if in == nil {
		return nil
	}
	out := make([]map[string]any, len(in))
	for i, doc := range in {
		out[i] = cloneValue(doc).(map[string]any)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return t
		}
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		if t == nil {
			return t
		}
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}
