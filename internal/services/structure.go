package services

import (
	"encoding/json"
	"fmt"

	"solflow/backend/pkg/models"
)

// ValidateStructure checks that nodes and edges are sequences and that every
// edge endpoint names a node id. It never fails on malformed input and does
// not touch any store.
func ValidateStructure(nodes, edges any) models.ValidationResult {
	result := models.ValidationResult{Errors: []string{}, Warnings: []string{}}

	nodeList, nodesOK := asSequence(nodes)
	edgeList, edgesOK := asSequence(edges)
	if !nodesOK {
		result.Errors = append(result.Errors, "nodes must be an array")
	}
	if !edgesOK {
		result.Errors = append(result.Errors, "edges must be an array")
	}

	if nodesOK && edgesOK {
		ids := make(map[string]struct{}, len(nodeList))
		for _, n := range nodeList {
			ids[idKey(field(n, "id"))] = struct{}{}
		}
		for _, e := range edgeList {
			source, target := field(e, "source"), field(e, "target")
			if _, ok := ids[idKey(source)]; !ok {
				result.Errors = append(result.Errors, "Edge references non-existent source node: "+idText(source))
			}
			if _, ok := ids[idKey(target)]; !ok {
				result.Errors = append(result.Errors, "Edge references non-existent target node: "+idText(target))
			}
		}
		if len(nodeList) == 0 {
			result.Warnings = append(result.Warnings, "Workflow has no nodes")
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// missing marks an absent id, source or target field.
type missing struct{}

func asSequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

func field(doc any, key string) any {
	m, ok := doc.(map[string]any)
	if !ok {
		return missing{}
	}
	v, ok := m[key]
	if !ok {
		return missing{}
	}
	return v
}

// idKey renders an id so that values of different JSON types never collide.
func idKey(v any) string {
	switch t := v.(type) {
	case missing:
		return "m:"
	case string:
		return "s:" + t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("x:%v", t)
		}
		return "j:" + string(b)
	}
}

func idText(v any) string {
	switch t := v.(type) {
	case missing:
		return "<missing>"
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
