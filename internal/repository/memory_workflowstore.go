package repository

import (
	"context"
	"sync"

	"solflow/backend/pkg/models"
)

// MemoryWorkflowStore is an in-process WorkflowStore. Records are copied on the
// way in and out so callers never share memory with the store.
type MemoryWorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]*models.Workflow
	order     []string
}

// NewMemoryWorkflowStore creates an empty MemoryWorkflowStore.
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{workflows: make(map[string]*models.Workflow)}
}

// CreateWorkflow inserts a new workflow.
func (s *MemoryWorkflowStore) CreateWorkflow(_ context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[workflow.ID]; exists {
		return ErrDuplicateID
	}
	s.workflows[workflow.ID] = workflow.Clone()
	s.order = append(s.order, workflow.ID)
	return nil
}

// GetWorkflow retrieves a workflow by its ID.
func (s *MemoryWorkflowStore) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflow, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return workflow.Clone(), nil
}

// ListWorkflows returns a snapshot of the stored workflows in insertion order.
func (s *MemoryWorkflowStore) ListWorkflows(_ context.Context, owner string) ([]*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(s.order))
	for _, id := range s.order {
		workflow := s.workflows[id]
		if owner != "" && workflow.Owner != owner {
			continue
		}
		workflows = append(workflows, workflow.Clone())
	}
	return workflows, nil
}

// UpdateWorkflow replaces an existing workflow, keeping its list position.
func (s *MemoryWorkflowStore) UpdateWorkflow(_ context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[workflow.ID]; !ok {
		return ErrNotFound
	}
	s.workflows[workflow.ID] = workflow.Clone()
	return nil
}

// DeleteWorkflow removes a workflow.
func (s *MemoryWorkflowStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(s.workflows, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryWorkflowStore) Ping(context.Context) error { return nil }
