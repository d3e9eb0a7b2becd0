package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"solflow/backend/internal/apperror"
	"solflow/backend/internal/logging"
	"solflow/backend/internal/repository"
	"solflow/backend/pkg/models"
)

// Limits bounds the size of a stored graph.
type Limits struct {
	MaxNodes int
	MaxEdges int
}

// DefaultLimits are applied when no limits are configured.
var DefaultLimits = Limits{MaxNodes: 100, MaxEdges: 200}

// WorkflowService manages workflow graphs on top of a WorkflowStore.
type WorkflowService struct {
	store    repository.WorkflowStore
	validate *validator.Validate
	limits   Limits
	logger   *logging.Logger
	now      func() time.Time
}

// WorkflowOption configures a WorkflowService.
type WorkflowOption func(*WorkflowService)

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) WorkflowOption {
	return func(s *WorkflowService) { s.now = now }
}

// WithLimits overrides the node and edge count bounds.
func WithLimits(limits Limits) WorkflowOption {
	return func(s *WorkflowService) {
		if limits.MaxNodes > 0 {
			s.limits.MaxNodes = limits.MaxNodes
		}
		if limits.MaxEdges > 0 {
			s.limits.MaxEdges = limits.MaxEdges
		}
	}
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(store repository.WorkflowStore, logger *logging.Logger, opts ...WorkflowOption) *WorkflowService {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &WorkflowService{
		store:    store,
		validate: NewValidator(),
		limits:   DefaultLimits,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new workflow owned by owner, which may be empty.
// The graph is stored as given; see ValidateStructure for integrity checks.
func (s *WorkflowService) Create(ctx context.Context, input models.CreateWorkflowInput, owner string) (*models.Workflow, error) {
	if err := checkStruct(s.validate, input, "Validation failed"); err != nil {
		return nil, err
	}
	if err := s.checkCounts(len(input.Nodes), len(input.Edges)); err != nil {
		return nil, err
	}

	now := s.now()
	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Description: input.Description,
		Nodes:       input.Nodes,
		Edges:       input.Edges,
		RPCEndpoint: input.RPCEndpoint,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateWorkflow(ctx, workflow); err != nil {
		return nil, apperror.Internal("Failed to create workflow", err)
	}
	s.logger.Debug("workflow created", "id", workflow.ID, "owner", owner)
	return workflow, nil
}

// Get returns the workflow with the given id. Reads are not owner-restricted.
func (s *WorkflowService) Get(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, storeError(err, "Failed to get workflow")
	}
	return workflow, nil
}

// List returns workflow summaries in insertion order, restricted to owner when it is non-empty.
func (s *WorkflowService) List(ctx context.Context, owner string) ([]models.WorkflowSummary, error) {
	workflows, err := s.store.ListWorkflows(ctx, owner)
	if err != nil {
		return nil, apperror.Internal("Failed to list workflows", err)
	}
	summaries := make([]models.WorkflowSummary, 0, len(workflows))
	for _, w := range workflows {
		summaries = append(summaries, w.Summary())
	}
	return summaries, nil
}

// Update merges the fields present in input into an existing workflow.
func (s *WorkflowService) Update(ctx context.Context, id string, input models.UpdateWorkflowInput, requester string) (*models.Workflow, error) {
	if err := checkStruct(s.validate, input, "Validation failed"); err != nil {
		return nil, err
	}

	existing, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, storeError(err, "Failed to get workflow")
	}
	if !mayMutate(existing, requester) {
		return nil, apperror.Forbidden("Not authorized to update this workflow")
	}

	updated := existing.Clone()
	if input.Name != nil {
		updated.Name = *input.Name
	}
	if input.Description != nil {
		updated.Description = *input.Description
	}
	if input.Nodes != nil {
		updated.Nodes = *input.Nodes
	}
	if input.Edges != nil {
		updated.Edges = *input.Edges
	}
	if input.RPCEndpoint != nil {
		updated.RPCEndpoint = *input.RPCEndpoint
	}
	if updated.Nodes == nil {
		updated.Nodes = []models.Node{}
	}
	if updated.Edges == nil {
		updated.Edges = []models.Edge{}
	}
	if err := s.checkCounts(len(updated.Nodes), len(updated.Edges)); err != nil {
		return nil, err
	}

	updated.UpdatedAt = s.now()
	if updated.UpdatedAt.Before(existing.UpdatedAt) {
		updated.UpdatedAt = existing.UpdatedAt
	}

	if err := s.store.UpdateWorkflow(ctx, updated); err != nil {
		return nil, storeError(err, "Failed to update workflow")
	}
	return updated, nil
}

// Delete removes a workflow.
func (s *WorkflowService) Delete(ctx context.Context, id string, requester string) error {
	existing, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return storeError(err, "Failed to get workflow")
	}
	if !mayMutate(existing, requester) {
		return apperror.Forbidden("Not authorized to delete this workflow")
	}
	if err := s.store.DeleteWorkflow(ctx, id); err != nil {
		return storeError(err, "Failed to delete workflow")
	}
	s.logger.Debug("workflow deleted", "id", id)
	return nil
}

// Ping checks that the underlying store is reachable.
func (s *WorkflowService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *WorkflowService) checkCounts(nodes, edges int) error {
	var fields []apperror.FieldError
	if nodes > s.limits.MaxNodes {
		fields = append(fields, apperror.FieldError{Path: "nodes", Message: fmt.Sprintf("must contain at most %d items", s.limits.MaxNodes)})
	}
	if edges > s.limits.MaxEdges {
		fields = append(fields, apperror.FieldError{Path: "edges", Message: fmt.Sprintf("must contain at most %d items", s.limits.MaxEdges)})
	}
	if len(fields) > 0 {
		return apperror.Validation("Validation failed", fields...)
	}
	return nil
}

// mayMutate reports whether requester passes the owner gate of w.
func mayMutate(w *models.Workflow, requester string) bool {
	return w.Owner == "" || w.Owner == requester
}

func storeError(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("Workflow not found")
	}
	return apperror.Internal(message, err)
}
