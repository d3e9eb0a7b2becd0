package repository

import (
	"context"
	"errors"

	"solflow/backend/pkg/models"
)

var (
	// ErrNotFound is returned when no record exists for the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned when inserting a record whose id is already stored.
	ErrDuplicateID = errors.New("duplicate id")
)

// WorkflowStore persists workflow graphs. Implementations must be safe for concurrent use.
type WorkflowStore interface {
	// CreateWorkflow inserts a new workflow.
	CreateWorkflow(ctx context.Context, workflow *models.Workflow) error
	// GetWorkflow retrieves a workflow by its ID.
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	// ListWorkflows returns workflows in insertion order, restricted to the
	// given owner unless owner is empty.
	ListWorkflows(ctx context.Context, owner string) ([]*models.Workflow, error)
	// UpdateWorkflow replaces an existing workflow.
	UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error
	// DeleteWorkflow removes a workflow.
	DeleteWorkflow(ctx context.Context, id string) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// PaymentStore keeps payment intents.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]*models.Payment, error)
}
