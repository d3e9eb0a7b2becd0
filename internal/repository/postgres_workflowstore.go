package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"solflow/backend/pkg/models"
)

const workflowSchema = `
CREATE TABLE IF NOT EXISTS workflows (
	seq          BIGSERIAL,
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	nodes        JSONB NOT NULL DEFAULT '[]',
	edges        JSONB NOT NULL DEFAULT '[]',
	rpc_endpoint TEXT NOT NULL DEFAULT '',
	owner        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS workflows_owner_idx ON workflows (owner);
`

const workflowColumns = "id, name, description, nodes, edges, rpc_endpoint, owner, created_at, updated_at"

// PostgresWorkflowStore is a PostgreSQL implementation of the WorkflowStore interface.
type PostgresWorkflowStore struct {
	db *pgxpool.Pool
}

// NewPostgresWorkflowStore creates a new PostgresWorkflowStore.
func NewPostgresWorkflowStore(db *pgxpool.Pool) *PostgresWorkflowStore {
	return &PostgresWorkflowStore{db: db}
}

// EnsureSchema creates the workflows table when it does not exist yet.
func (s *PostgresWorkflowStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, workflowSchema); err != nil {
		return fmt.Errorf("create workflows schema: %w", err)
	}
	return nil
}

// CreateWorkflow inserts a new workflow.
func (s *PostgresWorkflowStore) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	nodes, edges, err := marshalGraph(workflow)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		"INSERT INTO workflows ("+workflowColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		workflow.ID, workflow.Name, workflow.Description, nodes, edges,
		workflow.RPCEndpoint, workflow.Owner, workflow.CreatedAt, workflow.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by its ID.
func (s *PostgresWorkflowStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	row := s.db.QueryRow(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE id = $1", id)
	workflow, err := scanWorkflow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return workflow, nil
}

// ListWorkflows returns workflows in insertion order.
func (s *PostgresWorkflowStore) ListWorkflows(ctx context.Context, owner string) ([]*models.Workflow, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE ($1 = '' OR owner = $1) ORDER BY seq", owner)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	workflows := []*models.Workflow{}
	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, workflow)
	}
	return workflows, rows.Err()
}

// UpdateWorkflow replaces the mutable columns of an existing workflow.
func (s *PostgresWorkflowStore) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	nodes, edges, err := marshalGraph(workflow)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE workflows SET name = $2, description = $3, nodes = $4, edges = $5, rpc_endpoint = $6, updated_at = $7
		 WHERE id = $1`,
		workflow.ID, workflow.Name, workflow.Description, nodes, edges, workflow.RPCEndpoint, workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWorkflow removes a workflow.
func (s *PostgresWorkflowStore) DeleteWorkflow(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the database connection.
func (s *PostgresWorkflowStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func marshalGraph(workflow *models.Workflow) ([]byte, []byte, error) {
	nodes := workflow.Nodes
	if nodes == nil {
		nodes = []models.Node{}
	}
	edges := workflow.Edges
	if edges == nil {
		edges = []models.Edge{}
	}
	nodesJSON, err := json.Marshal(nodes)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal nodes: %w", err)
	}
	edgesJSON, err := json.Marshal(edges)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal edges: %w", err)
	}
	return nodesJSON, edgesJSON, nil
}

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var (
		workflow     models.Workflow
		nodes, edges []byte
	)
	err := row.Scan(&workflow.ID, &workflow.Name, &workflow.Description, &nodes, &edges,
		&workflow.RPCEndpoint, &workflow.Owner, &workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(nodes, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("decode nodes of %s: %w", workflow.ID, err)
	}
	if err := json.Unmarshal(edges, &workflow.Edges); err != nil {
		return nil, fmt.Errorf("decode edges of %s: %w", workflow.ID, err)
	}
	return &workflow, nil
}
