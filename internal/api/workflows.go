package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"solflow/backend/internal/services"
	"solflow/backend/pkg/models"
)

var _ ServerInterface = (*Server)(nil)

// WorkflowList is the response of ListWorkflows.
type WorkflowList struct {
	Workflows []models.WorkflowSummary `json:"workflows"`
	Total     int                      `json:"total"`
}

func owner(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ListWorkflows returns workflow summaries, filtered by owner when the header is set
// (GET /api/workflows)
func (s *Server) ListWorkflows(c echo.Context, params ListWorkflowsParams) error {
	summaries, err := s.Workflows.List(c.Request().Context(), owner(params.XWalletAddress))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, WorkflowList{Workflows: summaries, Total: len(summaries)})
}

// CreateWorkflow stores a new workflow
// (POST /api/workflows)
func (s *Server) CreateWorkflow(c echo.Context, params CreateWorkflowParams) error {
	var input models.CreateWorkflowInput
	if err := bind(c, &input, "Validation failed"); err != nil {
		return err
	}
	workflow, err := s.Workflows.Create(c.Request().Context(), input, owner(params.XWalletAddress))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, workflow)
}

// ValidateWorkflow checks edge/node referential integrity without storing anything
// (POST /api/workflows/validate)
// Any well-formed JSON body is accepted; a body that is not an object has neither nodes nor edges.
func (s *Server) ValidateWorkflow(c echo.Context) error {
	var body any
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return bindFailure(err)
	}
	var nodes, edges any
	if doc, ok := body.(map[string]any); ok {
		nodes, edges = doc["nodes"], doc["edges"]
	}
	return c.JSON(http.StatusOK, services.ValidateStructure(nodes, edges))
}

// GetWorkflow returns one workflow
// (GET /api/workflows/:id)
func (s *Server) GetWorkflow(c echo.Context, id string) error {
	workflow, err := s.Workflows.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workflow)
}

// UpdateWorkflow merges a partial update
// (PUT /api/workflows/:id)
func (s *Server) UpdateWorkflow(c echo.Context, id string, params UpdateWorkflowParams) error {
	var input models.UpdateWorkflowInput
	if err := bind(c, &input, "Validation failed"); err != nil {
		return err
	}
	workflow, err := s.Workflows.Update(c.Request().Context(), id, input, owner(params.XWalletAddress))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workflow)
}

// DeleteWorkflow removes a workflow
// (DELETE /api/workflows/:id)
func (s *Server) DeleteWorkflow(c echo.Context, id string, params DeleteWorkflowParams) error {
	if err := s.Workflows.Delete(c.Request().Context(), id, owner(params.XWalletAddress)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
