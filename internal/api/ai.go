package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type generateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type suggestRequest struct {
	CurrentNodes []map[string]any `json:"currentNodes" validate:"required"`
	SelectedNode map[string]any   `json:"selectedNode"`
}

func (s *Server) registerAI(g *echo.Group) {
	g.POST("/generate-workflow", s.GenerateWorkflow)
	g.POST("/suggest-next", s.SuggestNext)
}

// GenerateWorkflow drafts a workflow from a natural-language prompt
// (POST /api/ai/generate-workflow)
func (s *Server) GenerateWorkflow(c echo.Context) error {
	var req generateRequest
	if err := bind(c, &req, "Prompt is required"); err != nil {
		return err
	}
	generated, err := s.AI.GenerateWorkflow(c.Request().Context(), req.Prompt)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, generated)
}

// SuggestNext proposes the next nodes for a workflow
// (POST /api/ai/suggest-next)
func (s *Server) SuggestNext(c echo.Context) error {
	var req suggestRequest
	if err := bind(c, &req, "currentNodes is required"); err != nil {
		return err
	}
	suggestions, err := s.AI.SuggestNext(c.Request().Context(), req.CurrentNodes, req.SelectedNode)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"suggestions": suggestions})
}
