package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"solflow/backend/internal/apperror"
	"solflow/backend/internal/logging"
)

const workflowSystemPrompt = `You are a Solana workflow builder AI. Given a user's request, generate a workflow using the available node types.

Available node types and their purposes:
- rpc-connection: Connect to Solana RPC
- get-balance: Get SOL balance of an account
- wallet-connect: Get connected wallet's public key
- get-token-accounts: Get token accounts for an owner
- get-token-balance: Get balance of specific token
- transfer-sol: Create SOL transfer instruction
- transfer-token: Create token transfer instruction
- create-transaction: Create new transaction
- send-transaction: Send transaction to blockchain
- math-add/subtract/multiply/divide: Math operations
- lamports-to-sol, sol-to-lamports: Conversions
- logic-compare, logic-and, logic-or: Logic operations
- input-string, input-number, input-publickey: Input values
- output-display: Display results
- loop-for-each, loop-repeat, loop-range: Loop operations
- bags-bonding-curve: Check Bags.fm bonding curve
- bags-migration-check: Check migration readiness
- bags-token-info: Get Bags token info

Respond ONLY with a JSON object in this exact format:
{
  "nodes": [
    {
      "type": "node-type",
      "label": "Node Label",
      "position": { "x": 100, "y": 100 },
      "values": { "inputKey": "value" }
    }
  ],
  "edges": [
    {
      "sourceIndex": 0,
      "targetIndex": 1,
      "sourceHandle": "outputId",
      "targetHandle": "inputId"
    }
  ]
}

Rules:
- Space nodes horizontally (x += 250) and vertically (y varies by flow)
- Connect nodes logically based on data flow
- Use appropriate node types for the task
- Include necessary input nodes for user-provided values`

const generatedWorkflowSchema = `{
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string", "minLength": 1},
          "label": {"type": "string"},
          "position": {
            "type": "object",
            "properties": {"x": {"type": "number"}, "y": {"type": "number"}}
          },
          "values": {"type": "object"}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["sourceIndex", "targetIndex"],
        "properties": {
          "sourceIndex": {"type": "integer", "minimum": 0},
          "targetIndex": {"type": "integer", "minimum": 0},
          "sourceHandle": {"type": "string"},
          "targetHandle": {"type": "string"}
        }
      }
    }
  }
}`

var (
	firstObject = regexp.MustCompile(`(?s)\{.*\}`)
	firstArray  = regexp.MustCompile(`(?s)\[.*\]`)
)

// Suggestion is a proposed next node.
type Suggestion struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// GeneratedWorkflow is a workflow drafted from a prompt.
type GeneratedWorkflow struct {
	Workflow map[string]any `json:"workflow"`
	Prompt   string         `json:"prompt"`
	Model    string         `json:"model"`
}

// AIService drafts workflows and node suggestions with a completion model.
type AIService struct {
	completer    Completer
	model        string
	suggestModel string
	schema       *jsonschema.Schema
	logger       *logging.Logger
}

// NewAIService creates a new AIService.
func NewAIService(completer Completer, model, suggestModel string, logger *logging.Logger) (*AIService, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("workflow.json", strings.NewReader(generatedWorkflowSchema)); err != nil {
		return nil, fmt.Errorf("add workflow schema: %w", err)
	}
	schema, err := compiler.Compile("workflow.json")
	if err != nil {
		return nil, fmt.Errorf("compile workflow schema: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AIService{
		completer:    completer,
		model:        model,
		suggestModel: suggestModel,
		schema:       schema,
		logger:       logger,
	}, nil
}

// GenerateWorkflow asks the model for a workflow matching prompt. The first
// JSON object in the reply is parsed and checked against the node/edge schema.
func (s *AIService) GenerateWorkflow(ctx context.Context, prompt string) (*GeneratedWorkflow, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apperror.Validation("Prompt is required")
	}

	content, err := s.completer.Complete(ctx, CompletionRequest{
		Model:       s.model,
		System:      workflowSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, s.completionError(err, "Failed to generate workflow")
	}

	match := firstObject.FindString(content)
	if match == "" {
		return nil, apperror.Remote(http.StatusInternalServerError, "AI response is not valid JSON", errors.New("no JSON object in completion"))
	}
	var doc any
	if err := json.Unmarshal([]byte(match), &doc); err != nil {
		return nil, apperror.Remote(http.StatusInternalServerError, "AI response is not valid JSON", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		s.logger.Warn("generated workflow rejected", "error", err)
		return nil, apperror.Remote(http.StatusInternalServerError, "AI response does not match the workflow schema", err)
	}

	return &GeneratedWorkflow{Workflow: doc.(map[string]any), Prompt: prompt, Model: s.model}, nil
}

// SuggestNext proposes nodes to add after selected. A reply without a JSON
// array yields no suggestions.
func (s *AIService) SuggestNext(ctx context.Context, current []map[string]any, selected map[string]any) ([]Suggestion, error) {
	if current == nil {
		return nil, apperror.Validation("currentNodes is required")
	}

	types := make([]string, 0, len(current))
	for _, n := range current {
		if t, ok := n["type"].(string); ok {
			types = append(types, t)
		}
	}
	last := "none"
	if t, ok := selected["type"].(string); ok && t != "" {
		last = t
	}
	prompt := fmt.Sprintf(`Current workflow has these nodes: %s.
Last selected node: %s.

Suggest 3 most logical next nodes to add to this workflow. Respond with JSON array:
[
  { "type": "node-type", "reason": "why this node makes sense" }
]`, strings.Join(types, ", "), last)

	content, err := s.completer.Complete(ctx, CompletionRequest{
		Model:       s.suggestModel,
		Prompt:      prompt,
		Temperature: 0.5,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, s.completionError(err, "Failed to generate suggestions")
	}

	suggestions := []Suggestion{}
	match := firstArray.FindString(content)
	if match == "" {
		return suggestions, nil
	}
	if err := json.Unmarshal([]byte(match), &suggestions); err != nil {
		return nil, apperror.Remote(http.StatusInternalServerError, "Failed to generate suggestions", err)
	}
	return suggestions, nil
}

func (s *AIService) completionError(err error, message string) error {
	if errors.Is(err, ErrNotConfigured) {
		return apperror.Internal(ErrNotConfigured.Error(), nil)
	}
	s.logger.Error("completion failed", "error", err)
	return apperror.Remote(http.StatusInternalServerError, message, err)
}
