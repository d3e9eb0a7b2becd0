package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"solflow/backend/internal/apperror"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func newAIService(t *testing.T, c Completer) *AIService {
	t.Helper()
	svc, err := NewAIService(c, "gpt-4o", "gpt-4o-mini", nil)
	require.NoError(t, err)
	return svc
}

func TestAIService_GenerateWorkflow(t *testing.T) {
	c := new(mockCompleter)
	c.On("Complete", mock.Anything, mock.MatchedBy(func(r CompletionRequest) bool {
		return r.Model == "gpt-4o" && r.Prompt == "check my balance" && r.System != ""
	})).Return("Sure! Here you go:\n```json\n"+
		`{"nodes":[{"type":"wallet-connect","label":"Wallet","position":{"x":100,"y":100}},{"type":"get-balance"}],`+
		`"edges":[{"sourceIndex":0,"targetIndex":1}]}`+"\n```\nEnjoy.", nil)

	got, err := newAIService(t, c).GenerateWorkflow(context.Background(), "check my balance")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, "check my balance", got.Prompt)
	assert.Len(t, got.Workflow["nodes"], 2)
	c.AssertExpectations(t)
}

func TestAIService_GenerateWorkflowRejects(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		message string
	}{
		{"no object", "I cannot help with that.", "AI response is not valid JSON"},
		{"broken object", "{nodes: oops}", "AI response is not valid JSON"},
		{"schema mismatch", `{"nodes":[{"label":"no type"}],"edges":[]}`, "AI response does not match the workflow schema"},
		{"negative index", `{"nodes":[{"type":"a"}],"edges":[{"sourceIndex":-1,"targetIndex":0}]}`, "AI response does not match the workflow schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := new(mockCompleter)
			c.On("Complete", mock.Anything, mock.Anything).Return(tt.reply, nil)

			_, err := newAIService(t, c).GenerateWorkflow(context.Background(), "anything")
			appErr := requireCode(t, err, apperror.CodeRemote)
			assert.Equal(t, http.StatusInternalServerError, appErr.Status)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}

func TestAIService_GenerateWorkflowNeedsPromptAndKey(t *testing.T) {
	svc := newAIService(t, NewOpenAICompleter("http://unused", "", time.Second))

	_, err := svc.GenerateWorkflow(context.Background(), "  ")
	requireCode(t, err, apperror.CodeValidation)

	_, err = svc.GenerateWorkflow(context.Background(), "hello")
	appErr := requireCode(t, err, apperror.CodeInternal)
	assert.Equal(t, "OpenAI API key not configured", appErr.Message)
}

func TestAIService_SuggestNext(t *testing.T) {
	c := new(mockCompleter)
	c.On("Complete", mock.Anything, mock.MatchedBy(func(r CompletionRequest) bool {
		return r.Model == "gpt-4o-mini" &&
			strings.Contains(r.Prompt, "these nodes: wallet-connect, get-balance.") &&
			strings.Contains(r.Prompt, "Last selected node: get-balance.")
	})).Return(`Try: [{"type":"output-display","reason":"show it"}]`, nil).Once()
	c.On("Complete", mock.Anything, mock.Anything).Return("no idea", nil).Once()

	svc := newAIService(t, c)
	nodes := []map[string]any{{"type": "wallet-connect"}, {"type": "get-balance"}}

	got, err := svc.SuggestNext(context.Background(), nodes, map[string]any{"type": "get-balance"})
	require.NoError(t, err)
	assert.Equal(t, []Suggestion{{Type: "output-display", Reason: "show it"}}, got)

	got, err = svc.SuggestNext(context.Background(), nodes, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	_, err = svc.SuggestNext(context.Background(), nil, nil)
	requireCode(t, err, apperror.CodeValidation)
}

func TestOpenAICompleter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Model == "broken" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
			return
		}
		assert.Equal(t, []chatMessage{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}}, body.Messages)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(srv.URL+"/", "sk-test", 5*time.Second)
	out, err := c.Complete(context.Background(), CompletionRequest{Model: "gpt-4o", System: "sys", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	_, err = c.Complete(context.Background(), CompletionRequest{Model: "broken", Prompt: "hi"})
	assert.EqualError(t, err, "Rate limit reached")
}

func TestBreakerCompleter_OpensAfterFailures(t *testing.T) {
	inner := new(mockCompleter)
	inner.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("upstream down"))

	b := NewBreakerCompleter(inner, 2, time.Minute, nil)
	for i := 0; i < 2; i++ {
		_, err := b.Complete(context.Background(), CompletionRequest{})
		assert.EqualError(t, err, "upstream down")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	inner.AssertNumberOfCalls(t, "Complete", 2)
}

func TestBreakerCompleter_NotConfiguredDoesNotTrip(t *testing.T) {
	b := NewBreakerCompleter(NewOpenAICompleter("http://unused", "", time.Second), 1, time.Minute, nil)
	for i := 0; i < 3; i++ {
		_, err := b.Complete(context.Background(), CompletionRequest{})
		assert.ErrorIs(t, err, ErrNotConfigured)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
