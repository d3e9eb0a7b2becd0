package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"

	"solflow/backend/internal/logging"
)

// ErrNotConfigured is returned by a completer that has no API key.
var ErrNotConfigured = errors.New("OpenAI API key not configured")

// OpenAICompleter is an HTTP implementation of the Completer interface for
// OpenAI-compatible chat completion endpoints.
type OpenAICompleter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenAICompleter creates a new OpenAICompleter.
func NewOpenAICompleter(baseURL, apiKey string, timeout time.Duration) *OpenAICompleter {
	return &OpenAICompleter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// Complete returns the content of the first choice.
func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	requestBody, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	data := gjson.ParseBytes(body)

	if resp.StatusCode != http.StatusOK {
		if msg := data.Get("error.message").String(); msg != "" {
			return "", errors.New(msg)
		}
		return "", fmt.Errorf("OpenAI API request failed: status code %d", resp.StatusCode)
	}

	content := data.Get("choices.0.message.content").String()
	if content == "" {
		return "", errors.New("no response from AI")
	}
	return content, nil
}

// BreakerCompleter fails fast once the wrapped completer keeps failing.
type BreakerCompleter struct {
	inner   Completer
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerCompleter wraps inner with a circuit breaker that opens after
// maxFailures consecutive failures and probes again after openFor.
func NewBreakerCompleter(inner Completer, maxFailures uint32, openFor time.Duration, logger *logging.Logger) *BreakerCompleter {
	if maxFailures == 0 {
		maxFailures = 5
	}
	if openFor == 0 {
		openFor = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotConfigured)
		},
	})
	return &BreakerCompleter{inner: inner, breaker: cb}
}

// Complete routes the call through the breaker.
func (b *BreakerCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	out, err := b.breaker.Execute(func() (string, error) {
		return b.inner.Complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("AI service unavailable: %w", err)
	}
	return out, err
}

// State returns the current breaker state.
func (b *BreakerCompleter) State() gobreaker.State {
	return b.breaker.State()
}

var (
	_ Completer = (*OpenAICompleter)(nil)
	_ Completer = (*BreakerCompleter)(nil)
)
