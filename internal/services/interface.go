package services

import (
	"context"
	"encoding/json"
)

// TransactionFetcher reads confirmed transactions from a chain endpoint.
type TransactionFetcher interface {
	// GetTransaction returns the raw transaction document for signature.
	GetTransaction(ctx context.Context, signature string) (json.RawMessage, error)
}

// ChainDialer opens a client session against the RPC endpoint named by a request.
type ChainDialer func(endpoint string) (TransactionFetcher, error)

// Completer sends a chat prompt to a completion model and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}
