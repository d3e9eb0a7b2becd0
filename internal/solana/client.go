// Package solana provides a Solana JSON-RPC client for the gateway's proxy handlers.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "solflow/backend/internal/solana"

// DefaultCommitment is the commitment level used for every query.
const DefaultCommitment = "confirmed"

// maxResponseBytes bounds how much of an RPC response is read into memory.
const maxResponseBytes = 32 << 20

var (
	tracer     trace.Tracer = otel.Tracer(instrumentationName)
	rpcCalls   metric.Int64Counter
	requestIDs atomic.Uint64
)

func init() {
	var err error
	rpcCalls, err = otel.Meter(instrumentationName).Int64Counter(
		"solana.rpc.calls",
		metric.WithDescription("Solana JSON-RPC calls by method and outcome."),
	)
	if err != nil {
		otel.Handle(err)
	}
}

// Client is a Solana JSON-RPC client bound to one endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	commitment string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for RPC calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTimeout sets the per-call timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: timeout} }
}

// NewClient creates a client for the given RPC endpoint URL.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("RPC endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid RPC endpoint %q", endpoint)
	}

	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		commitment: DefaultCommitment,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the RPC URL the client talks to.
func (c *Client) Endpoint() string { return c.endpoint }

// Call makes a JSON-RPC call and decodes the result into out. A JSON null
// result leaves out untouched and returns ErrNullResult.
func (c *Client) Call(ctx context.Context, method string, params []any, out any) (err error) {
	ctx, span := tracer.Start(ctx, "solana."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.method", method)),
	)
	defer func() {
		outcome := "ok"
		if err != nil && err != ErrNullResult {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if rpcCalls != nil {
			rpcCalls.Add(ctx, 1, metric.WithAttributes(
				attribute.String("method", method),
				attribute.String("outcome", outcome),
			))
		}
		span.End()
	}()

	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      requestIDs.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d", method, resp.StatusCode)
		}
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return ErrNullResult
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) config(extra map[string]any) map[string]any {
	cfg := map[string]any{"commitment": c.commitment}
	for k, v := range extra {
		cfg[k] = v
	}
	return cfg
}

// =============================================================================
// Cluster
// =============================================================================

// GetSlot returns the current slot.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	err := c.Call(ctx, "getSlot", []any{c.config(nil)}, &slot)
	return slot, err
}

// GetBlockHeight returns the current block height.
func (c *Client) GetBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.Call(ctx, "getBlockHeight", []any{c.config(nil)}, &height)
	return height, err
}

// GetVersion returns the node's software version.
func (c *Client) GetVersion(ctx context.Context) (*Version, error) {
	var version Version
	if err := c.Call(ctx, "getVersion", nil, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// GetEpochInfo returns information about the current epoch.
func (c *Client) GetEpochInfo(ctx context.Context) (*EpochInfo, error) {
	var info EpochInfo
	if err := c.Call(ctx, "getEpochInfo", []any{c.config(nil)}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetLatestBlockhash returns the latest blockhash and its expiry height.
func (c *Client) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	var resp contextResult[Blockhash]
	if err := c.Call(ctx, "getLatestBlockhash", []any{c.config(nil)}, &resp); err != nil {
		return nil, err
	}
	return &resp.Value, nil
}

// GetRecentPerformanceSamples returns up to limit recent performance samples.
func (c *Client) GetRecentPerformanceSamples(ctx context.Context, limit int) ([]PerformanceSample, error) {
	var samples []PerformanceSample
	if err := c.Call(ctx, "getRecentPerformanceSamples", []any{limit}, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// GetBlock returns the block at slot, or ErrNullResult when the slot was skipped or pruned.
func (c *Client) GetBlock(ctx context.Context, slot uint64) (*Block, error) {
	var block Block
	err := c.Call(ctx, "getBlock", []any{slot, c.config(map[string]any{
		"encoding":                       "json",
		"transactionDetails":             "signatures",
		"rewards":                        false,
		"maxSupportedTransactionVersion": 0,
	})}, &block)
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// GetVoteAccounts returns the current and delinquent vote accounts.
func (c *Client) GetVoteAccounts(ctx context.Context) (*VoteAccounts, error) {
	var accounts VoteAccounts
	if err := c.Call(ctx, "getVoteAccounts", []any{c.config(nil)}, &accounts); err != nil {
		return nil, err
	}
	return &accounts, nil
}

// GetClusterNodes returns the nodes participating in the cluster.
func (c *Client) GetClusterNodes(ctx context.Context) ([]ClusterNode, error) {
	var nodes []ClusterNode
	if err := c.Call(ctx, "getClusterNodes", nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// GetSupply returns the SOL supply breakdown.
func (c *Client) GetSupply(ctx context.Context) (*Supply, error) {
	var resp contextResult[Supply]
	if err := c.Call(ctx, "getSupply", []any{c.config(nil)}, &resp); err != nil {
		return nil, err
	}
	return &resp.Value, nil
}

// =============================================================================
// Accounts
// =============================================================================

// GetBalance returns the lamport balance of an account.
func (c *Client) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	var resp contextResult[uint64]
	if err := c.Call(ctx, "getBalance", []any{pubkey, c.config(nil)}, &resp); err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// GetAccountInfo returns the account at pubkey, or nil when it does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	var resp contextResult[*AccountInfo]
	err := c.Call(ctx, "getAccountInfo", []any{pubkey, c.config(map[string]any{"encoding": "base64"})}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// GetMultipleAccounts returns the accounts at pubkeys in order; missing accounts are nil.
func (c *Client) GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error) {
	var resp contextResult[[]*AccountInfo]
	err := c.Call(ctx, "getMultipleAccounts", []any{pubkeys, c.config(map[string]any{"encoding": "base64"})}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Value) != len(pubkeys) {
		return nil, fmt.Errorf("getMultipleAccounts returned %d accounts for %d keys", len(resp.Value), len(pubkeys))
	}
	return resp.Value, nil
}

// GetProgramAccounts returns every account owned by programID.
func (c *Client) GetProgramAccounts(ctx context.Context, programID string) ([]KeyedAccount, error) {
	var accounts []KeyedAccount
	err := c.Call(ctx, "getProgramAccounts", []any{programID, c.config(map[string]any{"encoding": "base64"})}, &accounts)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetTokenAccountsByOwner returns the jsonParsed SPL token accounts of owner,
// restricted to a mint or a token program.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner string, filter TokenAccountFilter) ([]ParsedKeyedAccount, error) {
	selector := map[string]any{}
	switch {
	case filter.Mint != "":
		selector["mint"] = filter.Mint
	case filter.ProgramID != "":
		selector["programId"] = filter.ProgramID
	default:
		selector["programId"] = TokenProgramID
	}

	var resp contextResult[[]ParsedKeyedAccount]
	err := c.Call(ctx, "getTokenAccountsByOwner",
		[]any{owner, selector, c.config(map[string]any{"encoding": "jsonParsed"})}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// GetTokenSupply returns the total supply of an SPL token mint.
func (c *Client) GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error) {
	var resp contextResult[TokenAmount]
	if err := c.Call(ctx, "getTokenSupply", []any{mint, c.config(nil)}, &resp); err != nil {
		return nil, err
	}
	return &resp.Value, nil
}

// =============================================================================
// Transactions
// =============================================================================

// GetTransaction returns the raw confirmed transaction, or ErrNullResult when unknown.
func (c *Client) GetTransaction(ctx context.Context, signature string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.Call(ctx, "getTransaction", []any{signature, c.config(map[string]any{
		"encoding":                       "json",
		"maxSupportedTransactionVersion": 0,
	})}, &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// GetSignatureStatus returns the status of a signature, or nil when the
// cluster has no record of it.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	var resp contextResult[[]*SignatureStatus]
	err := c.Call(ctx, "getSignatureStatuses",
		[]any{[]string{signature}, map[string]any{"searchTransactionHistory": true}}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Value) == 0 {
		return nil, nil
	}
	return resp.Value[0], nil
}

// GetSignaturesForAddress returns up to limit recent signatures involving address.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	var sigs []SignatureInfo
	err := c.Call(ctx, "getSignaturesForAddress", []any{address, c.config(map[string]any{"limit": limit})}, &sigs)
	if err != nil {
		return nil, err
	}
	return sigs, nil
}

// SimulateTransaction simulates a base64 encoded, serialized transaction.
func (c *Client) SimulateTransaction(ctx context.Context, txBase64 string) (*SimulationResult, error) {
	var resp contextResult[SimulationResult]
	err := c.Call(ctx, "simulateTransaction", []any{txBase64, c.config(map[string]any{
		"encoding":               "base64",
		"sigVerify":              false,
		"replaceRecentBlockhash": true,
	})}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Value, nil
}
