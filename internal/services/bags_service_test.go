package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solflow/backend/internal/apperror"
	"solflow/backend/internal/cache"
)

type fakeBags struct {
	tokenHits atomic.Int32
	lastKey   atomic.Value
}

func (f *fakeBags) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tokens/trending", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"tokens":[{"symbol":"AAA"}],"total":1}`))
	})
	mux.HandleFunc("GET /tokens/{address}/quote", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2.5", r.URL.Query().Get("amount"))
		_, _ = w.Write([]byte(`{"outputAmount":1000,"pricePerToken":0.0025,"priceImpact":0.1,"fees":0.01}`))
	})
	mux.HandleFunc("GET /tokens/{address}", func(w http.ResponseWriter, r *http.Request) {
		f.tokenHits.Add(1)
		f.lastKey.Store(r.Header.Get("x-api-key"))
		switch r.PathValue("address") {
		case "curving":
			_, _ = w.Write([]byte(`{"name":"Curve","symbol":"CRV","marketCap":42000,"bondingCurveProgress":37.5,"holders":12,"volume24h":900,"migrated":false}`))
		case "ready":
			_, _ = w.Write([]byte(`{"bondingCurveProgress":100,"migrated":false,"estimatedLiquidityPool":{"sol":85}}`))
		case "done":
			_, _ = w.Write([]byte(`{"bondingCurveProgress":100,"migrated":true,"liquidityPool":"pool1"}`))
		default:
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newBags(t *testing.T, c cache.Cache) (*BagsService, *fakeBags) {
	f := &fakeBags{}
	srv := f.server(t)
	return NewBagsService(srv.URL, "server-key", 5*time.Second, c, nil), f
}

func TestBags_BondingCurveStatus(t *testing.T) {
	svc, f := newBags(t, nil)

	status, err := svc.BondingCurveStatus(context.Background(), "curving", "")
	require.NoError(t, err)
	assert.Equal(t, &BondingCurveStatus{
		TokenAddress:         "curving",
		MarketCap:            42000,
		BondingCurveProgress: 37.5,
		Holders:              12,
		Volume24h:            900,
	}, status)
	assert.Equal(t, "server-key", f.lastKey.Load())

	_, err = svc.BondingCurveStatus(context.Background(), "done", "caller-key")
	require.NoError(t, err)
	assert.Equal(t, "caller-key", f.lastKey.Load())
}

func TestBags_MigrationCheck(t *testing.T) {
	svc, _ := newBags(t, nil)
	ctx := context.Background()

	curving, err := svc.MigrationCheck(ctx, "curving", "")
	require.NoError(t, err)
	assert.False(t, curving.Ready)
	assert.Equal(t, 62.5, curving.RemainingProgress)
	assert.Equal(t, "62.50% remaining to complete bonding curve", curving.Message)

	ready, err := svc.MigrationCheck(ctx, "ready", "")
	require.NoError(t, err)
	assert.True(t, ready.Ready)
	assert.Equal(t, "Token is ready for migration!", ready.Message)
	assert.Equal(t, map[string]any{"sol": 85.0}, ready.EstimatedLiquidityPool)

	done, err := svc.MigrationCheck(ctx, "done", "")
	require.NoError(t, err)
	assert.False(t, done.Ready)
	assert.True(t, done.AlreadyMigrated)
	assert.Equal(t, 0.0, done.RemainingProgress)
}

func TestBags_TokenInfoIsCached(t *testing.T) {
	svc, f := newBags(t, cache.NewMemory(16, time.Minute))
	ctx := context.Background()

	info, err := svc.TokenInfo(ctx, "curving", "")
	require.NoError(t, err)
	assert.Equal(t, "CRV", info.Symbol)
	assert.Nil(t, info.Image)

	_, err = svc.BondingCurveStatus(ctx, "curving", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.tokenHits.Load())
}

func TestBags_CallerKeyBypassesCache(t *testing.T) {
	svc, f := newBags(t, cache.NewMemory(16, time.Minute))
	ctx := context.Background()

	_, err := svc.TokenInfo(ctx, "curving", "")
	require.NoError(t, err)
	assert.Equal(t, "server-key", f.lastKey.Load())

	_, err = svc.TokenInfo(ctx, "curving", "caller-key")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.tokenHits.Load())
	assert.Equal(t, "caller-key", f.lastKey.Load())

	_, err = svc.TokenInfo(ctx, "curving", "server-key")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.tokenHits.Load())
}

func TestBags_Failures(t *testing.T) {
	svc, _ := newBags(t, nil)
	ctx := context.Background()

	_, err := svc.TokenInfo(ctx, "", "")
	appErr := requireCode(t, err, apperror.CodeValidation)
	assert.Equal(t, "Token address is required", appErr.Message)

	_, err = svc.TokenInfo(ctx, "unknown", "")
	appErr = requireCode(t, err, apperror.CodeRemote)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, "Failed to fetch token from Bags", appErr.Message)

	_, err = svc.CalculatePrice(ctx, "curving", 0, "")
	requireCode(t, err, apperror.CodeValidation)
}

func TestBags_TrendingAndQuote(t *testing.T) {
	svc, _ := newBags(t, nil)
	ctx := context.Background()

	trending, err := svc.Trending(ctx, 5, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), trending.Total)
	assert.Equal(t, []any{map[string]any{"symbol": "AAA"}}, trending.Tokens)

	quote, err := svc.CalculatePrice(ctx, "curving", 2.5, "")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, quote.OutputAmount)
	assert.Equal(t, 2.5, quote.InputAmount)
}
