package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solflow/backend/internal/apperror"
)

func TestTestConnection(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"getSlot":    `1234`,
		"getVersion": `{"solana-core":"1.18.0","feature-set":42}`,
	}, nil)

	rec := api.do(http.MethodPost, "/api/rpc/test", map[string]any{"endpoint": api.rpc.srv.URL})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["connected"])
	assert.EqualValues(t, 1234, body["slot"])
	assert.Equal(t, "1.18.0", body["version"].(map[string]any)["solana-core"])
	assert.Equal(t, api.rpc.srv.URL, body["endpoint"])
}

func TestTestConnection_Failure(t *testing.T) {
	api := newTestAPI(t, map[string]string{}, nil)

	rec := api.do(http.MethodPost, "/api/rpc/test", map[string]any{"endpoint": api.rpc.srv.URL})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["connected"])
	assert.Equal(t, api.rpc.srv.URL, body["endpoint"])
	assert.Contains(t, body["error"], "Method not found")

	rec = api.do(http.MethodPost, "/api/rpc/test", map[string]any{"endpoint": "ftp://nowhere"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["connected"])
}

func TestGetBalance(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"getBalance": `{"context":{"slot":1},"value":1500000000}`,
	}, nil)

	rec := api.do(http.MethodPost, "/api/rpc/balance", map[string]any{"endpoint": api.rpc.srv.URL, "publicKey": testKey})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1500000000, body["lamports"])
	assert.InDelta(t, 1.5, body["sol"], 1e-9)
}

func TestGetBalance_Validation(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	rec := api.do(http.MethodPost, "/api/rpc/balance", map[string]any{"endpoint": api.rpc.srv.URL})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Endpoint and publicKey are required", errorOf(t, rec).Message)

	rec = api.do(http.MethodPost, "/api/rpc/balance", map[string]any{"endpoint": api.rpc.srv.URL, "publicKey": "not-a-key"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid public key", errorOf(t, rec).Message)

	rec = api.do(http.MethodPost, "/api/rpc/balance", map[string]any{"endpoint": "not a url", "publicKey": testKey})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid RPC endpoint", errorOf(t, rec).Message)
}

func TestGetBalance_RemoteFailure(t *testing.T) {
	api := newTestAPI(t, map[string]string{}, nil)

	rec := api.do(http.MethodPost, "/api/rpc/balance", map[string]any{"endpoint": api.rpc.srv.URL, "publicKey": testKey})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := errorOf(t, rec)
	assert.Equal(t, apperror.CodeRemote, payload.Code)
	assert.Contains(t, payload.Message, "Failed to get balance")
	assert.Contains(t, payload.Message, "Method not found")
}

func TestGetAccount(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"getAccountInfo": `{"context":{"slot":1},"value":{"lamports":10,"owner":"` + testKey + `","data":["AQIDBA==","base64"],"executable":true,"rentEpoch":3}}`,
	}, nil)

	rec := api.do(http.MethodPost, "/api/rpc/account", map[string]any{"endpoint": api.rpc.srv.URL, "publicKey": testKey})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["exists"])
	assert.Equal(t, true, body["executable"])
	assert.EqualValues(t, 4, body["dataLength"])
}

func TestGetAccount_Missing(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"getAccountInfo": `{"context":{"slot":1},"value":null}`,
	}, nil)

	rec := api.do(http.MethodPost, "/api/rpc/account", map[string]any{"endpoint": api.rpc.srv.URL, "publicKey": testKey})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"exists": false, "publicKey": testKey}, decode(t, rec))
}

func TestGetPerformance_DefaultLimit(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"getRecentPerformanceSamples": `[{"slot":9,"numTransactions":300,"numSlots":60,"samplePeriodSecs":60}]`,
	}, nil)

	rec := api.do(http.MethodPost, "/api/rpc/performance", map[string]any{"endpoint": api.rpc.srv.URL})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])
	assert.JSONEq(t, `10`, string(api.rpc.lastParams("getRecentPerformanceSamples")[0]))
}

func TestGetBlock(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"getBlock": `{"blockhash":"h2","previousBlockhash":"h1","parentSlot":99,"blockHeight":90,"blockTime":1700000000,"signatures":["a","b","c"]}`,
	}, nil)

	rec := api.do(http.MethodPost, "/api/rpc/block", map[string]any{"endpoint": api.rpc.srv.URL, "slot": 100})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 100, body["slot"])
	assert.EqualValues(t, 3, body["transactions"])
	assert.Equal(t, "h2", body["blockhash"])

	rec = api.do(http.MethodPost, "/api/rpc/block", map[string]any{"endpoint": api.rpc.srv.URL})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Endpoint and slot are required", errorOf(t, rec).Message)
}

func TestGetBlock_NotFound(t *testing.T) {
	api := newTestAPI(t, map[string]string{"getBlock": `null`}, nil)

	rec := api.do(http.MethodPost, "/api/rpc/block", map[string]any{"endpoint": api.rpc.srv.URL, "slot": 0})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Block not found", errorOf(t, rec).Message)
}

func TestGetValidatorsAndSupply(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"getVoteAccounts": `{"current":[{"votePubkey":"v1","nodePubkey":"n1","activatedStake":5,"epochVoteAccount":true,"commission":7}],"delinquent":[{"votePubkey":"v2","nodePubkey":"n2"}]}`,
		"getSupply":       `{"context":{"slot":1},"value":{"total":100,"circulating":60,"nonCirculating":40,"nonCirculatingAccounts":["x"]}}`,
	}, nil)

	rec := api.do(http.MethodPost, "/api/rpc/validators", map[string]any{"endpoint": api.rpc.srv.URL})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["delinquent"])
	assert.EqualValues(t, 2, body["total"])

	rec = api.do(http.MethodPost, "/api/rpc/supply", map[string]any{"endpoint": api.rpc.srv.URL})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.EqualValues(t, 60, body["circulating"])
	assert.Equal(t, []any{"x"}, body["nonCirculatingAccounts"])
}
