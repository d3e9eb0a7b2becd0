package api

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solflow/backend/internal/apperror"
	"solflow/backend/internal/solana"
)

func keyOf(fill byte) string { return base58.Encode(bytes.Repeat([]byte{fill}, 32)) }

// metadataAccount encodes a Token Metadata account with one verified creator
// and, when collection is non-zero, a verified collection.
func metadataAccount(name, symbol, uri string, collection byte) string {
	var buf bytes.Buffer
	str := func(s string) {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
		buf.WriteString(s)
	}
	buf.WriteByte(4)
	buf.Write(bytes.Repeat([]byte{1}, 32))
	buf.Write(bytes.Repeat([]byte{2}, 32))
	str(name)
	str(symbol)
	str(uri)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(500))
	buf.Write([]byte{1, 1, 0, 0, 0})
	buf.Write(bytes.Repeat([]byte{3}, 32))
	buf.Write([]byte{1, 100})
	buf.Write([]byte{0, 1})
	buf.Write([]byte{0, 0})
	if collection != 0 {
		buf.Write([]byte{1, 1})
		buf.Write(bytes.Repeat([]byte{collection}, 32))
	} else {
		buf.WriteByte(0)
	}
	data := base64.StdEncoding.EncodeToString(buf.Bytes())
	return `{"lamports":5616720,"owner":"` + solana.TokenMetadataProgramID + `","data":["` + data + `","base64"],"executable":false,"rentEpoch":0}`
}

func tokenAccount(pubkey, mint, amount string, decimals int) string {
	return `{"pubkey":"` + pubkey + `","account":{"lamports":1,"owner":"` + solana.TokenProgramID + `","executable":false,"rentEpoch":0,
	 "data":{"parsed":{"info":{"mint":"` + mint + `","owner":"` + testKey + `","tokenAmount":{"amount":"` + amount + `","decimals":` +
		strconv.Itoa(decimals) + `}}}}}}`
}

func TestNFTsByOwner(t *testing.T) {
	withMeta, withoutMeta, fungible := keyOf(20), keyOf(21), keyOf(22)
	api := newTestAPI(t, map[string]string{
		"getTokenAccountsByOwner": `{"context":{"slot":1},"value":[` +
			tokenAccount("acc1", withMeta, "1", 0) + `,` +
			tokenAccount("acc2", withoutMeta, "1", 0) + `,` +
			tokenAccount("acc3", fungible, "2500", 3) + `,` +
			tokenAccount("acc4", withMeta, "1", 0) + `]}`,
		"getMultipleAccounts": `{"context":{"slot":1},"value":[` + metadataAccount("Ape #7", "APE", "https://arweave.net/7", 9) + `,null]}`,
	}, nil)

	rec := api.do(http.MethodPost, "/api/nft/by-owner", map[string]any{"endpoint": api.rpc.srv.URL, "owner": testKey})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, testKey, body["owner"])
	assert.EqualValues(t, 1, body["total"])

	nfts := body["nfts"].([]any)
	require.Len(t, nfts, 1)
	nft := nfts[0].(map[string]any)
	assert.Equal(t, withMeta, nft["mint"])
	assert.Equal(t, "Ape #7", nft["name"])
	assert.Equal(t, "APE", nft["symbol"])
	assert.Equal(t, "https://arweave.net/7", nft["uri"])
	assert.EqualValues(t, 500, nft["sellerFeeBasisPoints"])
	assert.Equal(t, keyOf(1), nft["updateAuthority"])
	assert.Equal(t, keyOf(9), nft["collection"])

	var requested []string
	require.NoError(t, json.Unmarshal(api.rpc.lastParams("getMultipleAccounts")[0], &requested))
	want0, err := solana.MetadataAddress(withMeta)
	require.NoError(t, err)
	want1, err := solana.MetadataAddress(withoutMeta)
	require.NoError(t, err)
	assert.Equal(t, []string{want0, want1}, requested)
}

func TestNFTsByOwner_Empty(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"getTokenAccountsByOwner": `{"context":{"slot":1},"value":[]}`,
	}, nil)

	rec := api.do(http.MethodPost, "/api/nft/by-owner", map[string]any{"endpoint": api.rpc.srv.URL, "owner": testKey})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, []any{}, body["nfts"])
	assert.EqualValues(t, 0, body["total"])
	assert.Nil(t, api.rpc.lastParams("getMultipleAccounts"))
}

func TestNFTsByOwner_Errors(t *testing.T) {
	api := newTestAPI(t, map[string]string{}, nil)

	rec := api.do(http.MethodPost, "/api/nft/by-owner", map[string]any{"endpoint": api.rpc.srv.URL})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Endpoint and owner are required", errorOf(t, rec).Message)

	rec = api.do(http.MethodPost, "/api/nft/by-owner", map[string]any{"endpoint": api.rpc.srv.URL, "owner": testKey})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := errorOf(t, rec)
	assert.Equal(t, apperror.CodeRemote, payload.Code)
	assert.Contains(t, payload.Message, "Failed to get NFTs")
}

func TestNFTMetadata(t *testing.T) {
	mint := keyOf(30)
	api := newTestAPI(t, map[string]string{
		"getAccountInfo": `{"context":{"slot":1},"value":` + metadataAccount("Solflow Pass", "PASS", "https://example.org/pass.json", 0) + `}`,
	}, nil)

	rec := api.do(http.MethodPost, "/api/nft/metadata", map[string]any{"endpoint": api.rpc.srv.URL, "mint": mint})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, mint, body["mint"])
	assert.Equal(t, "Solflow Pass", body["name"])
	assert.Equal(t, "PASS", body["symbol"])
	assert.Equal(t, "https://example.org/pass.json", body["uri"])
	assert.EqualValues(t, 500, body["sellerFeeBasisPoints"])
	assert.Equal(t, []any{map[string]any{"address": keyOf(3), "verified": true, "share": float64(100)}}, body["creators"])
	assert.Nil(t, body["collection"])
	assert.Equal(t, keyOf(1), body["updateAuthority"])
	assert.Equal(t, true, body["isMutable"])

	var requested string
	require.NoError(t, json.Unmarshal(api.rpc.lastParams("getAccountInfo")[0], &requested))
	want, err := solana.MetadataAddress(mint)
	require.NoError(t, err)
	assert.Equal(t, want, requested)
}

func TestNFTMetadata_Errors(t *testing.T) {
	api := newTestAPI(t, map[string]string{
		"getAccountInfo": `{"context":{"slot":1},"value":null}`,
	}, nil)

	rec := api.do(http.MethodPost, "/api/nft/metadata", map[string]any{"endpoint": api.rpc.srv.URL, "mint": keyOf(30)})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NFT metadata not found", errorOf(t, rec).Message)

	rec = api.do(http.MethodPost, "/api/nft/metadata", map[string]any{"endpoint": api.rpc.srv.URL, "mint": "not-base58!"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid public key", errorOf(t, rec).Message)

	rec = api.do(http.MethodPost, "/api/nft/metadata", map[string]any{"mint": keyOf(30)})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Endpoint and mint are required", errorOf(t, rec).Message)
}
