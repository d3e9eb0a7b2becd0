package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solflow/backend/internal/apperror"
)

func sampleWorkflow() map[string]any {
	return map[string]any{
		"name":        "Watch balance",
		"description": "Alert when a wallet drops",
		"nodes": []any{
			map[string]any{"id": "n1", "type": "trigger", "position": map[string]any{"x": 0, "y": 0}},
			map[string]any{"id": "n2", "type": "get-balance", "data": map[string]any{"publicKey": testKey}},
		},
		"edges": []any{map[string]any{"id": "e1", "source": "n1", "target": "n2"}},
	}
}

func TestWorkflowLifecycle(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	rec := api.do(http.MethodPost, "/api/workflows", sampleWorkflow(), OwnerHeader, "alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id := created["id"].(string)
	assert.Equal(t, "alice", created["owner"])
	assert.Len(t, created["nodes"], 2)

	rec = api.do(http.MethodGet, "/api/workflows/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Watch balance", decode(t, rec)["name"])

	rec = api.do(http.MethodGet, "/api/workflows", nil, OwnerHeader, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)
	assert.EqualValues(t, 1, list["total"])
	summary := list["workflows"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 2, summary["nodeCount"])
	assert.NotContains(t, summary, "nodes")

	rec = api.do(http.MethodGet, "/api/workflows", nil, OwnerHeader, "bob")
	assert.EqualValues(t, 0, decode(t, rec)["total"])

	rec = api.do(http.MethodPut, "/api/workflows/"+id, map[string]any{"name": "Hijacked"}, OwnerHeader, "bob")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperror.CodeForbidden, errorOf(t, rec).Code)
	assert.Equal(t, "Not authorized to update this workflow", errorOf(t, rec).Message)

	rec = api.do(http.MethodPut, "/api/workflows/"+id, map[string]any{"name": "Renamed"}, OwnerHeader, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode(t, rec)
	assert.Equal(t, "Renamed", updated["name"])
	assert.Equal(t, "Alert when a wallet drops", updated["description"])
	assert.Len(t, updated["edges"], 1)

	rec = api.do(http.MethodDelete, "/api/workflows/"+id, nil, OwnerHeader, "bob")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authorized to delete this workflow", errorOf(t, rec).Message)

	rec = api.do(http.MethodDelete, "/api/workflows/"+id, nil, OwnerHeader, "alice")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(http.MethodGet, "/api/workflows/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Workflow not found", errorOf(t, rec).Message)
}

func TestCreateWorkflow_Unowned(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	rec := api.do(http.MethodPost, "/api/workflows", sampleWorkflow())
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["id"].(string)

	// Anyone may change a workflow without an owner.
	rec = api.do(http.MethodPut, "/api/workflows/"+id, map[string]any{"description": "shared"}, OwnerHeader, "carol")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shared", decode(t, rec)["description"])
}

func TestCreateWorkflow_Invalid(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	body := sampleWorkflow()
	delete(body, "name")
	rec := api.do(http.MethodPost, "/api/workflows", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := errorOf(t, rec)
	assert.Equal(t, apperror.CodeValidation, payload.Code)
	assert.Equal(t, "Validation failed", payload.Message)
	assert.Contains(t, rec.Body.String(), `"path":"name"`)

	rec = api.do(http.MethodPost, "/api/workflows", `{"name":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", errorOf(t, rec).Message)

	rec = api.do(http.MethodPost, "/api/workflows", map[string]any{"name": "x", "nodes": "nope", "edges": []any{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateWorkflow_StoresDanglingEdges(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	body := sampleWorkflow()
	body["edges"] = []any{map[string]any{"id": "e1", "source": "n1", "target": "ghost"}}
	rec := api.do(http.MethodPost, "/api/workflows", body)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestUpdateWorkflow_NotFound(t *testing.T) {
	api := newTestAPI(t, nil, nil)
	rec := api.do(http.MethodPut, "/api/workflows/missing", map[string]any{"name": "x"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodPut, "/api/workflows/missing", map[string]any{"name": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateWorkflow(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	rec := api.do(http.MethodPost, "/api/workflows/validate", map[string]any{
		"nodes": []any{map[string]any{"id": "a"}},
		"edges": []any{map[string]any{"id": "e", "source": "a", "target": "b"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode(t, rec)
	assert.Equal(t, false, result["valid"])
	assert.Equal(t, []any{"Edge references non-existent target node: b"}, result["errors"])

	rec = api.do(http.MethodPost, "/api/workflows/validate", map[string]any{"nodes": "x"})
	require.Equal(t, http.StatusOK, rec.Code)
	result = decode(t, rec)
	assert.Equal(t, []any{"nodes must be an array", "edges must be an array"}, result["errors"])

	rec = api.do(http.MethodPost, "/api/workflows/validate", map[string]any{"nodes": []any{}, "edges": []any{}})
	result = decode(t, rec)
	assert.Equal(t, true, result["valid"])
	assert.Equal(t, []any{"Workflow has no nodes"}, result["warnings"])
}

func TestValidateWorkflow_NonObjectBody(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	for _, body := range []string{`[]`, `5`, `"x"`, `null`} {
		rec := api.do(http.MethodPost, "/api/workflows/validate", body)
		require.Equal(t, http.StatusOK, rec.Code, body)
		result := decode(t, rec)
		assert.Equal(t, false, result["valid"], body)
		assert.Equal(t, []any{"nodes must be an array", "edges must be an array"}, result["errors"], body)
	}

	rec := api.do(http.MethodPost, "/api/workflows/validate", `{"nodes":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeValidation, errorOf(t, rec).Code)
}

func TestCreateWorkflow_NodesMustBeObjects(t *testing.T) {
	api := newTestAPI(t, nil, nil)

	rec := api.do(http.MethodPost, "/api/workflows", `{"name":"Scalars","nodes":[1,"n"],"edges":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", errorOf(t, rec).Message)

	rec = api.do(http.MethodGet, "/api/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["total"])
}
