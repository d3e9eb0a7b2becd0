package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solflow/backend/pkg/models"
)

func newWorkflow(id, owner string) *models.Workflow {
	now := time.Now().UTC()
	return &models.Workflow{
		ID:        id,
		Name:      "flow " + id,
		Nodes:     []models.Node{{"id": "a", "data": map[string]any{"label": "A"}}},
		Edges:     []models.Edge{},
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryWorkflowStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	wf := newWorkflow("w1", "W1")
	require.NoError(t, store.CreateWorkflow(ctx, wf))
	assert.ErrorIs(t, store.CreateWorkflow(ctx, wf), ErrDuplicateID)

	got, err := store.GetWorkflow(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, wf, got)

	got.Name = "renamed"
	require.NoError(t, store.UpdateWorkflow(ctx, got))
	again, err := store.GetWorkflow(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", again.Name)

	require.NoError(t, store.DeleteWorkflow(ctx, "w1"))
	_, err = store.GetWorkflow(ctx, "w1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteWorkflow(ctx, "w1"), ErrNotFound)
	assert.ErrorIs(t, store.UpdateWorkflow(ctx, wf), ErrNotFound)
}

func TestMemoryWorkflowStore_IsolatesCallerMemory(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	wf := newWorkflow("w1", "")
	require.NoError(t, store.CreateWorkflow(ctx, wf))

	wf.Nodes[0]["id"] = "mutated"
	wf.Nodes[0]["data"].(map[string]any)["label"] = "mutated"

	got, err := store.GetWorkflow(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Nodes[0]["id"])
	assert.Equal(t, "A", got.Nodes[0]["data"].(map[string]any)["label"])
}

func TestMemoryWorkflowStore_ListOrderAndOwnerFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	for i, owner := range []string{"W1", "W2", "W1", ""} {
		require.NoError(t, store.CreateWorkflow(ctx, newWorkflow(fmt.Sprintf("w%d", i), owner)))
	}
	require.NoError(t, store.DeleteWorkflow(ctx, "w1"))

	all, err := store.ListWorkflows(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"w0", "w2", "w3"}, ids(all))

	mine, err := store.ListWorkflows(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, []string{"w0", "w2"}, ids(mine))

	none, err := store.ListWorkflows(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryWorkflowStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("w%d", i)
			assert.NoError(t, store.CreateWorkflow(ctx, newWorkflow(id, "")))
			_, err := store.GetWorkflow(ctx, id)
			assert.NoError(t, err)
			_, err = store.ListWorkflows(ctx, "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := store.ListWorkflows(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func ids(workflows []*models.Workflow) []string {
	out := make([]string, len(workflows))
	for i, w := range workflows {
		out[i] = w.ID
	}
	return out
}
