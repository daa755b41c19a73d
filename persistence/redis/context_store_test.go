package redis

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/zapflowhq/zapflow/model"
)

func newTestContextStore(t *testing.T) (*redisContextStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	conf := Config{
		Addrs:     []string{mr.Addr()},
		Namespace: "test",
	}
	return NewRedisContextStore(conf), mr
}

func testContext(id, conversationId string) *model.ExecutionContext {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &model.ExecutionContext{
		Id:             id,
		TenantId:       "t1",
		FlowId:         "f1",
		ConversationId: conversationId,
		CurrentNode:    "inicio",
		Status:         model.CONTEXT_IDLE,
		Variables: map[string]any{
			"nome":   "Maria",
			"idade":  float64(20),
			"ativo":  true,
			"extra":  nil,
			"nested": map[string]any{"cidade": "Recife"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRedisContextStoreSaveGet(t *testing.T) {
	store, _ := newTestContextStore(t)
	original := testContext("ctx-1", "conv-1")

	created, err := store.Create(original)
	require.NoError(t, err)
	require.True(t, created)

	loaded, err := store.Get("t1", "ctx-1")
	require.NoError(t, err)
	require.Equal(t, original.Variables, loaded.Variables)
	require.Equal(t, original.CurrentNode, loaded.CurrentNode)
	require.Equal(t, model.CONTEXT_IDLE, loaded.Status)

	_, err = store.Get("t1", "missing")
	require.Error(t, err)
	_, notFound := err.(model.NotFoundError)
	require.True(t, notFound)
}

func TestRedisContextStoreCreateIdempotent(t *testing.T) {
	store, _ := newTestContextStore(t)

	created, err := store.Create(testContext("ctx-1", "conv-1"))
	require.NoError(t, err)
	require.True(t, created)

	created, err = store.Create(testContext("ctx-2", "conv-1"))
	require.NoError(t, err)
	require.False(t, created)

	active, err := store.GetByConversation("t1", "conv-1")
	require.NoError(t, err)
	require.Equal(t, "ctx-1", active.Id)
}

func TestRedisContextStoreConcurrentCreates(t *testing.T) {
	store, _ := newTestContextStore(t)

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan string, workers)
	for i := 0; i < workers; i++ {
		id := fmt.Sprintf("ctx-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := store.Create(testContext(id, "conv-1"))
			require.NoError(t, err)
			if created {
				wins <- id
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for id := range wins {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1)

	active, err := store.GetByConversation("t1", "conv-1")
	require.NoError(t, err)
	require.Equal(t, winners[0], active.Id)
	require.Equal(t, model.CONTEXT_IDLE, active.Status)
}

func TestRedisContextStoreStealsDoneLeftover(t *testing.T) {
	store, mr := newTestContextStore(t)
	ctx := testContext("ctx-1", "conv-1")
	_, err := store.Create(ctx)
	require.NoError(t, err)

	ctx.Status = model.CONTEXT_DONE
	require.NoError(t, store.Save(ctx))

	// a crash between the terminal save and the unbind leaves the binding
	// behind; a later create takes it over
	require.NoError(t, mr.Set(store.conversationKey("t1", "conv-1"), "ctx-1"))

	created, err := store.Create(testContext("ctx-2", "conv-1"))
	require.NoError(t, err)
	require.True(t, created)

	active, err := store.GetByConversation("t1", "conv-1")
	require.NoError(t, err)
	require.Equal(t, "ctx-2", active.Id)
}

func TestRedisContextStoreClaim(t *testing.T) {
	store, _ := newTestContextStore(t)
	_, err := store.Create(testContext("ctx-1", "conv-1"))
	require.NoError(t, err)

	claimed, err := store.Claim("t1", "ctx-1")
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = store.Claim("t1", "ctx-1")
	require.NoError(t, err)
	require.False(t, claimed)

	// the claim is visible on a reload even though the body was not rewritten
	loaded, err := store.Get("t1", "ctx-1")
	require.NoError(t, err)
	require.Equal(t, model.CONTEXT_PROCESSING, loaded.Status)

	loaded.Status = model.CONTEXT_SUSPENDED
	require.NoError(t, store.Save(loaded))

	claimed, err = store.Claim("t1", "ctx-1")
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestRedisContextStoreConcurrentClaims(t *testing.T) {
	store, _ := newTestContextStore(t)
	_, err := store.Create(testContext("ctx-1", "conv-1"))
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.Claim("t1", "ctx-1")
			require.NoError(t, err)
			wins <- claimed
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	require.Equal(t, 1, winners)
}

func TestRedisContextStoreDoneUnbindsConversation(t *testing.T) {
	store, _ := newTestContextStore(t)
	ctx := testContext("ctx-1", "conv-1")
	_, err := store.Create(ctx)
	require.NoError(t, err)

	ctx.Status = model.CONTEXT_DONE
	require.NoError(t, store.Save(ctx))

	_, err = store.GetByConversation("t1", "conv-1")
	require.Error(t, err)

	created, err := store.Create(testContext("ctx-2", "conv-1"))
	require.NoError(t, err)
	require.True(t, created)
}

func TestRedisContextStoreProcessingIndex(t *testing.T) {
	store, _ := newTestContextStore(t)
	ctx := testContext("ctx-1", "conv-1")
	_, err := store.Create(ctx)
	require.NoError(t, err)

	claimed, err := store.Claim("t1", "ctx-1")
	require.NoError(t, err)
	require.True(t, claimed)

	refs, err := store.ListProcessingOlderThan(0)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, "ctx-1", refs[0].ContextId)
	require.Equal(t, "t1", refs[0].TenantId)

	loaded, err := store.Get("t1", "ctx-1")
	require.NoError(t, err)
	loaded.Status = model.CONTEXT_SUSPENDED
	require.NoError(t, store.Save(loaded))

	refs, err = store.ListProcessingOlderThan(0)
	require.NoError(t, err)
	require.Empty(t, refs)
}
