package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zapflowhq/zapflow/model"
)

func newContext(id, conversationId string) *model.ExecutionContext {
	now := time.Now()
	return &model.ExecutionContext{
		Id:             id,
		TenantId:       "t1",
		FlowId:         "f1",
		ConversationId: conversationId,
		CurrentNode:    "inicio",
		Status:         model.CONTEXT_IDLE,
		Variables:      map[string]any{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestCreateIsIdempotentPerConversation(t *testing.T) {
	store := NewInMemContextStore()

	created, err := store.Create(newContext("ctx-1", "conv-1"))
	require.NoError(t, err)
	require.True(t, created)

	created, err = store.Create(newContext("ctx-2", "conv-1"))
	require.NoError(t, err)
	require.False(t, created, "second context for the same conversation must be rejected")

	active, err := store.GetByConversation("t1", "conv-1")
	require.NoError(t, err)
	require.Equal(t, "ctx-1", active.Id)
}

func TestConversationUnboundOnlyOnDone(t *testing.T) {
	store := NewInMemContextStore()
	ctx := newContext("ctx-1", "conv-1")
	created, err := store.Create(ctx)
	require.NoError(t, err)
	require.True(t, created)

	// ERROR keeps the conversation bound; no new flow may trigger over it.
	ctx.Status = model.CONTEXT_ERROR
	require.NoError(t, store.Save(ctx))
	bound, err := store.GetByConversation("t1", "conv-1")
	require.NoError(t, err)
	require.Equal(t, model.CONTEXT_ERROR, bound.Status)
	created, err = store.Create(newContext("ctx-2", "conv-1"))
	require.NoError(t, err)
	require.False(t, created)

	ctx.Status = model.CONTEXT_DONE
	require.NoError(t, store.Save(ctx))
	_, err = store.GetByConversation("t1", "conv-1")
	require.Error(t, err)
	created, err = store.Create(newContext("ctx-3", "conv-1"))
	require.NoError(t, err)
	require.True(t, created)
}

func TestClaimExactlyOneWinner(t *testing.T) {
	store := NewInMemContextStore()
	ctx := newContext("ctx-1", "conv-1")
	_, err := store.Create(ctx)
	require.NoError(t, err)

	const workers = 32
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
	require.Equal(t, 1, winners, "exactly one concurrent claim must win")
}

func TestClaimReleaseCycle(t *testing.T) {
	store := NewInMemContextStore()
	ctx := newContext("ctx-1", "conv-1")
	_, err := store.Create(ctx)
	require.NoError(t, err)

	claimed, err := store.Claim("t1", "ctx-1")
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = store.Claim("t1", "ctx-1")
	require.NoError(t, err)
	require.False(t, claimed, "a held claim can not be claimed again")

	loaded, err := store.Get("t1", "ctx-1")
	require.NoError(t, err)
	loaded.Status = model.CONTEXT_SUSPENDED
	require.NoError(t, store.Save(loaded))

	claimed, err = store.Claim("t1", "ctx-1")
	require.NoError(t, err)
	require.True(t, claimed, "claim must be available again after suspension")

	loaded, err = store.Get("t1", "ctx-1")
	require.NoError(t, err)
	loaded.Status = model.CONTEXT_DONE
	require.NoError(t, store.Save(loaded))

	claimed, err = store.Claim("t1", "ctx-1")
	require.NoError(t, err)
	require.False(t, claimed, "terminal contexts can not be claimed")
}

func TestListProcessingOlderThan(t *testing.T) {
	store := NewInMemContextStore()
	for i := 0; i < 3; i++ {
		ctx := newContext(fmt.Sprintf("ctx-%d", i), fmt.Sprintf("conv-%d", i))
		_, err := store.Create(ctx)
		require.NoError(t, err)
	}
	claimed, err := store.Claim("t1", "ctx-0")
	require.NoError(t, err)
	require.True(t, claimed)

	refs, err := store.ListProcessingOlderThan(0)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, "ctx-0", refs[0].ContextId)

	refs, err = store.ListProcessingOlderThan(time.Hour)
	require.NoError(t, err)
	require.Empty(t, refs)
}
