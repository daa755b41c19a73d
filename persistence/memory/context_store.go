package memory

import (
	"sync"
	"time"

	"github.com/zapflowhq/zapflow/model"
	"github.com/zapflowhq/zapflow/persistence"
	"github.com/zapflowhq/zapflow/util"
)

var _ persistence.ContextStore = new(InMemContextStore)

// InMemContextStore keeps execution contexts in process memory. Contexts pass
// through the JSON codec on every read and write so tests observe the same
// value semantics as the redis implementation.
type InMemContextStore struct {
	mu             sync.Mutex
	contexts       map[string][]byte
	byConversation map[string]string
	claimedAt      map[string]time.Time
	encDec         util.EncoderDecoder[model.ExecutionContext]
}

func NewInMemContextStore() *InMemContextStore {
	return &InMemContextStore{
		contexts:       make(map[string][]byte),
		byConversation: make(map[string]string),
		claimedAt:      make(map[string]time.Time),
		encDec:         util.NewJsonEncoderDecoder[model.ExecutionContext](),
	}
}

func ctxKey(tenantId, contextId string) string {
	return tenantId + ":" + contextId
}

func convKey(tenantId, conversationId string) string {
	return tenantId + ":" + conversationId
}

func (s *InMemContextStore) Create(ctx *model.ExecutionContext) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ck := convKey(ctx.TenantId, ctx.ConversationId)
	if existingId, ok := s.byConversation[ck]; ok {
		existing, err := s.decode(ctxKey(ctx.TenantId, existingId))
		if err == nil && existing.Status != model.CONTEXT_DONE {
			return false, nil
		}
	}
	if err := s.put(ctx); err != nil {
		return false, err
	}
	s.byConversation[ck] = ctx.Id
	return true, nil
}

func (s *InMemContextStore) Get(tenantId string, contextId string) (*model.ExecutionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decode(ctxKey(tenantId, contextId))
}

func (s *InMemContextStore) GetByConversation(tenantId string, conversationId string) (*model.ExecutionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	contextId, ok := s.byConversation[convKey(tenantId, conversationId)]
	if !ok {
		return nil, model.NotFoundError{Kind: "context for conversation", Id: conversationId}
	}
	// An ERROR context stays bound to its conversation until an operator
	// resets or cancels it, so a new flow cannot trigger over it.
	return s.decode(ctxKey(tenantId, contextId))
}

func (s *InMemContextStore) Claim(tenantId string, contextId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ctxKey(tenantId, contextId)
	ctx, err := s.decode(key)
	if err != nil {
		return false, err
	}
	if ctx.Status != model.CONTEXT_IDLE && ctx.Status != model.CONTEXT_SUSPENDED {
		return false, nil
	}
	ctx.Status = model.CONTEXT_PROCESSING
	ctx.UpdatedAt = time.Now()
	if err := s.put(ctx); err != nil {
		return false, err
	}
	s.claimedAt[key] = time.Now()
	return true, nil
}

func (s *InMemContextStore) Save(ctx *model.ExecutionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx.UpdatedAt = time.Now()
	if err := s.put(ctx); err != nil {
		return err
	}
	key := ctxKey(ctx.TenantId, ctx.Id)
	if ctx.Status != model.CONTEXT_PROCESSING {
		delete(s.claimedAt, key)
	}
	if ctx.Status == model.CONTEXT_DONE {
		ck := convKey(ctx.TenantId, ctx.ConversationId)
		if s.byConversation[ck] == ctx.Id {
			delete(s.byConversation, ck)
		}
	}
	return nil
}

func (s *InMemContextStore) ListProcessingOlderThan(bound time.Duration) ([]persistence.ClaimRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-bound)
	var refs []persistence.ClaimRef
	for key, at := range s.claimedAt {
		if at.Before(cutoff) {
			ctx, err := s.decode(key)
			if err != nil {
				continue
			}
			refs = append(refs, persistence.ClaimRef{TenantId: ctx.TenantId, ContextId: ctx.Id})
		}
	}
	return refs, nil
}

func (s *InMemContextStore) put(ctx *model.ExecutionContext) error {
	data, err := s.encDec.Encode(*ctx)
	if err != nil {
		return err
	}
	s.contexts[ctxKey(ctx.TenantId, ctx.Id)] = data
	return nil
}

func (s *InMemContextStore) decode(key string) (*model.ExecutionContext, error) {
	data, ok := s.contexts[key]
	if !ok {
		return nil, model.NotFoundError{Kind: "context", Id: key}
	}
	return s.encDec.Decode(data)
}
