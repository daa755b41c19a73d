package redis

import (
	"context"
	"strconv"
	"strings"
	"time"

	rd "github.com/redis/go-redis/v9"
	"github.com/zapflowhq/zapflow/logger"
	"github.com/zapflowhq/zapflow/model"
	"github.com/zapflowhq/zapflow/persistence"
	"github.com/zapflowhq/zapflow/util"
	"go.uber.org/zap"
)

const CONTEXT_KEY string = "CTX"
const CONTEXT_STATUS_KEY string = "CTXSTATUS"
const CONVERSATION_KEY string = "CONV"
const PROCESSING_KEY string = "PROCESSING"

// claimScript performs the conditional status transition of the claim as a
// single atomic step: only an IDLE or SUSPENDED context may move to
// PROCESSING. Concurrent claimers race on this script and exactly one wins.
var claimScript = rd.NewScript(`
local status = redis.call('GET', KEYS[1])
if status == 'IDLE' or status == 'SUSPENDED' then
	redis.call('SET', KEYS[1], 'PROCESSING')
	redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
	return 1
end
return 0
`)

// bindScript binds a conversation to a fresh context as one atomic step:
// check the existing binding, check the bound context's status, take over
// the binding and write the initial status. A conversation bound to a
// non-DONE context rejects the bind; a DONE leftover (crash between the
// terminal save and the unbind) or a binding with no status key is stolen.
var bindScript = rd.NewScript(`
local bound = redis.call('GET', KEYS[1])
if bound then
	local status = redis.call('GET', ARGV[3] .. bound)
	if status and status ~= 'DONE' then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', ARGV[3] .. ARGV[1], ARGV[2])
return 1
`)

// unbindScript unbinds a conversation only if it still points at the given
// context, so a newer context bound after a terminal save is left alone.
var unbindScript = rd.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	redis.call('DEL', KEYS[1])
end
return 1
`)

var _ persistence.ContextStore = new(redisContextStore)

type redisContextStore struct {
	baseDao
	encDec util.EncoderDecoder[model.ExecutionContext]
}

func NewRedisContextStore(conf Config) *redisContextStore {
	return &redisContextStore{
		baseDao: *newBaseDao(conf),
		encDec:  util.NewJsonEncoderDecoder[model.ExecutionContext](),
	}
}

func (rc *redisContextStore) bodyKey(tenantId string) string {
	return rc.getNamespaceKey(CONTEXT_KEY, tenantId)
}

func (rc *redisContextStore) statusKey(tenantId, contextId string) string {
	return rc.getNamespaceKey(CONTEXT_STATUS_KEY, tenantId, contextId)
}

func (rc *redisContextStore) conversationKey(tenantId, conversationId string) string {
	return rc.getNamespaceKey(CONVERSATION_KEY, tenantId, conversationId)
}

func (rc *redisContextStore) processingKey() string {
	return rc.getNamespaceKey(PROCESSING_KEY)
}

func (rc *redisContextStore) Create(mctx *model.ExecutionContext) (bool, error) {
	ctx := context.Background()
	convKey := rc.conversationKey(mctx.TenantId, mctx.ConversationId)
	statusPrefix := rc.getNamespaceKey(CONTEXT_STATUS_KEY, mctx.TenantId) + ":"
	res, err := bindScript.Run(ctx, rc.redisClient,
		[]string{convKey},
		mctx.Id, string(mctx.Status), statusPrefix).Int()
	if err != nil {
		logger.Error("error in binding conversation", zap.String("tenantId", mctx.TenantId), zap.String("conversationId", mctx.ConversationId), zap.Error(err))
		return false, persistence.StorageLayerError{Message: err.Error()}
	}
	if res == 0 {
		return false, nil
	}
	return true, rc.write(mctx)
}

func (rc *redisContextStore) Get(tenantId string, contextId string) (*model.ExecutionContext, error) {
	ctx := context.Background()
	ctxStr, err := rc.redisClient.HGet(ctx, rc.bodyKey(tenantId), contextId).Result()
	if err != nil {
		if err == rd.Nil {
			return nil, model.NotFoundError{Kind: "context", Id: contextId}
		}
		logger.Error("error in getting execution context", zap.String("tenantId", tenantId), zap.String("contextId", contextId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	mctx, err := rc.encDec.Decode([]byte(ctxStr))
	if err != nil {
		return nil, err
	}
	// The status key is authoritative: a claim only touches the status key.
	status, err := rc.redisClient.Get(ctx, rc.statusKey(tenantId, contextId)).Result()
	if err != nil && err != rd.Nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	if status != "" {
		mctx.Status = model.ContextStatus(status)
	}
	return mctx, nil
}

func (rc *redisContextStore) GetByConversation(tenantId string, conversationId string) (*model.ExecutionContext, error) {
	ctx := context.Background()
	contextId, err := rc.redisClient.Get(ctx, rc.conversationKey(tenantId, conversationId)).Result()
	if err != nil {
		if err == rd.Nil {
			return nil, model.NotFoundError{Kind: "context for conversation", Id: conversationId}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	// An ERROR context stays bound to its conversation until an operator
	// resets or cancels it, so a new flow cannot trigger over it.
	return rc.Get(tenantId, contextId)
}

func (rc *redisContextStore) Claim(tenantId string, contextId string) (bool, error) {
	ctx := context.Background()
	member := tenantId + ":" + contextId
	score := strconv.FormatInt(time.Now().UnixMilli(), 10)
	res, err := claimScript.Run(ctx, rc.redisClient,
		[]string{rc.statusKey(tenantId, contextId), rc.processingKey()},
		score, member).Int()
	if err != nil {
		logger.Error("error in claiming execution context", zap.String("tenantId", tenantId), zap.String("contextId", contextId), zap.Error(err))
		return false, persistence.StorageLayerError{Message: err.Error()}
	}
	return res == 1, nil
}

func (rc *redisContextStore) Save(mctx *model.ExecutionContext) error {
	mctx.UpdatedAt = time.Now()
	if err := rc.write(mctx); err != nil {
		return err
	}
	ctx := context.Background()
	if mctx.Status != model.CONTEXT_PROCESSING {
		member := mctx.TenantId + ":" + mctx.Id
		if err := rc.redisClient.ZRem(ctx, rc.processingKey(), member).Err(); err != nil {
			return persistence.StorageLayerError{Message: err.Error()}
		}
	}
	if mctx.Status == model.CONTEXT_DONE {
		convKey := rc.conversationKey(mctx.TenantId, mctx.ConversationId)
		if err := unbindScript.Run(ctx, rc.redisClient, []string{convKey}, mctx.Id).Err(); err != nil {
			return persistence.StorageLayerError{Message: err.Error()}
		}
	}
	return nil
}

func (rc *redisContextStore) ListProcessingOlderThan(bound time.Duration) ([]persistence.ClaimRef, error) {
	ctx := context.Background()
	cutoff := time.Now().Add(-bound).UnixMilli()
	members, err := rc.redisClient.ZRangeByScore(ctx, rc.processingKey(), &rd.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	refs := make([]persistence.ClaimRef, 0, len(members))
	for _, member := range members {
		parts := strings.SplitN(member, ":", 2)
		if len(parts) != 2 {
			continue
		}
		refs = append(refs, persistence.ClaimRef{TenantId: parts[0], ContextId: parts[1]})
	}
	return refs, nil
}

func (rc *redisContextStore) write(mctx *model.ExecutionContext) error {
	ctx := context.Background()
	data, err := rc.encDec.Encode(*mctx)
	if err != nil {
		return err
	}
	pipe := rc.redisClient.Pipeline()
	pipe.HSet(ctx, rc.bodyKey(mctx.TenantId), mctx.Id, string(data))
	pipe.Set(ctx, rc.statusKey(mctx.TenantId, mctx.Id), string(mctx.Status), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("error in saving execution context", zap.String("tenantId", mctx.TenantId), zap.String("contextId", mctx.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
