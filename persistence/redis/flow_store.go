package redis

import (
	"context"

	rd "github.com/redis/go-redis/v9"
	"github.com/zapflowhq/zapflow/logger"
	"github.com/zapflowhq/zapflow/model"
	"github.com/zapflowhq/zapflow/persistence"
	"github.com/zapflowhq/zapflow/util"
	"go.uber.org/zap"
)

const FLOW_KEY string = "FLOW"

var _ persistence.FlowStore = new(redisFlowStore)

type redisFlowStore struct {
	baseDao
	encDec util.EncoderDecoder[model.Flow]
}

func NewRedisFlowStore(conf Config) *redisFlowStore {
	return &redisFlowStore{
		baseDao: *newBaseDao(conf),
		encDec:  util.NewJsonEncoderDecoder[model.Flow](),
	}
}

func (rf *redisFlowStore) Save(flow model.Flow) error {
	key := rf.getNamespaceKey(FLOW_KEY, flow.TenantId)
	ctx := context.Background()
	data, err := rf.encDec.Encode(flow)
	if err != nil {
		return err
	}
	if err := rf.redisClient.HSet(ctx, key, flow.Id, string(data)).Err(); err != nil {
		logger.Error("error in saving flow definition", zap.String("tenantId", flow.TenantId), zap.String("flowId", flow.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rf *redisFlowStore) Get(tenantId string, flowId string) (*model.Flow, error) {
	key := rf.getNamespaceKey(FLOW_KEY, tenantId)
	ctx := context.Background()
	flowStr, err := rf.redisClient.HGet(ctx, key, flowId).Result()
	if err != nil {
		if err == rd.Nil {
			return nil, model.NotFoundError{Kind: "flow", Id: flowId}
		}
		logger.Error("error in getting flow definition", zap.String("tenantId", tenantId), zap.String("flowId", flowId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rf.encDec.Decode([]byte(flowStr))
}

func (rf *redisFlowStore) ListActive(tenantId string) ([]model.Flow, error) {
	key := rf.getNamespaceKey(FLOW_KEY, tenantId)
	ctx := context.Background()
	all, err := rf.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		logger.Error("error in listing flow definitions", zap.String("tenantId", tenantId), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var flows []model.Flow
	for _, flowStr := range all {
		flow, err := rf.encDec.Decode([]byte(flowStr))
		if err != nil {
			return nil, err
		}
		if flow.Active {
			flows = append(flows, *flow)
		}
	}
	return flows, nil
}

func (rf *redisFlowStore) Delete(tenantId string, flowId string) error {
	key := rf.getNamespaceKey(FLOW_KEY, tenantId)
	ctx := context.Background()
	if err := rf.redisClient.HDel(ctx, key, flowId).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
