package metadata

import (
	"time"

	c "github.com/patrickmn/go-cache"
	"github.com/zapflowhq/zapflow/flow"
	"github.com/zapflowhq/zapflow/model"
	"github.com/zapflowhq/zapflow/persistence"
)

// FlowService is the read path over flow definitions used by the engine,
// plus the validated save used by the operational REST surface.
type FlowService interface {
	GetFlow(tenantId string, flowId string) (*flow.Flow, error)
	GetFlowDefinition(tenantId string, flowId string) (*model.Flow, error)
	ListActiveFlows(tenantId string) ([]model.Flow, error)
	SaveFlow(def model.Flow) error
	DeleteFlow(tenantId string, flowId string) error
}

type FlowServiceImpl struct {
	storage persistence.FlowStore
	cache   *c.Cache
}

func NewFlowService(storage persistence.FlowStore) *FlowServiceImpl {
	return &FlowServiceImpl{
		storage: storage,
		cache:   c.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *FlowServiceImpl) GetFlow(tenantId string, flowId string) (*flow.Flow, error) {
	key := tenantId + ":" + flowId
	if cached, found := s.cache.Get(key); found {
		return cached.(*flow.Flow), nil
	}
	def, err := s.storage.Get(tenantId, flowId)
	if err != nil {
		return nil, err
	}
	runtime, err := flow.FromModel(*def)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, runtime, c.DefaultExpiration)
	return runtime, nil
}

// GetFlowDefinition returns the stored definition, bypassing the runtime
// cache. It backs the authoring read path.
func (s *FlowServiceImpl) GetFlowDefinition(tenantId string, flowId string) (*model.Flow, error) {
	return s.storage.Get(tenantId, flowId)
}

func (s *FlowServiceImpl) ListActiveFlows(tenantId string) ([]model.Flow, error) {
	return s.storage.ListActive(tenantId)
}

func (s *FlowServiceImpl) SaveFlow(def model.Flow) error {
	if err := flow.Validate(def); err != nil {
		return err
	}
	if err := s.storage.Save(def); err != nil {
		return err
	}
	s.cache.Delete(def.TenantId + ":" + def.Id)
	return nil
}

func (s *FlowServiceImpl) DeleteFlow(tenantId string, flowId string) error {
	if err := s.storage.Delete(tenantId, flowId); err != nil {
		return err
	}
	s.cache.Delete(tenantId + ":" + flowId)
	return nil
}
