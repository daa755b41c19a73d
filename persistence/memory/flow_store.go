package memory

import (
	"sync"

	"github.com/zapflowhq/zapflow/model"
	"github.com/zapflowhq/zapflow/persistence"
	"github.com/zapflowhq/zapflow/util"
)

var _ persistence.FlowStore = new(InMemFlowStore)

type InMemFlowStore struct {
	mu     sync.RWMutex
	flows  map[string][]byte
	encDec util.EncoderDecoder[model.Flow]
}

func NewInMemFlowStore() *InMemFlowStore {
	return &InMemFlowStore{
		flows:  make(map[string][]byte),
		encDec: util.NewJsonEncoderDecoder[model.Flow](),
	}
}

func flowKey(tenantId, flowId string) string {
	return tenantId + ":" + flowId
}

func (s *InMemFlowStore) Save(flow model.Flow) error {
	data, err := s.encDec.Encode(flow)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[flowKey(flow.TenantId, flow.Id)] = data
	return nil
}

func (s *InMemFlowStore) Get(tenantId string, flowId string) (*model.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.flows[flowKey(tenantId, flowId)]
	if !ok {
		return nil, model.NotFoundError{Kind: "flow", Id: flowId}
	}
	return s.encDec.Decode(data)
}

func (s *InMemFlowStore) ListActive(tenantId string) ([]model.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var flows []model.Flow
	for key, data := range s.flows {
		if len(key) < len(tenantId)+1 || key[:len(tenantId)+1] != tenantId+":" {
			continue
		}
		flow, err := s.encDec.Decode(data)
		if err != nil {
			return nil, err
		}
		if flow.Active {
			flows = append(flows, *flow)
		}
	}
	return flows, nil
}

func (s *InMemFlowStore) Delete(tenantId string, flowId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, flowKey(tenantId, flowId))
	return nil
}
