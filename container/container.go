package container

import (
	"github.com/zapflowhq/zapflow/config"
	"github.com/zapflowhq/zapflow/persistence"
	"github.com/zapflowhq/zapflow/persistence/memory"
	rd "github.com/zapflowhq/zapflow/persistence/redis"
)

// DIContainer selects the storage and queue implementations for the
// configured storage type and hands them to the composition root.
type DIContainer struct {
	initialized  bool
	flowStore    persistence.FlowStore
	contextStore persistence.ContextStore
	delayQueue   persistence.DelayQueue
}

func NewDiContainer() *DIContainer {
	return &DIContainer{}
}

func (d *DIContainer) Init(conf config.Config) {
	defer func() { d.initialized = true }()

	switch conf.StorageType {
	case config.STORAGE_TYPE_REDIS:
		rdConf := rd.Config{
			Addrs:     conf.RedisConfig.Addrs,
			Namespace: conf.RedisConfig.Namespace,
		}
		d.flowStore = rd.NewRedisFlowStore(rdConf)
		d.contextStore = rd.NewRedisContextStore(rdConf)
		d.delayQueue = rd.NewRedisDelayQueue(rdConf)
	default:
		d.flowStore = memory.NewInMemFlowStore()
		d.contextStore = memory.NewInMemContextStore()
		d.delayQueue = memory.NewInMemDelayQueue()
	}
}

func (d *DIContainer) GetFlowStore() persistence.FlowStore {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.flowStore
}

func (d *DIContainer) GetContextStore() persistence.ContextStore {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.contextStore
}

func (d *DIContainer) GetDelayQueue() persistence.DelayQueue {
	if !d.initialized {
		panic("persistence not initialized")
	}
	return d.delayQueue
}
