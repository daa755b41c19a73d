package executor

import (
	"sync"
	"time"

	"github.com/zapflowhq/zapflow/logger"
	"github.com/zapflowhq/zapflow/model"
	"github.com/zapflowhq/zapflow/persistence"
	"github.com/zapflowhq/zapflow/util"
	"go.uber.org/zap"
)

var _ Executor = new(SweepExecutor)

// SweepExecutor is the reconciliation sweep: a context that has held
// PROCESSING longer than the bound lost its worker mid-run, so no completing
// write is coming. The sweep parks it in ERROR for operator inspection
// instead of leaving it claimed forever.
type SweepExecutor struct {
	contexts    persistence.ContextStore
	intervalSec int
	bound       time.Duration
	wg          *sync.WaitGroup
	stop        chan struct{}
}

func NewSweepExecutor(contexts persistence.ContextStore, intervalSec int, bound time.Duration, wg *sync.WaitGroup) *SweepExecutor {
	if intervalSec <= 0 {
		intervalSec = 30
	}
	if bound <= 0 {
		bound = 5 * time.Minute
	}
	return &SweepExecutor{
		contexts:    contexts,
		intervalSec: intervalSec,
		bound:       bound,
		wg:          wg,
		stop:        make(chan struct{}),
	}
}

func (ex *SweepExecutor) Name() string {
	return "sweep-executor"
}

func (ex *SweepExecutor) Start() error {
	tw := util.NewTickWorker(ex.Name(), ex.intervalSec, ex.stop, ex.sweep, ex.wg)
	tw.Start()
	logger.Info("sweep executor started")
	return nil
}

func (ex *SweepExecutor) sweep() {
	refs, err := ex.contexts.ListProcessingOlderThan(ex.bound)
	if err != nil {
		logger.Error("error listing stuck contexts", zap.Error(err))
		return
	}
	for _, ref := range refs {
		ectx, err := ex.contexts.Get(ref.TenantId, ref.ContextId)
		if err != nil {
			logger.Error("error loading stuck context", zap.String("contextId", ref.ContextId), zap.Error(err))
			continue
		}
		if ectx.Status != model.CONTEXT_PROCESSING {
			continue
		}
		logger.Warn("context stuck in PROCESSING, marking ERROR",
			zap.String("tenantId", ref.TenantId),
			zap.String("contextId", ref.ContextId),
			zap.Time("updatedAt", ectx.UpdatedAt))
		ectx.Status = model.CONTEXT_ERROR
		ectx.FailureReason = "claim held beyond processing bound, worker presumed lost"
		if err := ex.contexts.Save(ectx); err != nil {
			logger.Error("error saving swept context", zap.String("contextId", ref.ContextId), zap.Error(err))
		}
	}
}

func (ex *SweepExecutor) Stop() error {
	ex.stop <- struct{}{}
	return nil
}
