package executor

import (
	"sync"

	"github.com/zapflowhq/zapflow/engine"
	"github.com/zapflowhq/zapflow/logger"
	"github.com/zapflowhq/zapflow/model"
	"github.com/zapflowhq/zapflow/util"
	"go.uber.org/zap"
)

var _ Executor = new(WakeExecutor)

// WakeExecutor polls the wake delay queue on a tick and hands due wakes to a
// dispatch worker feeding the engine. Stale wakes are dropped inside the
// engine by the node-identity guard.
type WakeExecutor struct {
	engine          *engine.Engine
	scheduler       *engine.Scheduler
	pollIntervalSec int
	wg              *sync.WaitGroup
	stop            chan struct{}
	worker          *util.Worker
}

func NewWakeExecutor(eng *engine.Engine, scheduler *engine.Scheduler, pollIntervalSec int, wg *sync.WaitGroup) *WakeExecutor {
	if pollIntervalSec <= 0 {
		pollIntervalSec = 1
	}
	ex := &WakeExecutor{
		engine:          eng,
		scheduler:       scheduler,
		pollIntervalSec: pollIntervalSec,
		wg:              wg,
		stop:            make(chan struct{}),
	}
	ex.worker = util.NewWorker("wake-dispatch", wg, ex.dispatch, 100)
	return ex
}

func (ex *WakeExecutor) Name() string {
	return "wake-executor"
}

func (ex *WakeExecutor) dispatch(task util.Task) error {
	wake, ok := task.(model.WakePayload)
	if !ok {
		logger.Error("unexpected task type on wake dispatch worker", zap.Any("task", task))
		return nil
	}
	if err := ex.engine.HandleWake(wake); err != nil {
		logger.Error("error handling wake", zap.String("contextId", wake.ContextId), zap.Error(err))
		return err
	}
	return nil
}

func (ex *WakeExecutor) poll() {
	wakes, err := ex.scheduler.PollWakes()
	if err != nil {
		logger.Error("error while polling wake queue", zap.Error(err))
		return
	}
	for _, wake := range wakes {
		ex.worker.Sender() <- wake
	}
}

func (ex *WakeExecutor) Start() error {
	ex.worker.Start()
	tw := util.NewTickWorker(ex.Name(), ex.pollIntervalSec, ex.stop, ex.poll, ex.wg)
	tw.Start()
	logger.Info("wake executor started")
	return nil
}

func (ex *WakeExecutor) Stop() error {
	ex.stop <- struct{}{}
	ex.worker.Stop()
	return nil
}
