package agent

import (
	"sync"
	"time"

	"github.com/zapflowhq/zapflow/config"
	"github.com/zapflowhq/zapflow/container"
	"github.com/zapflowhq/zapflow/engine"
	"github.com/zapflowhq/zapflow/executor"
	"github.com/zapflowhq/zapflow/logger"
	"github.com/zapflowhq/zapflow/metadata"
	"github.com/zapflowhq/zapflow/rest"
)

// Agent is the composition root: it wires storage, the engine, the
// background executors and the http surface, and owns their lifecycle.
type Agent struct {
	Config       config.Config
	container    *container.DIContainer
	flowService  metadata.FlowService
	engine       *engine.Engine
	scheduler    *engine.Scheduler
	httpServer   *rest.Server
	executors    []executor.Executor
	shutdown     bool
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config: conf,
	}
	setup := []func() error{
		a.setupContainer,
		a.setupEngine,
		a.setupExecutors,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupContainer() error {
	a.container = container.NewDiContainer()
	a.container.Init(a.Config)
	return nil
}

func (a *Agent) setupEngine() error {
	a.flowService = metadata.NewFlowService(a.container.GetFlowStore())
	a.scheduler = engine.NewScheduler(a.container.GetDelayQueue())
	interpreter := engine.NewInterpreter(
		a.container.GetContextStore(),
		a.flowService,
		engine.NewLogMessenger(),
		engine.NewLogHandoff(),
		engine.NewRestyWebhookCaller(),
		a.scheduler,
		a.Config.SynchronousStepCap,
	)
	a.engine = engine.NewEngine(a.container.GetContextStore(), a.flowService, interpreter, a.scheduler)
	return nil
}

func (a *Agent) setupExecutors() error {
	a.executors = []executor.Executor{
		executor.NewWakeExecutor(a.engine, a.scheduler, a.Config.WakePollIntervalSec, &a.wg),
		executor.NewSweepExecutor(a.container.GetContextStore(), a.Config.SweepIntervalSec,
			time.Duration(a.Config.StuckClaimBoundSec)*time.Second, &a.wg),
	}
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.engine, a.flowService)
	return err
}

func (a *Agent) Start() error {
	for _, ex := range a.executors {
		if err := ex.Start(); err != nil {
			return err
		}
	}
	go func() {
		if err := a.httpServer.Start(); err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		a.httpServer.Stop,
	}
	for _, ex := range a.executors {
		shutdown = append(shutdown, ex.Stop)
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	a.wg.Wait()
	return nil
}
