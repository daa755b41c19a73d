package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/zapflowhq/zapflow/flow"
	"github.com/zapflowhq/zapflow/logger"
	"github.com/zapflowhq/zapflow/metadata"
	"github.com/zapflowhq/zapflow/model"
	"github.com/zapflowhq/zapflow/persistence"
	"github.com/zapflowhq/zapflow/util"
	"go.uber.org/zap"
)

// ErrContextBusy is returned when a run loses the claim race. The event must
// be re-delivered by the caller once the current holder finishes.
var ErrContextBusy = errors.New("execution context is already being processed")

// DefaultStepCap bounds synchronous node chains per invocation so authored
// cycles cannot run unbounded.
const DefaultStepCap = 50

// Interpreter drives one execution context through its flow: claim, execute
// the current node's entry behavior, resolve the next transition, persist,
// and either continue, suspend or terminate.
type Interpreter struct {
	contexts   persistence.ContextStore
	flows      metadata.FlowService
	messenger  Messenger
	handoff    HandoffService
	webhooks   WebhookCaller
	scheduler  *Scheduler
	conditions *flow.ConditionEvaluator
	stepCap    int
}

func NewInterpreter(
	contexts persistence.ContextStore,
	flows metadata.FlowService,
	messenger Messenger,
	handoff HandoffService,
	webhooks WebhookCaller,
	scheduler *Scheduler,
	stepCap int,
) *Interpreter {
	if stepCap <= 0 {
		stepCap = DefaultStepCap
	}
	return &Interpreter{
		contexts:   contexts,
		flows:      flows,
		messenger:  messenger,
		handoff:    handoff,
		webhooks:   webhooks,
		scheduler:  scheduler,
		conditions: flow.NewConditionEvaluator(),
		stepCap:    stepCap,
	}
}

// Run processes one event against one context. An empty event means the
// context was just created and execution starts at the INICIO node. Fatal
// mid-run conditions are absorbed: the context ends up in status ERROR with
// a recorded reason, and Run returns nil.
func (it *Interpreter) Run(tenantId string, contextId string, event string, payload any) error {
	return it.run(tenantId, contextId, "", event, payload)
}

// RunAt is Run with a node-identity precondition: the event only applies if
// the context still sits at expectedNode once the claim is held. A context
// that advanced between the caller's read and the claim releases the claim
// untouched, so a stale TIMEOUT or late callback cannot fire at a node it
// was never registered for.
func (it *Interpreter) RunAt(tenantId string, contextId string, expectedNode string, event string, payload any) error {
	return it.run(tenantId, contextId, expectedNode, event, payload)
}

func (it *Interpreter) run(tenantId string, contextId string, expectedNode string, event string, payload any) error {
	claimed, err := it.contexts.Claim(tenantId, contextId)
	if err != nil {
		return err
	}
	if !claimed {
		ectx, err := it.contexts.Get(tenantId, contextId)
		if err != nil {
			return err
		}
		if ectx.Status.Terminal() {
			return nil
		}
		return ErrContextBusy
	}

	ectx, err := it.contexts.Get(tenantId, contextId)
	if err != nil {
		return err
	}
	if expectedNode != "" && ectx.CurrentNode != expectedNode {
		logger.Debug("dropping event, context moved past expected node",
			zap.String("contextId", contextId),
			zap.String("expectedNode", expectedNode),
			zap.String("currentNode", ectx.CurrentNode),
			zap.String("event", event))
		ectx.Status = model.CONTEXT_SUSPENDED
		return it.contexts.Save(ectx)
	}
	f, err := it.flows.GetFlow(tenantId, ectx.FlowId)
	if err != nil {
		return it.fail(ectx, "", event, fmt.Sprintf("flow %s not loadable: %v", ectx.FlowId, err))
	}
	if ectx.Variables == nil {
		ectx.Variables = make(map[string]any)
	}

	if event != "" {
		proceed, err := it.applyEvent(f, ectx, event, payload)
		if err != nil || !proceed {
			return err
		}
	}

	return it.loop(f, ectx)
}

// applyEvent captures event payloads into the context and advances past the
// suspended node. It returns false when the run should stop without
// entering the synchronous loop (e.g. a reply that failed validation).
func (it *Interpreter) applyEvent(f *flow.Flow, ectx *model.ExecutionContext, event string, payload any) (bool, error) {
	switch event {
	case model.EVENT_RESPOSTA_RECEBIDA:
		if ectx.AwaitingReply && ectx.AwaitingVariable != "" {
			reply, _ := payload.(string)
			if !it.replyValid(f, ectx, reply) {
				ectx.Status = model.CONTEXT_SUSPENDED
				return false, it.contexts.Save(ectx)
			}
			ectx.Variables[ectx.AwaitingVariable] = reply
			ectx.AwaitingReply = false
			ectx.AwaitingVariable = ""
		}
	case model.EVENT_WEBHOOK_CALLBACK:
		ectx.LastWebhookResponse = payload
		ectx.Variables["webhookResponse"] = payload
	case model.EVENT_TIMEOUT:
		// nothing to capture
	}

	transition, ok := flow.Resolve(f, ectx.CurrentNode, event)
	if !ok {
		return false, it.fail(ectx, ectx.CurrentNode, event, "no transition matches event")
	}
	ectx.CurrentNode = transition.DestId
	return true, nil
}

func (it *Interpreter) replyValid(f *flow.Flow, ectx *model.ExecutionContext, reply string) bool {
	node, ok := f.Node(ectx.CurrentNode)
	if !ok || node.Type != model.NODE_PERGUNTA {
		return true
	}
	cfg, err := node.PerguntaConfig()
	if err != nil || cfg.ValidationRule == "" {
		return true
	}
	matched, err := regexp.MatchString(cfg.ValidationRule, reply)
	if err != nil {
		logger.Warn("invalid validation rule, accepting reply", zap.String("nodeId", node.Id), zap.Error(err))
		return true
	}
	return matched
}

// loop executes entry behaviors along implicit PROXIMO chains until a node
// suspends, the flow terminates, or the step cap trips.
func (it *Interpreter) loop(f *flow.Flow, ectx *model.ExecutionContext) error {
	for step := 0; step < it.stepCap; step++ {
		node, ok := f.Node(ectx.CurrentNode)
		if !ok {
			return it.fail(ectx, ectx.CurrentNode, "", "current node missing from flow definition")
		}
		nextEvent, done, err := it.enter(f, ectx, node)
		if err != nil {
			var execErr model.ExecutionError
			if errors.As(err, &execErr) {
				return it.fail(ectx, execErr.NodeId, execErr.Event, execErr.Message)
			}
			var valErr model.ValidationError
			if errors.As(err, &valErr) {
				return it.fail(ectx, node.Id, "", valErr.Message)
			}
			return err
		}
		if done {
			return nil
		}
		transition, ok := flow.Resolve(f, node.Id, nextEvent)
		if !ok {
			return it.fail(ectx, node.Id, nextEvent, "no transition matches event")
		}
		ectx.CurrentNode = transition.DestId
		if err := it.contexts.Save(ectx); err != nil {
			return err
		}
	}
	return it.fail(ectx, ectx.CurrentNode, "", fmt.Sprintf("synchronous step cap of %d exceeded", it.stepCap))
}

// enter runs one node's entry behavior. It returns the implicit event of a
// synchronously completed node, or done=true when the run suspended or
// reached a terminal status.
func (it *Interpreter) enter(f *flow.Flow, ectx *model.ExecutionContext, node model.Node) (string, bool, error) {
	switch node.Type {
	case model.NODE_INICIO:
		return model.EVENT_PROXIMO, false, nil

	case model.NODE_MENSAGEM:
		cfg, err := node.MensagemConfig()
		if err != nil {
			return "", false, err
		}
		if err := it.sendMessage(ectx, cfg); err != nil {
			if f.OnSendFailure == model.SEND_FAILURE_HALT {
				return "", false, model.ExecutionError{NodeId: node.Id, Message: fmt.Sprintf("message send failed: %v", err)}
			}
			logger.Warn("message send failed, continuing", zap.String("contextId", ectx.Id), zap.String("nodeId", node.Id), zap.Error(err))
		}
		return model.EVENT_PROXIMO, false, nil

	case model.NODE_PERGUNTA:
		cfg, err := node.PerguntaConfig()
		if err != nil {
			return "", false, err
		}
		ectx.AwaitingReply = true
		ectx.AwaitingVariable = cfg.VariableName
		ectx.Status = model.CONTEXT_SUSPENDED
		return "", true, it.contexts.Save(ectx)

	case model.NODE_CONDICAO:
		cfg, err := node.CondicaoConfig()
		if err != nil {
			return "", false, err
		}
		result, err := it.conditions.Evaluate(cfg.Expression, ectx.Variables)
		if err != nil {
			return "", false, model.ExecutionError{NodeId: node.Id, Message: fmt.Sprintf("condition evaluation failed: %v", err)}
		}
		branch := cfg.BranchEvents[1]
		if result {
			branch = cfg.BranchEvents[0]
		}
		if _, ok := flow.Resolve(f, node.Id, branch); !ok && cfg.DefaultEvent != "" {
			branch = cfg.DefaultEvent
		}
		return branch, false, nil

	case model.NODE_TRANSFERENCIA:
		cfg, err := node.TransferenciaConfig()
		if err != nil {
			return "", false, err
		}
		if err := it.handoff.Transfer(ectx.TenantId, ectx.ConversationId, cfg.TargetQueueOrUser); err != nil {
			return "", false, model.ExecutionError{NodeId: node.Id, Message: fmt.Sprintf("handoff failed: %v", err)}
		}
		ectx.Status = model.CONTEXT_DONE
		return "", true, it.contexts.Save(ectx)

	case model.NODE_WEBHOOK:
		cfg, err := node.WebhookConfig()
		if err != nil {
			return "", false, err
		}
		ectx.Status = model.CONTEXT_SUSPENDED
		ectx.LastWebhookResponse = nil
		if err := it.contexts.Save(ectx); err != nil {
			return "", false, err
		}
		if err := it.scheduler.RegisterWake(ectx.TenantId, ectx.Id, node.Id, time.Duration(cfg.TimeoutMs)*time.Millisecond); err != nil {
			return "", false, err
		}
		req := WebhookRequest{
			Url:       util.ResolveTemplate(cfg.Url, ectx.Variables),
			Method:    cfg.Method,
			Headers:   util.ResolveTemplateHeaders(cfg.Headers, ectx.Variables),
			Body:      util.ResolveTemplateMap(cfg.BodyTemplate, ectx.Variables),
			TimeoutMs: cfg.TimeoutMs,
		}
		// Delivery failures are the HTTP collaborator's problem; a missing
		// callback is covered by the deadline wake.
		go func() {
			if err := it.webhooks.Call(context.Background(), req); err != nil {
				logger.Warn("webhook call failed", zap.String("contextId", ectx.Id), zap.String("nodeId", node.Id), zap.Error(err))
			}
		}()
		return "", true, nil

	case model.NODE_ESPERAR:
		cfg, err := node.EsperarConfig()
		if err != nil {
			return "", false, err
		}
		ectx.Status = model.CONTEXT_SUSPENDED
		if err := it.contexts.Save(ectx); err != nil {
			return "", false, err
		}
		return "", true, it.scheduler.RegisterWake(ectx.TenantId, ectx.Id, node.Id, time.Duration(cfg.DurationMs)*time.Millisecond)

	case model.NODE_FIM:
		ectx.Status = model.CONTEXT_DONE
		return "", true, it.contexts.Save(ectx)

	default:
		return "", false, model.ExecutionError{NodeId: node.Id, Message: fmt.Sprintf("unknown node type %q", node.Type)}
	}
}

func (it *Interpreter) sendMessage(ectx *model.ExecutionContext, cfg *model.MensagemConfig) error {
	if cfg.MediaUrl != "" {
		caption := util.ResolveTemplate(cfg.Text, ectx.Variables)
		_, err := it.messenger.SendMedia(ectx.TenantId, ectx.ConversationId, cfg.MediaUrl, caption)
		return err
	}
	text := util.ResolveTemplate(cfg.Text, ectx.Variables)
	_, err := it.messenger.SendText(ectx.TenantId, ectx.ConversationId, text)
	return err
}

// fail records a fatal mid-run condition and parks the context in ERROR for
// operator intervention. The error never propagates to the caller.
func (it *Interpreter) fail(ectx *model.ExecutionContext, nodeId string, event string, reason string) error {
	logger.Error("execution error",
		zap.String("tenantId", ectx.TenantId),
		zap.String("contextId", ectx.Id),
		zap.String("nodeId", nodeId),
		zap.String("event", event),
		zap.String("reason", reason),
		zap.Any("context", ectx))
	ectx.Status = model.CONTEXT_ERROR
	ectx.FailureReason = model.ExecutionError{NodeId: nodeId, Event: event, Message: reason}.Error()
	return it.contexts.Save(ectx)
}
