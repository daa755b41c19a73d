package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zapflowhq/zapflow/flow"
	"github.com/zapflowhq/zapflow/logger"
	"github.com/zapflowhq/zapflow/metadata"
	"github.com/zapflowhq/zapflow/model"
	"github.com/zapflowhq/zapflow/persistence"
	"go.uber.org/zap"
)

// Engine is the entry point for every external event touching the flow
// interpreter: inbound messages, webhook callbacks, scheduler wakes and
// operator actions. It owns trigger matching for conversations without an
// active context.
type Engine struct {
	contexts    persistence.ContextStore
	flows       metadata.FlowService
	matcher     *flow.TriggerMatcher
	interpreter *Interpreter
	scheduler   *Scheduler
}

func NewEngine(contexts persistence.ContextStore, flows metadata.FlowService, interpreter *Interpreter, scheduler *Scheduler) *Engine {
	return &Engine{
		contexts:    contexts,
		flows:       flows,
		matcher:     flow.NewTriggerMatcher(),
		interpreter: interpreter,
		scheduler:   scheduler,
	}
}

// HandleInboundMessage routes an inbound message either to the trigger
// matcher (no active context) or to the interpreter as RESPOSTA_RECEBIDA.
// ErrContextBusy means the caller must re-deliver the message later.
func (e *Engine) HandleInboundMessage(msg model.InboundMessage) error {
	ectx, err := e.contexts.GetByConversation(msg.TenantId, msg.ConversationId)
	if err != nil {
		var notFound model.NotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		return e.trigger(msg)
	}
	return e.interpreter.Run(msg.TenantId, ectx.Id, model.EVENT_RESPOSTA_RECEBIDA, msg.Body)
}

func (e *Engine) trigger(msg model.InboundMessage) error {
	candidates, err := e.flows.ListActiveFlows(msg.TenantId)
	if err != nil {
		return err
	}
	matched := e.matcher.Match(candidates, msg)
	if matched == nil {
		logger.Debug("no flow triggered", zap.String("tenantId", msg.TenantId), zap.String("conversationId", msg.ConversationId))
		return nil
	}
	runtime, err := e.flows.GetFlow(msg.TenantId, matched.Id)
	if err != nil {
		return err
	}
	now := time.Now()
	ectx := &model.ExecutionContext{
		Id:             uuid.New().String(),
		TenantId:       msg.TenantId,
		FlowId:         matched.Id,
		ConversationId: msg.ConversationId,
		CurrentNode:    runtime.Root,
		Status:         model.CONTEXT_IDLE,
		Variables:      map[string]any{"contactId": msg.ContactId, "firstMessage": msg.Body},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := e.contexts.Create(ectx)
	if err != nil {
		return err
	}
	if !created {
		// Duplicate delivery of the same inbound event, someone else already
		// started this conversation.
		logger.Debug("conversation already has an active context", zap.String("conversationId", msg.ConversationId))
		return nil
	}
	logger.Info("flow triggered",
		zap.String("tenantId", msg.TenantId),
		zap.String("flowId", matched.Id),
		zap.String("conversationId", msg.ConversationId),
		zap.String("contextId", ectx.Id))
	return e.interpreter.Run(msg.TenantId, ectx.Id, "", nil)
}

// HandleWebhookCallback feeds an asynchronous webhook response into a
// context suspended at a Webhook node. Late callbacks, after the deadline
// wake already advanced the context, are dropped by the node-type check and
// the claim.
func (e *Engine) HandleWebhookCallback(cb model.WebhookCallback) error {
	ectx, err := e.contexts.Get(cb.TenantId, cb.ContextId)
	if err != nil {
		return err
	}
	if ectx.Status != model.CONTEXT_SUSPENDED {
		logger.Debug("dropping webhook callback for context not suspended", zap.String("contextId", cb.ContextId), zap.String("status", string(ectx.Status)))
		return nil
	}
	f, err := e.flows.GetFlow(cb.TenantId, ectx.FlowId)
	if err != nil {
		return err
	}
	node, ok := f.Node(ectx.CurrentNode)
	if !ok || node.Type != model.NODE_WEBHOOK {
		logger.Debug("dropping webhook callback, context moved on", zap.String("contextId", cb.ContextId), zap.String("currentNode", ectx.CurrentNode))
		return nil
	}
	// The node read above races against concurrent events; RunAt re-verifies
	// it under the claim.
	return e.interpreter.RunAt(cb.TenantId, cb.ContextId, node.Id, model.EVENT_WEBHOOK_CALLBACK, cb.Payload)
}

// HandleWake re-enters the interpreter with a synthetic TIMEOUT, but only if
// the context still sits at the node the wake was registered for. A context
// that advanced via a real reply or callback makes the wake a no-op.
func (e *Engine) HandleWake(payload model.WakePayload) error {
	ectx, err := e.contexts.Get(payload.TenantId, payload.ContextId)
	if err != nil {
		var notFound model.NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	if ectx.CurrentNode != payload.NodeId || ectx.Status != model.CONTEXT_SUSPENDED {
		logger.Debug("dropping stale wake",
			zap.String("contextId", payload.ContextId),
			zap.String("expectedNode", payload.NodeId),
			zap.String("currentNode", ectx.CurrentNode),
			zap.String("status", string(ectx.Status)))
		return nil
	}
	err = e.interpreter.RunAt(payload.TenantId, payload.ContextId, payload.NodeId, model.EVENT_TIMEOUT, nil)
	if errors.Is(err, ErrContextBusy) {
		// A real event holds the claim right now. Requeue, the node-identity
		// guard will drop the wake if that event advanced the context.
		return e.scheduler.Requeue(payload)
	}
	return err
}

// Cancel ends a context immediately, e.g. on human takeover or flow
// deactivation. Pending wakes become no-ops via the node-identity guard.
func (e *Engine) Cancel(tenantId string, contextId string) error {
	claimed, err := e.contexts.Claim(tenantId, contextId)
	if err != nil {
		return err
	}
	if !claimed {
		ectx, err := e.contexts.Get(tenantId, contextId)
		if err != nil {
			return err
		}
		if ectx.Status.Terminal() {
			return nil
		}
		return ErrContextBusy
	}
	ectx, err := e.contexts.Get(tenantId, contextId)
	if err != nil {
		return err
	}
	ectx.Status = model.CONTEXT_DONE
	ectx.AwaitingReply = false
	ectx.AwaitingVariable = ""
	logger.Info("context cancelled", zap.String("tenantId", tenantId), zap.String("contextId", contextId))
	return e.contexts.Save(ectx)
}

// Reset returns an ERROR context to SUSPENDED at its current node so that a
// later event can resume it. The engine never does this on its own.
func (e *Engine) Reset(tenantId string, contextId string) error {
	ectx, err := e.contexts.Get(tenantId, contextId)
	if err != nil {
		return err
	}
	if ectx.Status != model.CONTEXT_ERROR {
		return model.ValidationError{Message: "only contexts in ERROR can be reset"}
	}
	ectx.Status = model.CONTEXT_SUSPENDED
	ectx.FailureReason = ""
	logger.Info("context reset", zap.String("tenantId", tenantId), zap.String("contextId", contextId))
	return e.contexts.Save(ectx)
}

// GetContext exposes the persisted context for operator inspection.
func (e *Engine) GetContext(tenantId string, contextId string) (*model.ExecutionContext, error) {
	return e.contexts.Get(tenantId, contextId)
}
