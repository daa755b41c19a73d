package persistence

import (
	"fmt"
	"time"

	"github.com/zapflowhq/zapflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type EmptyQueueError struct {
	QueueName string
}

func (e EmptyQueueError) Error() string {
	return fmt.Sprintf("queue %s is empty", e.QueueName)
}

// FlowStore is the read path over authored flow definitions. Definitions are
// validated before Save and read-only at run time.
type FlowStore interface {
	Save(flow model.Flow) error
	Get(tenantId string, flowId string) (*model.Flow, error)
	ListActive(tenantId string) ([]model.Flow, error)
	Delete(tenantId string, flowId string) error
}

// ClaimRef addresses one claimed context, used by the reconciliation sweep.
type ClaimRef struct {
	TenantId  string
	ContextId string
}

// ContextStore persists execution contexts. The interpreter is the sole
// writer; Claim is the concurrency primitive serializing all processing of
// one context.
type ContextStore interface {
	// Create persists a fresh context and binds it to its conversation.
	// It returns false without writing when the conversation already has a
	// non-DONE context, making duplicate inbound deliveries idempotent.
	Create(ctx *model.ExecutionContext) (bool, error)

	Get(tenantId string, contextId string) (*model.ExecutionContext, error)

	// GetByConversation returns the non-DONE context bound to a conversation
	// (ERROR included), or a model.NotFoundError when none exists.
	GetByConversation(tenantId string, conversationId string) (*model.ExecutionContext, error)

	// Claim transitions status IDLE/SUSPENDED -> PROCESSING as one conditional
	// write. Exactly one of any set of concurrent claims succeeds.
	Claim(tenantId string, contextId string) (bool, error)

	// Save persists the context with whatever status it carries, releasing
	// the claim when the status is no longer PROCESSING and unbinding the
	// conversation on DONE. ERROR keeps the binding so the conversation
	// cannot re-trigger until an operator intervenes.
	Save(ctx *model.ExecutionContext) error

	// ListProcessingOlderThan returns contexts that have held PROCESSING for
	// longer than the bound, for the reconciliation sweep.
	ListProcessingOlderThan(bound time.Duration) ([]ClaimRef, error)
}

// DelayQueue delivers messages after a delay, backing scheduled wakes.
type DelayQueue interface {
	PushWithDelay(queueName string, delay time.Duration, message []byte) error
	Pop(queueName string) ([]string, error)
}
