package model

import "time"

type ContextStatus string

const CONTEXT_IDLE ContextStatus = "IDLE"
const CONTEXT_PROCESSING ContextStatus = "PROCESSING"
const CONTEXT_SUSPENDED ContextStatus = "SUSPENDED"
const CONTEXT_ERROR ContextStatus = "ERROR"
const CONTEXT_DONE ContextStatus = "DONE"

// Terminal reports whether no further processing may happen on a context.
func (s ContextStatus) Terminal() bool {
	return s == CONTEXT_DONE || s == CONTEXT_ERROR
}

// Events driving the interpreter state machine. Condition nodes fire
// author-declared branch events in addition to these.
const EVENT_PROXIMO string = "PROXIMO"
const EVENT_RESPOSTA_RECEBIDA string = "RESPOSTA_RECEBIDA"
const EVENT_TIMEOUT string = "TIMEOUT"
const EVENT_WEBHOOK_CALLBACK string = "WEBHOOK_CALLBACK"

// ExecutionContext is the persisted run-state of one flow instance bound to
// one conversation. Variables hold only JSON-representable values so the
// context round-trips through the codec unchanged.
type ExecutionContext struct {
	Id                  string         `json:"id"`
	TenantId            string         `json:"tenantId"`
	FlowId              string         `json:"flowId"`
	ConversationId      string         `json:"conversationId"`
	CurrentNode         string         `json:"currentNode"`
	Status              ContextStatus  `json:"status"`
	Variables           map[string]any `json:"variables"`
	AwaitingReply       bool           `json:"awaitingReply"`
	AwaitingVariable    string         `json:"awaitingVariable,omitempty"`
	LastWebhookResponse any            `json:"lastWebhookResponse,omitempty"`
	FailureReason       string         `json:"failureReason,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}
