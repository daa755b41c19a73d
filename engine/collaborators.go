package engine

import "context"

// Messenger sends outbound messages through a channel provider. Delivery
// retry policy is owned by the implementation, not the engine.
type Messenger interface {
	SendText(tenantId string, conversationId string, text string) (deliveryId string, err error)
	SendMedia(tenantId string, conversationId string, mediaUrl string, caption string) (deliveryId string, err error)
}

// HandoffService moves a conversation to a human queue or user. After a
// successful transfer the bot is done with the conversation.
type HandoffService interface {
	Transfer(tenantId string, conversationId string, target string) error
}

// WebhookRequest is the resolved outbound call of a Webhook node.
type WebhookRequest struct {
	Url       string
	Method    string
	Headers   map[string]string
	Body      map[string]any
	TimeoutMs int64
}

// WebhookCaller issues the outbound webhook call. The response arrives later
// as an asynchronous callback, so the call result itself is discarded beyond
// logging.
type WebhookCaller interface {
	Call(ctx context.Context, req WebhookRequest) error
}
