package model

// InboundMessage is a message delivered by a channel connector, new
// conversation or reply alike.
type InboundMessage struct {
	TenantId       string `json:"tenantId"`
	ConversationId string `json:"conversationId"`
	ContactId      string `json:"contactId,omitempty"`
	Body           string `json:"body"`
	FirstMessage   bool   `json:"firstMessage"`
}

// WakePayload is what the scheduler enqueues for a deferred re-entry. The
// interpreter is only re-invoked when the context still sits at NodeId.
type WakePayload struct {
	ContextId string `json:"contextId"`
	TenantId  string `json:"tenantId"`
	NodeId    string `json:"nodeId"`
}

// WebhookCallback is the asynchronous response of an outbound webhook call.
type WebhookCallback struct {
	ContextId string `json:"contextId"`
	TenantId  string `json:"tenantId"`
	Payload   any    `json:"payload"`
}
