package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zapflowhq/zapflow/model"
)

func webhookFlow() model.Flow {
	return model.Flow{
		Id: "crm", TenantId: "t1", Name: "consulta-crm", Active: true,
		Trigger: model.TriggerConfig{Type: model.TRIGGER_FIRST_MESSAGE},
		Nodes: []model.Node{
			{Id: "inicio", Type: model.NODE_INICIO},
			{Id: "consulta", Type: model.NODE_WEBHOOK, Config: []byte(`{"url":"https://crm.example.com/lookup","method":"POST","timeoutMs":30000,"bodyTemplate":{"cliente":"{$.variables.contactId}"}}`)},
			{Id: "achou", Type: model.NODE_MENSAGEM, Config: []byte(`{"text":"Olá {$.variables.webhookResponse.nome}"}`)},
			{Id: "falhou", Type: model.NODE_MENSAGEM, Config: []byte(`{"text":"Não consegui consultar agora"}`)},
			{Id: "fim", Type: model.NODE_FIM},
		},
		Transitions: []model.Transition{
			{Id: "t1", OriginId: "inicio", DestId: "consulta", Event: model.EVENT_PROXIMO, Order: 1},
			{Id: "t2", OriginId: "consulta", DestId: "achou", Event: model.EVENT_WEBHOOK_CALLBACK, Order: 1},
			{Id: "t3", OriginId: "consulta", DestId: "falhou", Event: model.EVENT_TIMEOUT, Order: 1},
			{Id: "t4", OriginId: "achou", DestId: "fim", Event: model.EVENT_PROXIMO, Order: 1},
			{Id: "t5", OriginId: "falhou", DestId: "fim", Event: model.EVENT_PROXIMO, Order: 1},
		},
	}
}

func TestWebhookCallbackAdvancesContext(t *testing.T) {
	rig := newTestRig(t, webhookFlow())

	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "oi", true)))

	var req WebhookRequest
	select {
	case req = <-rig.webhooks.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook call never issued")
	}
	require.Equal(t, "https://crm.example.com/lookup", req.Url)
	require.Equal(t, "POST", req.Method)
	require.Equal(t, map[string]any{"cliente": "contact-1"}, req.Body)

	suspended, err := rig.contexts.GetByConversation("t1", "conv-1")
	require.NoError(t, err)
	require.Equal(t, model.CONTEXT_SUSPENDED, suspended.Status)
	require.Equal(t, "consulta", suspended.CurrentNode)

	cb := model.WebhookCallback{
		TenantId:  "t1",
		ContextId: suspended.Id,
		Payload:   map[string]any{"nome": "Maria"},
	}
	require.NoError(t, rig.engine.HandleWebhookCallback(cb))
	require.Equal(t, []string{"Olá Maria"}, rig.messenger.messages())

	final, err := rig.contexts.Get("t1", suspended.Id)
	require.NoError(t, err)
	require.Equal(t, model.CONTEXT_DONE, final.Status)
	require.Equal(t, map[string]any{"nome": "Maria"}, final.Variables["webhookResponse"])
}

func TestWebhookDeadlineWakeTakesTimeoutBranch(t *testing.T) {
	rig := newTestRig(t, webhookFlow())
	start := time.Now()
	clock := start
	rig.queue.SetClock(func() time.Time { return clock })

	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "oi", true)))
	<-rig.webhooks.calls
	suspended, err := rig.contexts.GetByConversation("t1", "conv-1")
	require.NoError(t, err)

	// no callback arrives before the deadline
	clock = start.Add(time.Minute)
	rig.fireDueWakes(t)
	require.Equal(t, []string{"Não consegui consultar agora"}, rig.messenger.messages())

	// the late callback hits a DONE context and is dropped
	done, err := rig.contexts.Get("t1", suspended.Id)
	require.NoError(t, err)
	require.Equal(t, model.CONTEXT_DONE, done.Status)
	cb := model.WebhookCallback{TenantId: "t1", ContextId: suspended.Id, Payload: map[string]any{"nome": "Maria"}}
	require.NoError(t, rig.engine.HandleWebhookCallback(cb))
	require.Equal(t, []string{"Não consegui consultar agora"}, rig.messenger.messages())
}

func validatedQuestionFlow() model.Flow {
	def := questionFlow()
	def.Nodes[1].Config = []byte(`{"variableName":"nome","validationRule":"^[A-Za-z]+$"}`)
	return def
}

func TestPerguntaValidationRuleReasks(t *testing.T) {
	rig := newTestRig(t, validatedQuestionFlow())

	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "oi", true)))
	suspended, err := rig.contexts.GetByConversation("t1", "conv-1")
	require.NoError(t, err)

	// a reply failing the rule leaves the context awaiting the same variable
	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "1234", false)))
	still, err := rig.contexts.Get("t1", suspended.Id)
	require.NoError(t, err)
	require.Equal(t, model.CONTEXT_SUSPENDED, still.Status)
	require.True(t, still.AwaitingReply)
	require.NotContains(t, still.Variables, "nome")

	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "Maria", false)))
	require.Equal(t, []string{"Olá Maria"}, rig.messenger.messages())
}

func TestSendFailureHaltMarksError(t *testing.T) {
	def := greetingFlow()
	def.OnSendFailure = model.SEND_FAILURE_HALT
	rig := newTestRig(t, def)
	rig.messenger.fail = true

	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "oi", true)))

	failed, err := rig.contexts.GetByConversation("t1", "conv-1")
	require.NoError(t, err)
	require.Equal(t, model.CONTEXT_ERROR, failed.Status)
	require.Contains(t, failed.FailureReason, "message send failed")
}

func TestSendFailureDefaultContinues(t *testing.T) {
	rig := newTestRig(t, greetingFlow())
	rig.messenger.fail = true

	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "oi", true)))

	// the context reached DONE despite the failed send, so the conversation
	// binding is released; an ERROR context would still hold it
	_, err := rig.contexts.GetByConversation("t1", "conv-1")
	var notFound model.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCancelEndsSuspendedContext(t *testing.T) {
	rig := newTestRig(t, questionFlow())

	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "oi", true)))
	suspended, err := rig.contexts.GetByConversation("t1", "conv-1")
	require.NoError(t, err)

	require.NoError(t, rig.engine.Cancel("t1", suspended.Id))

	cancelled, err := rig.contexts.Get("t1", suspended.Id)
	require.NoError(t, err)
	require.Equal(t, model.CONTEXT_DONE, cancelled.Status)
	require.False(t, cancelled.AwaitingReply)

	// cancelling an already terminal context is a no-op
	require.NoError(t, rig.engine.Cancel("t1", suspended.Id))
}

func TestResetReturnsErrorContextToSuspended(t *testing.T) {
	def := questionFlow()
	def.Transitions = def.Transitions[:1]
	rig := newTestRig(t, def)

	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "oi", true)))
	suspended, err := rig.contexts.GetByConversation("t1", "conv-1")
	require.NoError(t, err)
	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "Maria", false)))

	failed, err := rig.contexts.Get("t1", suspended.Id)
	require.NoError(t, err)
	require.Equal(t, model.CONTEXT_ERROR, failed.Status)

	require.NoError(t, rig.engine.Reset("t1", suspended.Id))
	reset, err := rig.contexts.Get("t1", suspended.Id)
	require.NoError(t, err)
	require.Equal(t, model.CONTEXT_SUSPENDED, reset.Status)
	require.Empty(t, reset.FailureReason)

	// resetting a non-ERROR context is rejected
	require.Error(t, rig.engine.Reset("t1", suspended.Id))
}

func TestKeywordTriggerStartsFlowMidConversation(t *testing.T) {
	def := greetingFlow()
	def.Id = "promo"
	def.Trigger = model.TriggerConfig{Type: model.TRIGGER_KEYWORD_LIST, Keywords: []string{"promoção"}}
	rig := newTestRig(t, def)

	// not a first message and no keyword match: nothing happens
	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "bom dia", false)))
	require.Empty(t, rig.messenger.messages())

	require.NoError(t, rig.engine.HandleInboundMessage(inbound("conv-1", "  Promoção ", false)))
	require.Equal(t, []string{"Olá!"}, rig.messenger.messages())
}
