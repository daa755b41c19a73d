package flow

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zapflowhq/zapflow/model"
)

func TestTriggerMatcher(t *testing.T) {
	matcher := NewTriggerMatcher()

	firstMessage := model.Flow{
		Id: "f-first", TenantId: "t1", Active: true,
		Trigger: model.TriggerConfig{Type: model.TRIGGER_FIRST_MESSAGE},
	}
	keyword := model.Flow{
		Id: "f-kw", TenantId: "t1", Active: true,
		Trigger: model.TriggerConfig{Type: model.TRIGGER_KEYWORD_LIST, Keywords: []string{"promo", "oferta"}},
	}
	inactive := model.Flow{
		Id: "f-off", TenantId: "t1", Active: false,
		Trigger: model.TriggerConfig{Type: model.TRIGGER_KEYWORD_LIST, Keywords: []string{"promo"}},
	}

	t.Run("keyword beats first message regardless of listing order", func(t *testing.T) {
		msg := model.InboundMessage{TenantId: "t1", ConversationId: "c1", Body: "PROMO", FirstMessage: true}
		matched := matcher.Match([]model.Flow{firstMessage, keyword}, msg)
		require.NotNil(t, matched)
		require.Equal(t, "f-kw", matched.Id)
	})

	t.Run("keyword match is exact after normalization", func(t *testing.T) {
		msg := model.InboundMessage{TenantId: "t1", ConversationId: "c1", Body: "quero a promo", FirstMessage: false}
		require.Nil(t, matcher.Match([]model.Flow{keyword}, msg))

		msg.Body = "  Oferta "
		matched := matcher.Match([]model.Flow{keyword}, msg)
		require.NotNil(t, matched)
		require.Equal(t, "f-kw", matched.Id)
	})

	t.Run("first message trigger only fires on first message", func(t *testing.T) {
		msg := model.InboundMessage{TenantId: "t1", ConversationId: "c1", Body: "oi", FirstMessage: false}
		require.Nil(t, matcher.Match([]model.Flow{firstMessage}, msg))

		msg.FirstMessage = true
		matched := matcher.Match([]model.Flow{firstMessage}, msg)
		require.NotNil(t, matched)
		require.Equal(t, "f-first", matched.Id)
	})

	t.Run("inactive flows never match", func(t *testing.T) {
		msg := model.InboundMessage{TenantId: "t1", ConversationId: "c1", Body: "promo", FirstMessage: true}
		require.Nil(t, matcher.Match([]model.Flow{inactive}, msg))
	})
}
