package flow

import (
	"strings"

	"github.com/zapflowhq/zapflow/model"
)

// TriggerMatcher decides whether an inbound message should start a flow for
// a conversation with no active execution context.
type TriggerMatcher struct{}

func NewTriggerMatcher() *TriggerMatcher {
	return &TriggerMatcher{}
}

// Match evaluates the candidate flows in fixed specificity order: exact
// keyword matches before "first message of conversation" triggers. Within a
// specificity tier the first matching flow wins. Returns nil when nothing
// matches.
func (m *TriggerMatcher) Match(candidates []model.Flow, msg model.InboundMessage) *model.Flow {
	body := normalizeKeyword(msg.Body)
	for i := range candidates {
		f := &candidates[i]
		if !f.Active || f.Trigger.Type != model.TRIGGER_KEYWORD_LIST {
			continue
		}
		for _, keyword := range f.Trigger.Keywords {
			if normalizeKeyword(keyword) == body {
				return f
			}
		}
	}
	if !msg.FirstMessage {
		return nil
	}
	for i := range candidates {
		f := &candidates[i]
		if f.Active && f.Trigger.Type == model.TRIGGER_FIRST_MESSAGE {
			return f
		}
	}
	return nil
}

func normalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
