package engine

import (
	"github.com/google/uuid"
	"github.com/zapflowhq/zapflow/logger"
	"go.uber.org/zap"
)

// LogMessenger is the default Messenger wiring: it records sends instead of
// delivering them. Real channel providers replace it at composition time.
type LogMessenger struct{}

var _ Messenger = new(LogMessenger)

func NewLogMessenger() *LogMessenger {
	return &LogMessenger{}
}

func (m *LogMessenger) SendText(tenantId string, conversationId string, text string) (string, error) {
	deliveryId := uuid.New().String()
	logger.Info("outbound text message",
		zap.String("tenantId", tenantId),
		zap.String("conversationId", conversationId),
		zap.String("text", text),
		zap.String("deliveryId", deliveryId))
	return deliveryId, nil
}

func (m *LogMessenger) SendMedia(tenantId string, conversationId string, mediaUrl string, caption string) (string, error) {
	deliveryId := uuid.New().String()
	logger.Info("outbound media message",
		zap.String("tenantId", tenantId),
		zap.String("conversationId", conversationId),
		zap.String("mediaUrl", mediaUrl),
		zap.String("caption", caption),
		zap.String("deliveryId", deliveryId))
	return deliveryId, nil
}

// LogHandoff is the default HandoffService wiring.
type LogHandoff struct{}

var _ HandoffService = new(LogHandoff)

func NewLogHandoff() *LogHandoff {
	return &LogHandoff{}
}

func (h *LogHandoff) Transfer(tenantId string, conversationId string, target string) error {
	logger.Info("conversation handed off",
		zap.String("tenantId", tenantId),
		zap.String("conversationId", conversationId),
		zap.String("target", target))
	return nil
}
