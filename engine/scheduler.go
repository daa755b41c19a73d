package engine

import (
	"time"

	"github.com/zapflowhq/zapflow/logger"
	"github.com/zapflowhq/zapflow/model"
	"github.com/zapflowhq/zapflow/persistence"
	"github.com/zapflowhq/zapflow/util"
	"go.uber.org/zap"
)

const WAKE_QUEUE string = "wake"

// Scheduler registers deferred re-entries into the interpreter for Esperar
// and Webhook deadlines. A wake payload carries the node id the context is
// expected to still be at when the wake fires; the engine drops stale wakes
// instead of cancelling them.
type Scheduler struct {
	queue  persistence.DelayQueue
	encDec util.EncoderDecoder[model.WakePayload]
}

func NewScheduler(queue persistence.DelayQueue) *Scheduler {
	return &Scheduler{
		queue:  queue,
		encDec: util.NewJsonEncoderDecoder[model.WakePayload](),
	}
}

func (s *Scheduler) RegisterWake(tenantId string, contextId string, nodeId string, delay time.Duration) error {
	payload := model.WakePayload{
		ContextId: contextId,
		TenantId:  tenantId,
		NodeId:    nodeId,
	}
	data, err := s.encDec.Encode(payload)
	if err != nil {
		return err
	}
	if err := s.queue.PushWithDelay(WAKE_QUEUE, delay, data); err != nil {
		logger.Error("error registering wake", zap.String("contextId", contextId), zap.String("nodeId", nodeId), zap.Error(err))
		return err
	}
	logger.Debug("wake registered", zap.String("contextId", contextId), zap.String("nodeId", nodeId), zap.Duration("delay", delay))
	return nil
}

// Requeue pushes a wake back with a short delay, used when the wake lost the
// claim race against a concurrent event.
func (s *Scheduler) Requeue(payload model.WakePayload) error {
	data, err := s.encDec.Encode(payload)
	if err != nil {
		return err
	}
	return s.queue.PushWithDelay(WAKE_QUEUE, time.Second, data)
}

func (s *Scheduler) DecodeWake(data []byte) (*model.WakePayload, error) {
	return s.encDec.Decode(data)
}

// PollWakes drains the due wakes from the queue. An empty queue is not an
// error to the caller.
func (s *Scheduler) PollWakes() ([]model.WakePayload, error) {
	raw, err := s.queue.Pop(WAKE_QUEUE)
	if err != nil {
		if _, empty := err.(persistence.EmptyQueueError); empty {
			return nil, nil
		}
		return nil, err
	}
	wakes := make([]model.WakePayload, 0, len(raw))
	for _, r := range raw {
		payload, err := s.encDec.Decode([]byte(r))
		if err != nil {
			logger.Error("can not decode wake payload", zap.Error(err))
			continue
		}
		wakes = append(wakes, *payload)
	}
	return wakes, nil
}
