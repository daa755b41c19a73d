package memory

import (
	"sync"
	"time"

	"github.com/zapflowhq/zapflow/persistence"
)

var _ persistence.DelayQueue = new(InMemDelayQueue)

type delayedItem struct {
	readyAt time.Time
	message []byte
}

// InMemDelayQueue mirrors the redis sorted-set delay queue: items become
// visible to Pop once their delay has elapsed.
type InMemDelayQueue struct {
	mu     sync.Mutex
	queues map[string][]delayedItem
	now    func() time.Time
}

func NewInMemDelayQueue() *InMemDelayQueue {
	return &InMemDelayQueue{
		queues: make(map[string][]delayedItem),
		now:    time.Now,
	}
}

// SetClock overrides the queue clock, used by tests to fast-forward time.
func (q *InMemDelayQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

func (q *InMemDelayQueue) PushWithDelay(queueName string, delay time.Duration, message []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[queueName] = append(q.queues[queueName], delayedItem{
		readyAt: q.now().Add(delay),
		message: message,
	})
	return nil
}

func (q *InMemDelayQueue) Pop(queueName string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	var due []string
	var pending []delayedItem
	for _, item := range q.queues[queueName] {
		if !item.readyAt.After(now) {
			due = append(due, string(item.message))
		} else {
			pending = append(pending, item)
		}
	}
	q.queues[queueName] = pending
	if len(due) == 0 {
		return nil, persistence.EmptyQueueError{QueueName: queueName}
	}
	return due, nil
}
