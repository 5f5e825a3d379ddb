package runner

import (
	"sync"

	"go.trai.ch/lyric/internal/core/domain"
)

// notice is a notification on its way to the event loop.
type notice struct {
	domain.TaskNotification
	// dispatched is set when the notice accounts for an item popped from the ready queue.
	dispatched bool
	// skipped is set when the popped item was dropped without touching the task.
	skipped bool
}

// notifyQueue carries notices from workers to the event loop. wake holds at most
// one pending signal, so a push is never lost between a take and the next wait.
type notifyQueue struct {
	mu    sync.Mutex
	items []notice
	wake  chan struct{}
}

func newNotifyQueue() *notifyQueue {
	return &notifyQueue{wake: make(chan struct{}, 1)}
}

func (q *notifyQueue) push(n notice) {
	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()
	q.signal()
}

func (q *notifyQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *notifyQueue) take() []notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *notifyQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}
