package runner

import (
	"math/rand/v2"
	"sync"
	"time"

	"go.trai.ch/lyric/internal/core/domain"
)

// ItemKind tags a ReadyItem.
type ItemKind int

const (
	// ItemTask asks a worker to run a task.
	ItemTask ItemKind = iota
	// ItemShutdown tells the worker that pops it to exit.
	ItemShutdown
	// ItemTimeout is returned when no item arrived in time.
	ItemTimeout
)

// ReadyItem is an entry of the ready queue.
type ReadyItem struct {
	Kind ItemKind
	Key  domain.TaskKey
	// Dependent is the task whose request admitted this one. It is set only when
	// HasDependent is true, on the first dispatch of a dependency.
	Dependent    domain.TaskKey
	HasDependent bool
}

// readyQueue is a FIFO of ready items with a bounded blocking pop.
type readyQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []ReadyItem

	rngMu sync.Mutex
	rng   *rand.Rand
}

func newReadyQueue(seed uint64) *readyQueue {
	q := &readyQueue{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *readyQueue) push(item ReadyItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *readyQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// pop removes the oldest item, waiting up to timeout for one to arrive.
func (q *readyQueue) pop(timeout time.Duration) ReadyItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		expired := false
		timer := time.AfterFunc(timeout, func() {
			q.mu.Lock()
			expired = true
			q.mu.Unlock()
			q.cond.Broadcast()
		})
		for len(q.items) == 0 && !expired {
			q.cond.Wait()
		}
		timer.Stop()
		if len(q.items) == 0 {
			return ReadyItem{Kind: ItemTimeout}
		}
	}

	item := q.items[0]
	q.items[0] = ReadyItem{}
	q.items = q.items[1:]
	return item
}

// jitter returns a duration in [d/2, d].
func (q *readyQueue) jitter(d time.Duration) time.Duration {
	half := d / 2
	q.rngMu.Lock()
	defer q.rngMu.Unlock()
	return half + time.Duration(q.rng.Int64N(int64(d-half)+1))
}
