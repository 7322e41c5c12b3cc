package connector

import "sync"

// ChatQueue runs submitted work one item at a time per key, in submission
// order. Different keys run concurrently. A key's goroutine exits once its
// queue drains.
type ChatQueue struct {
	mu      sync.Mutex
	pending map[string][]func()
	wg      sync.WaitGroup
}

// NewChatQueue creates an empty queue.
func NewChatQueue() *ChatQueue {
	return &ChatQueue{pending: make(map[string][]func())}
}

// Submit queues fn behind earlier work for key.
func (q *ChatQueue) Submit(key string, fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if work, running := q.pending[key]; running {
		q.pending[key] = append(work, fn)
		return
	}
	q.pending[key] = []func(){fn}
	q.wg.Add(1)
	go q.drain(key)
}

func (q *ChatQueue) drain(key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		work := q.pending[key]
		if len(work) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		fn := work[0]
		q.pending[key] = work[1:]
		q.mu.Unlock()
		fn()
	}
}

// Wait blocks until all submitted work has run.
func (q *ChatQueue) Wait() {
	q.wg.Wait()
}
