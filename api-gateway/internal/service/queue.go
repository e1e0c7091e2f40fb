package service

import "sync"

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// keyedQueue orders background work per key. Work queued under one key
// starts only after the previous work for that key has finished; different
// keys run independently.
type keyedQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func newKeyedQueue() *keyedQueue {
	return &keyedQueue{tails: make(map[string]chan struct{})}
}

// enter reserves the next slot for key. The caller waits on the returned
// channel before starting and calls done when finished.
func (q *keyedQueue) enter(key string) (wait <-chan struct{}, done func()) {
	ch := make(chan struct{})

	q.mu.Lock()
	prev, ok := q.tails[key]
	q.tails[key] = ch
	q.mu.Unlock()

	if !ok {
		prev = closedChan
	}

	return prev, func() {
		close(ch)
		q.mu.Lock()
		if q.tails[key] == ch {
			delete(q.tails, key)
		}
		q.mu.Unlock()
	}
}

