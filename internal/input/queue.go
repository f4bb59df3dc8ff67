package input

import "sync"

// Queue is an unbounded FIFO of commands. Push never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []Command
	quit   chan struct{}
	quitOK bool
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(c Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, c)
	if c.Kind == Quit && !q.quitOK {
		close(q.quitLocked())
		q.quitOK = true
	}
}

// QuitRequested is closed once a Quit has been pushed. The Quit stays
// queued for Drain.
func (q *Queue) QuitRequested() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.quitLocked()
}

func (q *Queue) quitLocked() chan struct{} {
	if q.quit == nil {
		q.quit = make(chan struct{})
	}
	return q.quit
}

// Drain returns every queued command in emission order and empties the queue.
func (q *Queue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
