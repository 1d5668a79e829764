package session

import (
	"sync"

	"github.com/eapache/queue"
)

// serialQueue runs submitted tasks one at a time, in submission order, on a
// single goroutine. Submission never blocks on the task backlog.
type serialQueue struct {
	mu     sync.Mutex
	tasks  *queue.Queue
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newSerialQueue() *serialQueue {
	q := &serialQueue{
		tasks: queue.New(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go q.loop()
	return q
}

// async queues task. It returns false once the queue is closed.
func (q *serialQueue) async(task func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks.Add(task)
	q.mu.Unlock()

	q.signal()
	return true
}

// sync queues task and waits for it to run. Must not be called from a task.
func (q *serialQueue) sync(task func()) bool {
	ran := make(chan struct{})
	if !q.async(func() {
		defer close(ran)
		task()
	}) {
		return false
	}
	<-ran
	return true
}

// close rejects new tasks. Tasks already queued still run.
func (q *serialQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

func (q *serialQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *serialQueue) loop() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for q.tasks.Length() > 0 {
			task := q.tasks.Remove().(func())
			q.mu.Unlock()
			task()
			q.mu.Lock()
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return
		}
		<-q.wake
	}
}
