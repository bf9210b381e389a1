package webhooks

import "sync"

// Queue is an unbounded FIFO of delivery jobs, safe for concurrent use.
// Retries are appended at the back.
type Queue struct {
	mu    sync.Mutex
	items []Job
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(job Job) {
	q.mu.Lock()
	q.items = append(q.items, job)
	q.mu.Unlock()
}

func (q *Queue) Pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Job{}, false
	}
	job := q.items[0]
	q.items[0] = Job{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return job, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear empties the queue and returns what was pending.
func (q *Queue) Clear() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
