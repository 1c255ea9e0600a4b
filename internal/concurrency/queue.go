// Package concurrency implements the Concurrency Manager (spec.md §4.11):
// a priority job queue serialized per target, a bounded worker pool, and
// an adaptive command throttle. Grounded on the teacher's
// internal/queries/dispatcher.go pending-queue pattern and
// internal/pagination's cursor/queue bookkeeping idiom.
package concurrency

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Job is one unit of per-target-serialized work submitted to the manager.
type Job struct {
	ID       string
	TargetID string
	Priority int
	Run      func(ctx context.Context) error
}

type queueItem struct {
	job Job
	seq uint64
}

// queue is a priority-ordered, FIFO-within-priority pending list. Items
// are not removed in strict heap order: the scheduler must be able to
// skip over a head item whose target is currently busy and take the next
// eligible one instead, which a container/heap pop does not support
// directly.
type queue struct {
	mu    sync.Mutex
	items []*queueItem
	seq   uint64
}

func newQueue() *queue { return &queue{} }

func (q *queue) push(j Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	q.items = append(q.items, &queueItem{job: j, seq: q.seq})
	sort.SliceStable(q.items, func(i, k int) bool {
		if q.items[i].job.Priority != q.items[k].job.Priority {
			return q.items[i].job.Priority > q.items[k].job.Priority
		}
		return q.items[i].seq < q.items[k].seq
	})
}

// popEligible removes and returns the highest-priority item whose target
// id is not in busy, or (Job{}, false) if none qualifies.
func (q *queue) popEligible(busy map[string]bool) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if busy[it.job.TargetID] {
			continue
		}
		q.items = append(q.items[:i:i], q.items[i+1:]...)
		return it.job, true
	}
	return Job{}, false
}

func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

const schedulerPollInterval = 100 * time.Millisecond
