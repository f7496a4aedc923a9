// Package memory is a bounded in-process alert queue for single-process
// deployments. Jobs do not survive a restart.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/core/ports"
)

const DefaultCapacity = 1024

var errAlreadySettled = errors.New("claim already settled")

type entry struct {
	job domain.AlertJob
	seq uint64
}

// Queue orders jobs by next_attempt_at, then by arrival.
type Queue struct {
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	items   []entry
	ids     map[string]struct{}
	seq     uint64
	changed chan struct{}
}

func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		capacity: capacity,
		now:      time.Now,
		ids:      make(map[string]struct{}),
		changed:  make(chan struct{}),
	}
}

// Enqueue never blocks. A job id that is already queued or claimed is accepted
// without a second copy.
func (q *Queue) Enqueue(_ context.Context, job domain.AlertJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.ids[job.ID]; ok {
		return nil
	}
	if len(q.ids) >= q.capacity {
		return domain.WrapError(domain.ErrQueueUnavailable, "memory enqueue", fmt.Errorf("capacity %d reached", q.capacity))
	}
	q.ids[job.ID] = struct{}{}
	q.insertLocked(job)
	return nil
}

func (q *Queue) Dequeue(ctx context.Context) (ports.ClaimedJob, error) {
	for {
		q.mu.Lock()
		wait := time.Duration(-1)
		if len(q.items) > 0 {
			head := q.items[0]
			if until := head.job.NextAttemptAt.Sub(q.now()); until > 0 {
				wait = until
			} else {
				q.items = q.items[1:]
				q.mu.Unlock()
				return &claim{queue: q, job: head.job}, nil
			}
		}
		changed := q.changed
		q.mu.Unlock()

		var (
			timer *time.Timer
			fired <-chan time.Time
		)
		if wait >= 0 {
			timer = time.NewTimer(wait)
			fired = timer.C
		}
		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil, ctx.Err()
		case <-changed:
		case <-fired:
		}
		stopTimer(timer)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Len counts queued jobs, excluding claimed ones.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) insertLocked(job domain.AlertJob) {
	q.seq++
	e := entry{job: job, seq: q.seq}
	idx := sort.Search(len(q.items), func(i int) bool {
		other := q.items[i]
		if other.job.NextAttemptAt.Equal(e.job.NextAttemptAt) {
			return other.seq > e.seq
		}
		return other.job.NextAttemptAt.After(e.job.NextAttemptAt)
	})
	q.items = append(q.items, entry{})
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = e

	close(q.changed)
	q.changed = make(chan struct{})
}

type claim struct {
	queue   *Queue
	job     domain.AlertJob
	settled bool
}

func (c *claim) Job() domain.AlertJob { return c.job }

func (c *claim) Release(context.Context) error {
	q := c.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	if c.settled {
		return errAlreadySettled
	}
	c.settled = true
	delete(q.ids, c.job.ID)
	return nil
}

func (c *claim) Requeue(_ context.Context, job domain.AlertJob) error {
	q := c.queue
	q.mu.Lock()
	defer q.mu.Unlock()
	if c.settled {
		return errAlreadySettled
	}
	if job.ID != c.job.ID {
		return fmt.Errorf("requeue job %s on claim for %s", job.ID, c.job.ID)
	}
	c.settled = true
	q.insertLocked(job)
	return nil
}
