package nats

import (
	"math"
	"sync"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

const (
	settledForGood       = math.MaxInt
	defaultProgressLimit = 10000
)

// progressTracker remembers how far this process has carried each job. A copy
// left behind by a failed ack carries a lower attempt count than the copy that
// replaced it and is dropped instead of attempted again.
type progressTracker struct {
	mu       sync.Mutex
	limit    int
	attempts map[string]int
}

func newProgressTracker(limit int) *progressTracker {
	if limit <= 0 {
		limit = defaultProgressLimit
	}
	return &progressTracker{limit: limit, attempts: make(map[string]int)}
}

func (p *progressTracker) stale(job domain.AlertJob) bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.attempts[job.ID]
	return ok && job.AttemptCount < last
}

func (p *progressTracker) requeued(job domain.AlertJob) {
	p.record(job.ID, job.AttemptCount)
}

func (p *progressTracker) released(id string) {
	p.record(id, settledForGood)
}

func (p *progressTracker) record(id string, attempts int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.attempts[id]; ok && last >= attempts {
		return
	}
	if len(p.attempts) >= p.limit {
		p.attempts = make(map[string]int)
	}
	p.attempts[id] = attempts
}
