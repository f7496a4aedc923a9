package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/core/ports"
)

type ruleScorerFake struct {
	scores domain.Scores
	calls  int
}

func (f *ruleScorerFake) Score(string) domain.Scores {
	f.calls++
	return f.scores
}

func (f *ruleScorerFake) LexiconVersion() string { return "test-lexicon" }

type aiScorerFake struct {
	attempt     domain.AIAttempt
	calls       int
	lastTimeout time.Duration
}

func (f *aiScorerFake) Score(_ context.Context, _ string, timeout time.Duration) domain.AIAttempt {
	f.calls++
	f.lastTimeout = timeout
	return f.attempt
}

type queueFake struct {
	mu       sync.Mutex
	jobs     []domain.AlertJob
	err      error
	released []domain.AlertJob
	requeued []domain.AlertJob
	ready    chan struct{}
}

func newQueueFake() *queueFake {
	return &queueFake{ready: make(chan struct{}, 16)}
}

func (q *queueFake) Enqueue(_ context.Context, job domain.AlertJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	q.ready <- struct{}{}
	return nil
}

func (q *queueFake) Dequeue(ctx context.Context) (ports.ClaimedJob, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.ready:
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return &claimFake{queue: q, job: job}, nil
}

func (q *queueFake) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type claimFake struct {
	queue      *queueFake
	job        domain.AlertJob
	requeueErr error
}

func (c *claimFake) Job() domain.AlertJob { return c.job }

func (c *claimFake) Release(context.Context) error {
	c.queue.mu.Lock()
	defer c.queue.mu.Unlock()
	c.queue.released = append(c.queue.released, c.job)
	return nil
}

func (c *claimFake) Requeue(_ context.Context, job domain.AlertJob) error {
	if c.requeueErr != nil {
		return c.requeueErr
	}
	c.queue.mu.Lock()
	defer c.queue.mu.Unlock()
	c.queue.requeued = append(c.queue.requeued, job)
	c.queue.jobs = append(c.queue.jobs, job)
	c.queue.ready <- struct{}{}
	return nil
}

type transportFake struct {
	mu       sync.Mutex
	errs     []error
	payloads []domain.AlertPayload
}

func (f *transportFake) Deliver(_ context.Context, payload domain.AlertPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	if len(f.errs) > 1 {
		f.errs = f.errs[1:]
	}
	return err
}

func (f *transportFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

type deadLetterFake struct {
	mu      sync.Mutex
	saveErr error
	saved   []domain.DeadLetter
	calls   int
}

func (f *deadLetterFake) Save(_ context.Context, letter domain.DeadLetter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, letter)
	return nil
}

func (f *deadLetterFake) List(context.Context, int) ([]domain.DeadLetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DeadLetter(nil), f.saved...), nil
}

type deliveryObserverFake struct {
	mu       sync.Mutex
	started  int
	outcomes []domain.JobState
}

func (f *deliveryObserverFake) StartAttempt() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *deliveryObserverFake) FinishAttempt(outcome domain.JobState, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *deliveryObserverFake) ObserveQueueLag(time.Duration) {}

type analysisObserverFake struct {
	sources  []domain.AnalysisSource
	handoffs []bool
	degraded int
}

func (f *analysisObserverFake) ObserveAnalysis(source domain.AnalysisSource, _ domain.AIFailure) {
	f.sources = append(f.sources, source)
}

func (f *analysisObserverFake) ObserveAlertHandoff(enqueued bool, degraded bool) {
	f.handoffs = append(f.handoffs, enqueued)
	if degraded {
		f.degraded++
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func negativeScores(negative float64) domain.Scores {
	topics := domain.NewTopicScores()
	topics[domain.TopicDelivery] = 1
	return domain.Scores{
		Sentiment: domain.SentimentScores{Positive: 1 - negative, Negative: negative},
		Topics:    topics,
	}
}
