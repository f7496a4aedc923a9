package ports

import (
	"context"
	"time"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

// RuleScorer is the deterministic lexicon scorer. It never fails.
type RuleScorer interface {
	Score(text string) domain.Scores
	LexiconVersion() string
}

// AIScorer calls an external text-understanding service. Failures are reported
// inside the returned attempt, never as a separate error.
type AIScorer interface {
	Score(ctx context.Context, text string, timeout time.Duration) domain.AIAttempt
}

// AlertQueue hands alert jobs from the request path to delivery workers.
type AlertQueue interface {
	// Enqueue fails only with domain.ErrQueueUnavailable.
	Enqueue(ctx context.Context, job domain.AlertJob) error
	// Dequeue blocks until a due job is claimed or ctx is done.
	Dequeue(ctx context.Context) (ClaimedJob, error)
}

// ClaimedJob is exclusively owned by one worker until Release or Requeue.
type ClaimedJob interface {
	Job() domain.AlertJob
	// Release removes the job from the active queue.
	Release(ctx context.Context) error
	// Requeue replaces the claimed job with its updated state.
	Requeue(ctx context.Context, job domain.AlertJob) error
}

// AlertTransport delivers one alert. Failure reasons are opaque to the caller.
type AlertTransport interface {
	Deliver(ctx context.Context, payload domain.AlertPayload) error
}

type DeadLetterStore interface {
	Save(ctx context.Context, letter domain.DeadLetter) error
	List(ctx context.Context, limit int) ([]domain.DeadLetter, error)
}

type FeedbackRepository interface {
	SaveFeedback(ctx context.Context, result domain.AnalysisResult, rawText string, customer domain.Customer) (string, error)
}

type CustomerDirectory interface {
	// LookupCustomer returns nil, nil for unknown references.
	LookupCustomer(ctx context.Context, ref string) (*domain.Customer, error)
}

// DeliveryObserver receives worker outcomes for metrics.
type DeliveryObserver interface {
	StartAttempt()
	FinishAttempt(outcome domain.JobState, duration time.Duration)
	ObserveQueueLag(lag time.Duration)
}

// AnalysisObserver receives request path outcomes for metrics.
type AnalysisObserver interface {
	ObserveAnalysis(source domain.AnalysisSource, failure domain.AIFailure)
	ObserveAlertHandoff(enqueued bool, degraded bool)
}
