package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/feedback-sentinel/internal/core/alerting"
	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/core/ports"
)

const (
	DefaultDeliveryTimeout = 10 * time.Second
	defaultSettleTimeout   = 5 * time.Second
	defaultIdleBackoff     = time.Second
)

type DeliveryOptions struct {
	Retry          alerting.RetryPolicy
	AttemptTimeout time.Duration
	// SettleTimeout bounds Release, Requeue and dead-letter persistence.
	SettleTimeout time.Duration
	// IdleBackoff is the pause after a failed dequeue.
	IdleBackoff time.Duration
}

// DeliveryWorker drains the alert queue and applies the retry, backoff and
// dead-letter rules. One value can serve any number of concurrent Run loops.
type DeliveryWorker struct {
	queue       ports.AlertQueue
	transport   ports.AlertTransport
	deadLetters ports.DeadLetterStore
	opts        DeliveryOptions
	observer    ports.DeliveryObserver
	logger      *slog.Logger
	now         func() time.Time
}

func NewDeliveryWorker(
	queue ports.AlertQueue,
	transport ports.AlertTransport,
	deadLetters ports.DeadLetterStore,
	opts DeliveryOptions,
	logger *slog.Logger,
) *DeliveryWorker {
	opts.Retry = opts.Retry.Normalize()
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultDeliveryTimeout
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = defaultSettleTimeout
	}
	if opts.IdleBackoff <= 0 {
		opts.IdleBackoff = defaultIdleBackoff
	}
	return &DeliveryWorker{
		queue:       queue,
		transport:   transport,
		deadLetters: deadLetters,
		opts:        opts,
		logger:      loggerOrDefault(logger),
		now:         time.Now,
	}
}

func (w *DeliveryWorker) SetObserver(observer ports.DeliveryObserver) {
	w.observer = observer
}

// RunPool runs workers concurrent consumers until ctx is cancelled.
func (w *DeliveryWorker) RunPool(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		id := i
		g.Go(func() error {
			w.logger.Info("delivery_worker_started", "worker", id)
			defer w.logger.Info("delivery_worker_stopped", "worker", id)
			return w.Run(gctx)
		})
	}
	return g.Wait()
}

// Run claims and processes jobs until ctx is cancelled. A claimed job is always
// settled before Run returns, even when ctx is cancelled mid-attempt.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	for {
		claimed, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("alert_dequeue_failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.opts.IdleBackoff):
			}
			continue
		}
		w.Process(context.WithoutCancel(ctx), claimed)
	}
}

// Process runs one step of the delivery state machine for a claimed job and
// returns the outcome: delivered, scheduled or dead_lettered.
func (w *DeliveryWorker) Process(ctx context.Context, claimed ports.ClaimedJob) domain.JobState {
	job := claimed.Job()

	switch job.State {
	case domain.JobDeadLettered:
		// Delivery is already exhausted; only the record is outstanding.
		return w.deadLetter(ctx, claimed, job)
	case domain.JobDelivered:
		w.release(ctx, claimed, job)
		return domain.JobDelivered
	}

	now := w.now()
	if w.observer != nil {
		if lag := now.Sub(job.NextAttemptAt); lag > 0 {
			w.observer.ObserveQueueLag(lag)
		}
		w.observer.StartAttempt()
	}

	job.State = domain.JobAttempting
	attemptCtx, cancel := context.WithTimeout(ctx, w.opts.AttemptTimeout)
	err := w.transport.Deliver(attemptCtx, job.Payload)
	cancel()
	elapsed := w.now().Sub(now)

	outcome := w.settle(ctx, claimed, job, err)
	if w.observer != nil {
		w.observer.FinishAttempt(outcome, elapsed)
	}
	return outcome
}

func (w *DeliveryWorker) settle(ctx context.Context, claimed ports.ClaimedJob, job domain.AlertJob, deliverErr error) domain.JobState {
	if deliverErr == nil {
		job.State = domain.JobDelivered
		w.release(ctx, claimed, job)
		w.logger.Info("alert_delivered",
			"job_id", job.ID,
			"feedback_id", job.Payload.FeedbackID,
			"attempt", job.AttemptCount+1,
		)
		return domain.JobDelivered
	}

	job.AttemptCount++
	job.LastError = deliverErr.Error()

	if w.opts.Retry.Exhausted(job.AttemptCount) {
		job.State = domain.JobDeadLettered
		return w.deadLetter(ctx, claimed, job)
	}

	delay := w.opts.Retry.Backoff(job.AttemptCount)
	job.State = domain.JobPending
	job.NextAttemptAt = w.now().Add(delay).UTC()
	w.logger.Warn("alert_delivery_scheduled",
		"job_id", job.ID,
		"feedback_id", job.Payload.FeedbackID,
		"attempt", job.AttemptCount,
		"max_attempts", w.opts.Retry.MaxAttempts,
		"backoff", delay.String(),
		"error", deliverErr,
	)
	w.requeue(ctx, claimed, job)
	return domain.JobScheduled
}

func (w *DeliveryWorker) deadLetter(ctx context.Context, claimed ports.ClaimedJob, job domain.AlertJob) domain.JobState {
	letter := domain.NewDeadLetter(job, w.now())

	saveCtx, cancel := context.WithTimeout(ctx, w.opts.SettleTimeout)
	err := w.deadLetters.Save(saveCtx, letter)
	cancel()
	if err != nil {
		w.logger.Error("dead_letter_save_failed",
			"job_id", job.ID,
			"feedback_id", job.Payload.FeedbackID,
			"error", err,
		)
		job.State = domain.JobDeadLettered
		job.NextAttemptAt = w.now().Add(w.opts.Retry.Backoff(job.AttemptCount)).UTC()
		w.requeue(ctx, claimed, job)
		return domain.JobDeadLettered
	}

	w.logger.Error("alert_dead_lettered",
		"job_id", job.ID,
		"feedback_id", job.Payload.FeedbackID,
		"attempts", job.AttemptCount,
		"last_error", job.LastError,
	)
	w.release(ctx, claimed, job)
	return domain.JobDeadLettered
}

func (w *DeliveryWorker) release(ctx context.Context, claimed ports.ClaimedJob, job domain.AlertJob) {
	settleCtx, cancel := context.WithTimeout(ctx, w.opts.SettleTimeout)
	defer cancel()
	if err := claimed.Release(settleCtx); err != nil {
		w.logger.Error("alert_release_failed", "job_id", job.ID, "error", err)
	}
}

func (w *DeliveryWorker) requeue(ctx context.Context, claimed ports.ClaimedJob, job domain.AlertJob) {
	settleCtx, cancel := context.WithTimeout(ctx, w.opts.SettleTimeout)
	defer cancel()
	if err := claimed.Requeue(settleCtx, job); err != nil {
		w.logger.Error("alert_requeue_failed", "job_id", job.ID, "state", job.State, "error", err)
	}
}
