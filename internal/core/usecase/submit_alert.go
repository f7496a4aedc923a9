package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/feedback-sentinel/internal/core/alerting"
	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/core/ports"
)

const (
	DefaultHandoffTimeout = 2 * time.Second

	QueueUnavailableWarning = "alert could not be queued for delivery; the feedback was saved"
)

// alertJobNamespace scopes UUIDv5 job ids derived from feedback ids.
var alertJobNamespace = uuid.MustParse("6f1c9a3e-58b2-4c1e-9d0a-2f7e4b8c1d55")

// AlertJobID maps one feedback event to exactly one alert job.
func AlertJobID(feedbackID string) string {
	return uuid.NewSHA1(alertJobNamespace, []byte(feedbackID)).String()
}

type SubmitAlertUseCase struct {
	policy         alerting.Policy
	queue          ports.AlertQueue
	handoffTimeout time.Duration
	observer       ports.AnalysisObserver
	logger         *slog.Logger
	now            func() time.Time
}

func NewSubmitAlertUseCase(policy alerting.Policy, queue ports.AlertQueue, handoffTimeout time.Duration, logger *slog.Logger) *SubmitAlertUseCase {
	if handoffTimeout <= 0 {
		handoffTimeout = DefaultHandoffTimeout
	}
	return &SubmitAlertUseCase{
		policy:         policy,
		queue:          queue,
		handoffTimeout: handoffTimeout,
		logger:         loggerOrDefault(logger),
		now:            time.Now,
	}
}

func (uc *SubmitAlertUseCase) SetObserver(observer ports.AnalysisObserver) {
	uc.observer = observer
}

// SubmitAlertIfNeeded never waits for delivery. A queue that cannot accept the
// job within the handoff timeout yields a warning instead of an error.
func (uc *SubmitAlertUseCase) SubmitAlertIfNeeded(
	ctx context.Context,
	result *domain.AnalysisResult,
	feedbackID string,
	customer domain.Customer,
) (bool, string) {
	return uc.submit(ctx, result, feedbackID, customer, "")
}

// SubmitFeedbackAlert is SubmitAlertIfNeeded for a stored feedback record; the
// alert carries the feedback text.
func (uc *SubmitAlertUseCase) SubmitFeedbackAlert(ctx context.Context, feedback *domain.Feedback) (bool, string) {
	if feedback == nil {
		return false, ""
	}
	return uc.submit(ctx, &feedback.Analysis, feedback.ID, feedback.Customer, feedback.Text)
}

func (uc *SubmitAlertUseCase) submit(
	ctx context.Context,
	result *domain.AnalysisResult,
	feedbackID string,
	customer domain.Customer,
	text string,
) (bool, string) {
	if !uc.policy.ShouldAlert(result) {
		return false, ""
	}

	now := uc.now().UTC()
	job := domain.AlertJob{
		ID: AlertJobID(feedbackID),
		Payload: domain.AlertPayload{
			FeedbackID:     feedbackID,
			Customer:       customer,
			SentimentScore: result.SentimentScores.Negative,
			MainTopic:      result.MainTopic,
			FeedbackText:   text,
		},
		NextAttemptAt: now,
		State:         domain.JobPending,
		CreatedAt:     now,
	}

	handoffCtx, cancel := context.WithTimeout(ctx, uc.handoffTimeout)
	defer cancel()

	if err := uc.queue.Enqueue(handoffCtx, job); err != nil {
		uc.logger.WarnContext(ctx, "alert_enqueue_failed",
			"feedback_id", feedbackID,
			"job_id", job.ID,
			"error", err,
		)
		uc.observeHandoff(false, true)
		return false, QueueUnavailableWarning
	}

	uc.logger.InfoContext(ctx, "alert_enqueued",
		"feedback_id", feedbackID,
		"job_id", job.ID,
		"negative", result.SentimentScores.Negative,
		"main_topic", result.MainTopic,
	)
	uc.observeHandoff(true, false)
	return true, ""
}

func (uc *SubmitAlertUseCase) observeHandoff(enqueued, degraded bool) {
	if uc.observer != nil {
		uc.observer.ObserveAlertHandoff(enqueued, degraded)
	}
}
