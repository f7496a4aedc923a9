package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/feedback-sentinel/internal/core/alerting"
	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/core/scoring"
)

func analysisWithNegative(negative float64) *domain.AnalysisResult {
	result := scoring.Aggregator{}.Aggregate(negativeScores(negative), domain.AIAttempt{})
	return &result
}

func TestSubmitAlertEnqueuesAboveThreshold(t *testing.T) {
	queue := newQueueFake()
	observer := &analysisObserverFake{}
	clock := newFakeClock()
	uc := NewSubmitAlertUseCase(alerting.NewPolicy(alerting.DefaultThreshold), queue, time.Second, nil)
	uc.now = clock.Now
	uc.SetObserver(observer)

	customer := domain.Customer{Ref: "c-7", Name: "Ada", Phone: "+100"}
	enqueued, warning := uc.SubmitAlertIfNeeded(context.Background(), analysisWithNegative(0.9), "fb-1", customer)
	if !enqueued || warning != "" {
		t.Fatalf("expected enqueue without warning, got %v %q", enqueued, warning)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(queue.jobs))
	}

	job := queue.jobs[0]
	if job.ID != AlertJobID("fb-1") {
		t.Fatalf("expected deterministic job id, got %s", job.ID)
	}
	if job.State != domain.JobPending || job.AttemptCount != 0 {
		t.Fatalf("unexpected job state %+v", job)
	}
	if !job.NextAttemptAt.Equal(clock.Now()) {
		t.Fatalf("expected job due immediately, got %s", job.NextAttemptAt)
	}
	if job.Payload.SentimentScore != 0.9 || job.Payload.MainTopic != domain.TopicDelivery || job.Payload.Customer != customer {
		t.Fatalf("unexpected payload %+v", job.Payload)
	}
	if len(observer.handoffs) != 1 || !observer.handoffs[0] {
		t.Fatalf("expected observed handoff, got %v", observer.handoffs)
	}
}

func TestSubmitAlertSkipsAtThreshold(t *testing.T) {
	queue := newQueueFake()
	uc := NewSubmitAlertUseCase(alerting.NewPolicy(0.6), queue, 0, nil)

	enqueued, warning := uc.SubmitAlertIfNeeded(context.Background(), analysisWithNegative(0.6), "fb-2", domain.Customer{})
	if enqueued || warning != "" {
		t.Fatalf("expected no alert at threshold, got %v %q", enqueued, warning)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("expected empty queue")
	}
}

func TestSubmitAlertDegradesWhenQueueUnavailable(t *testing.T) {
	queue := newQueueFake()
	queue.err = domain.WrapError(domain.ErrQueueUnavailable, "enqueue", context.DeadlineExceeded)
	observer := &analysisObserverFake{}
	uc := NewSubmitAlertUseCase(alerting.NewPolicy(0.6), queue, 0, nil)
	uc.SetObserver(observer)

	enqueued, warning := uc.SubmitAlertIfNeeded(context.Background(), analysisWithNegative(1.0), "fb-3", domain.Customer{})
	if enqueued {
		t.Fatalf("expected enqueue to fail")
	}
	if warning != QueueUnavailableWarning {
		t.Fatalf("expected queue warning, got %q", warning)
	}
	if observer.degraded != 1 {
		t.Fatalf("expected degraded handoff to be observed")
	}
}

func TestSubmitFeedbackAlertCarriesText(t *testing.T) {
	queue := newQueueFake()
	uc := NewSubmitAlertUseCase(alerting.NewPolicy(0.6), queue, 0, nil)

	feedback := &domain.Feedback{
		ID:       "fb-4",
		Text:     "broken on arrival",
		Customer: domain.Customer{Name: "Lin"},
		Analysis: *analysisWithNegative(0.95),
	}
	enqueued, _ := uc.SubmitFeedbackAlert(context.Background(), feedback)
	if !enqueued {
		t.Fatalf("expected alert")
	}
	if got := queue.jobs[0].Payload.FeedbackText; got != "broken on arrival" {
		t.Fatalf("expected feedback text in payload, got %q", got)
	}
}

func TestAlertJobIDIsStable(t *testing.T) {
	if AlertJobID("fb-1") != AlertJobID("fb-1") {
		t.Fatalf("expected stable id")
	}
	if AlertJobID("fb-1") == AlertJobID("fb-2") {
		t.Fatalf("expected distinct ids for distinct feedback")
	}
}
