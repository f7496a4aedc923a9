package ports

import (
	"context"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

// FeedbackAnalyzer is the inbound contract for synchronous scoring.
type FeedbackAnalyzer interface {
	Analyze(ctx context.Context, text, customerRef string) (*domain.AnalysisResult, error)
}

// AlertSubmitter decides on and hands off an alert without waiting for delivery.
type AlertSubmitter interface {
	SubmitAlertIfNeeded(ctx context.Context, result *domain.AnalysisResult, feedbackID string, customer domain.Customer) (bool, string)
	// SubmitFeedbackAlert includes the stored feedback text in the alert.
	SubmitFeedbackAlert(ctx context.Context, feedback *domain.Feedback) (bool, string)
}

type SubmitFeedbackRequest struct {
	Text        string
	CustomerRef string
	// Customer is used when CustomerRef is empty or unknown to the directory.
	Customer *domain.Customer
}

type SubmitFeedbackResponse struct {
	Feedback      *domain.Feedback `json:"feedback"`
	AlertEnqueued bool             `json:"alert_enqueued"`
	Warning       string           `json:"warning,omitempty"`
}

// FeedbackSubmitter is the inbound contract for analyze + store + alert.
type FeedbackSubmitter interface {
	Submit(ctx context.Context, req SubmitFeedbackRequest) (*SubmitFeedbackResponse, error)
}

// FeedbackReader returns stored feedback, failing with domain.ErrNotFound for
// unknown ids.
type FeedbackReader interface {
	GetFeedback(ctx context.Context, id string) (*domain.Feedback, error)
}

// DeadLetterReader exposes dead-lettered alerts for manual inspection.
type DeadLetterReader interface {
	List(ctx context.Context, limit int) ([]domain.DeadLetter, error)
}
