package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/core/ports"
)

type SubmitFeedbackUseCase struct {
	analyzer  ports.FeedbackAnalyzer
	customers ports.CustomerDirectory
	repo      ports.FeedbackRepository
	alerts    ports.AlertSubmitter
	logger    *slog.Logger
	now       func() time.Time
}

func NewSubmitFeedbackUseCase(
	analyzer ports.FeedbackAnalyzer,
	customers ports.CustomerDirectory,
	repo ports.FeedbackRepository,
	alerts ports.AlertSubmitter,
	logger *slog.Logger,
) *SubmitFeedbackUseCase {
	return &SubmitFeedbackUseCase{
		analyzer:  analyzer,
		customers: customers,
		repo:      repo,
		alerts:    alerts,
		logger:    loggerOrDefault(logger),
		now:       time.Now,
	}
}

// Submit fails only on validation or persistence errors. Alert handoff problems
// are reported through the response warning.
func (uc *SubmitFeedbackUseCase) Submit(ctx context.Context, req ports.SubmitFeedbackRequest) (*ports.SubmitFeedbackResponse, error) {
	result, err := uc.analyzer.Analyze(ctx, req.Text, req.CustomerRef)
	if err != nil {
		return nil, err
	}

	customer := uc.resolveCustomer(ctx, req)

	id, err := uc.repo.SaveFeedback(ctx, *result, req.Text, customer)
	if err != nil {
		return nil, fmt.Errorf("save feedback: %w", err)
	}

	feedback := &domain.Feedback{
		ID:        id,
		Text:      req.Text,
		Customer:  customer,
		Analysis:  *result,
		CreatedAt: uc.now().UTC(),
	}

	enqueued, warning := uc.alerts.SubmitFeedbackAlert(ctx, feedback)
	return &ports.SubmitFeedbackResponse{
		Feedback:      feedback,
		AlertEnqueued: enqueued,
		Warning:       warning,
	}, nil
}

// resolveCustomer prefers the directory record and falls back to the inline
// details. A directory outage degrades to inline details.
func (uc *SubmitFeedbackUseCase) resolveCustomer(ctx context.Context, req ports.SubmitFeedbackRequest) domain.Customer {
	var inline domain.Customer
	if req.Customer != nil {
		inline = *req.Customer
	}
	if req.CustomerRef == "" {
		return inline
	}
	inline.Ref = req.CustomerRef

	if uc.customers == nil {
		return inline
	}
	found, err := uc.customers.LookupCustomer(ctx, req.CustomerRef)
	if err != nil {
		uc.logger.WarnContext(ctx, "customer_lookup_failed", "customer_ref", req.CustomerRef, "error", err)
		return inline
	}
	if found == nil {
		return inline
	}
	customer := *found
	customer.Ref = req.CustomerRef
	return customer
}
