package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

type FeedbackRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db, now: time.Now}
}

func (r *FeedbackRepository) SaveFeedback(ctx context.Context, result domain.AnalysisResult, rawText string, customer domain.Customer) (string, error) {
	analysisJSON, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}
	customerJSON, err := json.Marshal(customer)
	if err != nil {
		return "", fmt.Errorf("marshal customer: %w", err)
	}

	var customerRef sql.NullString
	if customer.Ref != "" {
		customerRef = sql.NullString{String: customer.Ref, Valid: true}
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO feedback (
	id, customer_ref, customer, raw_text, analysis, negative_score, primary_sentiment, main_topic, analysis_source, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		id, customerRef, customerJSON, rawText, analysisJSON, result.SentimentScores.Negative,
		string(result.PrimarySentiment), string(result.MainTopic), string(result.AnalysisSource), r.now().UTC(),
	)
	if err != nil {
		return "", wrapDBError("insert feedback", err)
	}
	return id, nil
}

func (r *FeedbackRepository) GetFeedback(ctx context.Context, id string) (*domain.Feedback, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, customer, raw_text, analysis, created_at
FROM feedback
WHERE id = $1
`, id)

	var (
		feedback     domain.Feedback
		customerJSON []byte
		analysisJSON []byte
	)
	if err := row.Scan(&feedback.ID, &customerJSON, &feedback.Text, &analysisJSON, &feedback.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get feedback", fmt.Errorf("id=%s", id))
		}
		return nil, wrapDBError("get feedback", err)
	}
	if err := json.Unmarshal(customerJSON, &feedback.Customer); err != nil {
		return nil, fmt.Errorf("decode customer of feedback %s: %w", id, err)
	}
	if err := json.Unmarshal(analysisJSON, &feedback.Analysis); err != nil {
		return nil, fmt.Errorf("decode analysis of feedback %s: %w", id, err)
	}
	feedback.CreatedAt = feedback.CreatedAt.UTC()
	return &feedback, nil
}
