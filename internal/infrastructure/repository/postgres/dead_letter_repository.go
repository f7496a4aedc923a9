package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

type DeadLetterRepository struct {
	db *sql.DB
}

func NewDeadLetterRepository(db *sql.DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

// Save is idempotent per job id; a retried persistence keeps the first record.
func (r *DeadLetterRepository) Save(ctx context.Context, letter domain.DeadLetter) error {
	payloadJSON, err := json.Marshal(letter.Payload)
	if err != nil {
		return fmt.Errorf("marshal dead letter payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO alert_dead_letters (job_id, feedback_id, payload, attempt_count, last_error, dead_lettered_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (job_id) DO NOTHING
`, letter.JobID, letter.FeedbackID, payloadJSON, letter.AttemptCount, letter.LastError, letter.DeadLetteredAt)
	if err != nil {
		return wrapDBError("insert dead letter", err)
	}
	return nil
}

func (r *DeadLetterRepository) List(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	if limit <= 0 {
		limit = defaultDeadLetterLimit
	}
	if limit > maxDeadLetterLimit {
		limit = maxDeadLetterLimit
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT job_id, feedback_id, payload, attempt_count, last_error, dead_lettered_at
FROM alert_dead_letters
ORDER BY dead_lettered_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, wrapDBError("list dead letters", err)
	}
	defer rows.Close()

	out := make([]domain.DeadLetter, 0)
	for rows.Next() {
		var (
			letter     domain.DeadLetter
			payloadRaw []byte
		)
		if err := rows.Scan(&letter.JobID, &letter.FeedbackID, &payloadRaw, &letter.AttemptCount, &letter.LastError, &letter.DeadLetteredAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if err := json.Unmarshal(payloadRaw, &letter.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal dead letter payload: %w", err)
		}
		out = append(out, letter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return out, nil
}
