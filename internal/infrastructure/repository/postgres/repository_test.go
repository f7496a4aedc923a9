package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func sampleResult() domain.AnalysisResult {
	topics := domain.NewTopicScores()
	topics[domain.TopicDelivery] = 1
	return domain.AnalysisResult{
		SentimentScores:  domain.SentimentScores{Negative: 0.9, Neutral: 0.1},
		PrimarySentiment: domain.SentimentNegative,
		TopicScores:      topics,
		MainTopic:        domain.TopicDelivery,
		TopTopics:        []domain.Topic{domain.TopicDelivery},
		AnalysisSource:   domain.SourceRuleBased,
		LexiconVersion:   "v1",
	}
}

func TestSaveFeedbackInsertsRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeedbackRepository(db)
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	mock.ExpectExec("INSERT INTO feedback").
		WithArgs(sqlmock.AnyArg(), "c-1", sqlmock.AnyArg(), "late parcel", sqlmock.AnyArg(), 0.9, "negative", "delivery", "rule_based", fixed).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := repo.SaveFeedback(context.Background(), sampleResult(), "late parcel", domain.Customer{Ref: "c-1", Name: "Ada"})
	if err != nil {
		t.Fatalf("SaveFeedback() error = %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated id")
	}
	expectationsMet(t, mock)
}

func TestSaveFeedbackMarksConnectionErrorsTemporary(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeedbackRepository(db)

	mock.ExpectExec("INSERT INTO feedback").
		WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})

	_, err := repo.SaveFeedback(context.Background(), sampleResult(), "x", domain.Customer{})
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestSaveFeedbackKeepsConstraintErrorsPermanent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeedbackRepository(db)

	mock.ExpectExec("INSERT INTO feedback").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	_, err := repo.SaveFeedback(context.Background(), sampleResult(), "x", domain.Customer{})
	if err == nil || errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestGetFeedbackDecodesRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeedbackRepository(db)
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	analysisJSON, err := json.Marshal(sampleResult())
	if err != nil {
		t.Fatalf("marshal analysis: %v", err)
	}

	mock.ExpectQuery("SELECT id, customer, raw_text, analysis, created_at FROM feedback").
		WithArgs("fb-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer", "raw_text", "analysis", "created_at"}).
			AddRow("fb-1", []byte(`{"ref":"c-1","name":"Ada"}`), "late parcel", analysisJSON, created))

	feedback, err := repo.GetFeedback(context.Background(), "fb-1")
	if err != nil {
		t.Fatalf("GetFeedback() error = %v", err)
	}
	if feedback.ID != "fb-1" || feedback.Text != "late parcel" || feedback.Customer.Name != "Ada" {
		t.Fatalf("unexpected feedback %+v", feedback)
	}
	if feedback.Analysis.MainTopic != domain.TopicDelivery || !feedback.CreatedAt.Equal(created) {
		t.Fatalf("unexpected analysis or timestamp %+v", feedback)
	}
	expectationsMet(t, mock)
}

func TestGetFeedbackMissingIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeedbackRepository(db)

	mock.ExpectQuery("SELECT id, customer, raw_text, analysis, created_at FROM feedback").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetFeedback(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestLookupCustomerFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomerRepository(db)

	mock.ExpectQuery("SELECT ref, name, phone, email").
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"ref", "name", "phone", "email"}).
			AddRow("c-1", "Grace", "+1-555", "grace@example.com"))

	customer, err := repo.LookupCustomer(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("LookupCustomer() error = %v", err)
	}
	if customer == nil || customer.Phone != "+1-555" {
		t.Fatalf("unexpected customer %+v", customer)
	}
	expectationsMet(t, mock)
}

func TestLookupCustomerMissingReturnsNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCustomerRepository(db)

	mock.ExpectQuery("SELECT ref, name, phone, email").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	customer, err := repo.LookupCustomer(context.Background(), "missing")
	if err != nil || customer != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", customer, err)
	}
	expectationsMet(t, mock)
}

func TestSaveDeadLetterIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadLetterRepository(db)
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	letter := domain.DeadLetter{
		JobID:          "job-1",
		FeedbackID:     "fb-1",
		Payload:        domain.AlertPayload{FeedbackID: "fb-1", SentimentScore: 0.9},
		AttemptCount:   3,
		LastError:      "smtp: 451",
		DeadLetteredAt: at,
	}

	mock.ExpectExec(`INSERT INTO alert_dead_letters .* ON CONFLICT \(job_id\) DO NOTHING`).
		WithArgs("job-1", "fb-1", sqlmock.AnyArg(), 3, "smtp: 451", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), letter); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	expectationsMet(t, mock)
}

func TestListDeadLettersClampsLimit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeadLetterRepository(db)
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	payload, _ := json.Marshal(domain.AlertPayload{FeedbackID: "fb-9", MainTopic: domain.TopicPricing})

	mock.ExpectQuery("SELECT job_id, feedback_id, payload").
		WithArgs(maxDeadLetterLimit).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "feedback_id", "payload", "attempt_count", "last_error", "dead_lettered_at"}).
			AddRow("job-9", "fb-9", payload, 3, "timeout", at))

	letters, err := repo.List(context.Background(), 10_000)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(letters) != 1 || letters[0].Payload.MainTopic != domain.TopicPricing || letters[0].AttemptCount != 3 {
		t.Fatalf("unexpected letters %+v", letters)
	}
	expectationsMet(t, mock)
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
		WithArgs(schemaLockID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS customers").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	expectationsMet(t, mock)
}
