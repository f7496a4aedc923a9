package domain

import "time"

type JobState string

const (
	JobPending      JobState = "pending"
	JobAttempting   JobState = "attempting"
	JobScheduled    JobState = "scheduled"
	JobDelivered    JobState = "delivered"
	JobDeadLettered JobState = "dead_lettered"
)

func (s JobState) Terminal() bool {
	return s == JobDelivered || s == JobDeadLettered
}

type AlertPayload struct {
	FeedbackID     string   `json:"feedback_id"`
	Customer       Customer `json:"customer"`
	SentimentScore float64  `json:"sentiment_score"`
	MainTopic      Topic    `json:"main_topic"`
	FeedbackText   string   `json:"feedback_text"`
}

// AlertJob carries its own retry state so a restarted worker resumes where the
// previous one stopped.
type AlertJob struct {
	ID            string       `json:"job_id"`
	Payload       AlertPayload `json:"payload"`
	AttemptCount  int          `json:"attempt_count"`
	NextAttemptAt time.Time    `json:"next_attempt_at"`
	State         JobState     `json:"state"`
	LastError     string       `json:"last_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type DeadLetter struct {
	JobID          string       `json:"job_id"`
	FeedbackID     string       `json:"feedback_id"`
	Payload        AlertPayload `json:"payload"`
	AttemptCount   int          `json:"attempt_count"`
	LastError      string       `json:"last_error"`
	DeadLetteredAt time.Time    `json:"dead_lettered_at"`
}

func NewDeadLetter(job AlertJob, at time.Time) DeadLetter {
	return DeadLetter{
		JobID:          job.ID,
		FeedbackID:     job.Payload.FeedbackID,
		Payload:        job.Payload,
		AttemptCount:   job.AttemptCount,
		LastError:      job.LastError,
		DeadLetteredAt: at.UTC(),
	}
}
