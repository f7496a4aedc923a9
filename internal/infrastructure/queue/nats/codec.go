package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

func encodeJob(job domain.AlertJob) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode alert job: %w", err)
	}
	return data, nil
}

func decodeJob(data []byte) (domain.AlertJob, error) {
	var job domain.AlertJob
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.AlertJob{}, fmt.Errorf("decode alert job: %w", err)
	}
	if job.ID == "" {
		return domain.AlertJob{}, errors.New("decode alert job: missing job_id")
	}
	return job, nil
}

func enqueueMsgID(job domain.AlertJob) string {
	return job.ID
}

// requeueMsgID is unique per retry so a republished job is never taken for a
// duplicate of an earlier one.
func requeueMsgID(job domain.AlertJob) string {
	return job.ID + "." + strconv.Itoa(job.AttemptCount) + "." + strconv.FormatInt(job.NextAttemptAt.UnixNano(), 10)
}
