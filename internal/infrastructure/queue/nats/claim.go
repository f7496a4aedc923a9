package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

var errAlreadySettled = errors.New("claim already settled")

// message is the part of jetstream.Msg a claim needs.
type message interface {
	Data() []byte
	Ack() error
	NakWithDelay(delay time.Duration) error
	Term() error
}

type publishFunc func(ctx context.Context, job domain.AlertJob, msgID string) error

type claim struct {
	msg     message
	job     domain.AlertJob
	publish publishFunc
	// progress may be nil.
	progress *progressTracker

	mu      sync.Mutex
	settled bool
}

func (c *claim) Job() domain.AlertJob { return c.job }

func (c *claim) Release(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled {
		return errAlreadySettled
	}
	c.progress.released(c.job.ID)
	if err := c.msg.Ack(); err != nil {
		return fmt.Errorf("ack job %s: %w", c.job.ID, err)
	}
	c.settled = true
	return nil
}

// Requeue publishes the updated job before acknowledging the claimed message.
// If the publish fails the claimed message stays unacknowledged and the
// server redelivers it after AckWait. If only the ack fails, the redelivered
// old copy is recognized as stale and dropped.
func (c *claim) Requeue(ctx context.Context, job domain.AlertJob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled {
		return errAlreadySettled
	}
	if job.ID != c.job.ID {
		return fmt.Errorf("requeue job %s on claim for %s", job.ID, c.job.ID)
	}
	if err := c.publish(ctx, job, requeueMsgID(job)); err != nil {
		return fmt.Errorf("republish job %s: %w", job.ID, err)
	}
	c.settled = true
	c.progress.requeued(job)
	if err := c.msg.Ack(); err != nil {
		return fmt.Errorf("ack replaced job %s: %w", job.ID, err)
	}
	return nil
}
