package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/core/ports"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/resilience"
)

// Queue is a JetStream work queue of alert jobs. Each job is one message;
// a retry publishes the updated job and acknowledges the old message.
type Queue struct {
	conn     *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	opts     Options
	executor *resilience.Executor
	progress *progressTracker
	logger   *slog.Logger
	now      func() time.Time
}

type Options struct {
	Stream   string
	Subject  string
	Consumer string

	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool

	// AckWait must exceed the longest delivery attempt; an unsettled message
	// is redelivered after it.
	AckWait         time.Duration
	FetchMaxWait    time.Duration
	DuplicateWindow time.Duration

	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func (o Options) normalize() Options {
	if o.Stream == "" {
		o.Stream = "ALERTS"
	}
	if o.Subject == "" {
		o.Subject = "alerts.jobs"
	}
	if o.Consumer == "" {
		o.Consumer = "alert-delivery"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.AckWait <= 0 {
		o.AckWait = 30 * time.Second
	}
	if o.FetchMaxWait <= 0 {
		o.FetchMaxWait = time.Second
	}
	if o.DuplicateWindow <= 0 {
		o.DuplicateWindow = 2 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func New(ctx context.Context, url string, options Options) (*Queue, error) {
	opts := options.normalize()
	retryOnFailedConnect := true
	if opts.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *opts.RetryOnFailedConnect
	}
	logger := opts.Logger

	conn, err := nats.Connect(
		url,
		nats.Name("feedback-sentinel"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	q, err := newQueue(ctx, conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

func newQueue(ctx context.Context, conn *nats.Conn, opts Options) (*Queue, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       opts.Stream,
		Subjects:   []string{opts.Subject},
		Retention:  jetstream.WorkQueuePolicy,
		Storage:    jetstream.FileStorage,
		Duplicates: opts.DuplicateWindow,
	}); err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", opts.Stream, err)
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, opts.Stream, jetstream.ConsumerConfig{
		Durable:       opts.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       opts.AckWait,
		MaxDeliver:    -1,
		FilterSubject: opts.Subject,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure consumer %s: %w", opts.Consumer, err)
	}

	return &Queue{
		conn:     conn,
		js:       js,
		consumer: consumer,
		opts:     opts,
		executor: opts.ResilienceExecutor,
		progress: newProgressTracker(defaultProgressLimit),
		logger:   opts.Logger,
		now:      time.Now,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		if err := q.conn.Drain(); err != nil {
			q.conn.Close()
		}
	}
}

// Enqueue publishes a new job. Its message id is the job id, so a repeated
// submission inside the duplicate window is dropped by the server.
func (q *Queue) Enqueue(ctx context.Context, job domain.AlertJob) error {
	if err := q.publish(ctx, job, enqueueMsgID(job)); err != nil {
		return domain.WrapError(domain.ErrQueueUnavailable, "nats enqueue", err)
	}
	return nil
}

func (q *Queue) publish(ctx context.Context, job domain.AlertJob, msgID string) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	_, err = resilience.Do(ctx, q.executor, "nats.publish", func(ctx context.Context) (*jetstream.PubAck, error) {
		ack, err := q.js.Publish(ctx, q.opts.Subject, data, jetstream.WithMsgID(msgID))
		if err != nil {
			return nil, fmt.Errorf("jetstream publish: %w", err)
		}
		return ack, nil
	}, classifyNATSError)
	return wrapTemporaryIfNeeded(err)
}

// Dequeue fetches one message at a time. Messages that are not due yet are
// handed back with the remaining delay.
func (q *Queue) Dequeue(ctx context.Context) (ports.ClaimedJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := q.consumer.Fetch(1, jetstream.FetchMaxWait(q.opts.FetchMaxWait))
		if err != nil {
			if isFetchTimeout(err) {
				continue
			}
			return nil, domain.WrapError(domain.ErrTemporary, "nats fetch", err)
		}

		for msg := range batch.Messages() {
			if claimed := q.claimMessage(msg); claimed != nil {
				return claimed, nil
			}
		}
		if err := batch.Error(); err != nil && !isFetchTimeout(err) {
			return nil, domain.WrapError(domain.ErrTemporary, "nats fetch", err)
		}
	}
}

func (q *Queue) claimMessage(msg message) *claim {
	job, err := decodeJob(msg.Data())
	if err != nil {
		q.logger.Error("alert_job_undecodable", "error", err)
		if termErr := msg.Term(); termErr != nil {
			q.logger.Warn("nats_term_failed", "error", termErr)
		}
		return nil
	}

	if q.progress.stale(job) {
		q.logger.Info("alert_job_stale_dropped", "job_id", job.ID, "attempt_count", job.AttemptCount)
		if ackErr := msg.Ack(); ackErr != nil {
			q.logger.Warn("nats_ack_failed", "job_id", job.ID, "error", ackErr)
		}
		return nil
	}

	if wait := job.NextAttemptAt.Sub(q.now()); wait > 0 {
		if err := msg.NakWithDelay(wait); err != nil {
			q.logger.Warn("nats_nak_failed", "job_id", job.ID, "error", err)
		}
		return nil
	}
	return &claim{msg: msg, job: job, publish: q.publish, progress: q.progress}
}

func isFetchTimeout(err error) bool {
	return errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
