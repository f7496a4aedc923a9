package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/feedback-sentinel/internal/config"
	"github.com/kirillkom/feedback-sentinel/internal/core/alerting"
	"github.com/kirillkom/feedback-sentinel/internal/core/ports"
	"github.com/kirillkom/feedback-sentinel/internal/core/scoring"
	"github.com/kirillkom/feedback-sentinel/internal/core/usecase"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/llm/openai"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/notify/smtp"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/notify/webhook"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/queue/memory"
	natsqueue "github.com/kirillkom/feedback-sentinel/internal/infrastructure/queue/nats"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/resilience"
	"github.com/kirillkom/feedback-sentinel/internal/observability/metrics"
)

type App struct {
	Config config.Config

	HTTPMetrics     *metrics.HTTPServerMetrics
	DeliveryMetrics *metrics.DeliveryMetrics

	Queue       ports.AlertQueue
	Feedbacks   ports.FeedbackReader
	DeadLetters ports.DeadLetterStore

	AnalyzeUC        *usecase.AnalyzeUseCase
	SubmitAlertUC    *usecase.SubmitAlertUseCase
	SubmitFeedbackUC *usecase.SubmitFeedbackUseCase
	DeliveryWorker   *usecase.DeliveryWorker

	executors []*resilience.Executor
	closeFns  []func()
}

// BreakerStates merges the breaker states of every executor the app built.
func (app *App) BreakerStates() map[string]string {
	states := make(map[string]string)
	for _, e := range app.executors {
		for op, state := range e.States() {
			states[op] = state
		}
	}
	return states
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg}
	if err := app.wire(ctx, service, logger); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) wire(ctx context.Context, service string, logger *slog.Logger) error {
	cfg := app.Config

	registry := prometheus.NewRegistry()
	app.HTTPMetrics = metrics.NewHTTPServerMetrics(service, registry)
	app.DeliveryMetrics = metrics.NewDeliveryMetrics(service, registry)

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)
	aiExecutor := resilience.NewExecutor(resilience.DefaultConfig().SingleShot(), logger)
	app.executors = []*resilience.Executor{executor, aiExecutor}
	for _, e := range app.executors {
		e.OnStateChange(func(operation string, _, to gobreaker.State) {
			app.DeliveryMetrics.ObserveBreakerTransition(operation, to.String())
		})
	}

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	app.onClose(func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := newQueue(ctx, cfg, executor, logger, app)
	if err != nil {
		return fmt.Errorf("init alert queue: %w", err)
	}
	app.Queue = queue

	transport, err := newTransport(cfg)
	if err != nil {
		return fmt.Errorf("init alert transport: %w", err)
	}

	lexicon, err := loadLexicon(cfg.LexiconPath)
	if err != nil {
		return err
	}
	ruleScorer := scoring.NewRuleBasedScorer(lexicon)
	aiScorer := newAIScorer(cfg, aiExecutor, logger)

	app.AnalyzeUC = usecase.NewAnalyzeUseCase(ruleScorer, aiScorer, usecase.AnalyzeOptions{
		AIEnabled:      cfg.AIEnabled,
		AITimeout:      cfg.AITimeout(),
		TopicThreshold: cfg.TopicActivationThreshold,
		MaxChars:       cfg.FeedbackMaxChars,
	}, logger)
	app.AnalyzeUC.SetObserver(app.HTTPMetrics)

	app.SubmitAlertUC = usecase.NewSubmitAlertUseCase(
		alerting.NewPolicy(cfg.AlertThreshold),
		queue,
		cfg.QueueHandoffTimeout(),
		logger,
	)
	app.SubmitAlertUC.SetObserver(app.HTTPMetrics)

	feedbacks := postgres.NewFeedbackRepository(db)
	app.Feedbacks = feedbacks
	app.SubmitFeedbackUC = usecase.NewSubmitFeedbackUseCase(
		app.AnalyzeUC,
		postgres.NewCustomerRepository(db),
		feedbacks,
		app.SubmitAlertUC,
		logger,
	)

	deadLetters := postgres.NewDeadLetterRepository(db)
	app.DeadLetters = deadLetters
	app.DeliveryWorker = usecase.NewDeliveryWorker(queue, transport, deadLetters, usecase.DeliveryOptions{
		Retry:          cfg.RetryPolicy(),
		AttemptTimeout: cfg.DeliveryTimeout(),
	}, logger)
	app.DeliveryWorker.SetObserver(app.DeliveryMetrics)

	logger.Info("bootstrap_complete",
		"queue_backend", cfg.QueueBackend,
		"ai_enabled", cfg.AIEnabled,
		"ai_provider", cfg.AIProvider,
		"alert_transport", cfg.AlertTransport,
		"lexicon_version", ruleScorer.LexiconVersion(),
		"lexicon_terms", lexicon.Size(),
	)
	return nil
}

func newQueue(ctx context.Context, cfg config.Config, executor *resilience.Executor, logger *slog.Logger, app *App) (ports.AlertQueue, error) {
	if cfg.QueueBackend == config.QueueBackendMemory {
		return memory.New(cfg.QueueCapacity), nil
	}
	queue, err := natsqueue.New(ctx, cfg.NATSURL, natsqueue.Options{
		Stream:             cfg.NATSStream,
		Subject:            cfg.NATSSubject,
		Consumer:           cfg.NATSConsumer,
		AckWait:            cfg.DeliveryTimeout() + 20*time.Second,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, err
	}
	app.onClose(queue.Close)
	return queue, nil
}

func newTransport(cfg config.Config) (ports.AlertTransport, error) {
	if cfg.AlertTransport == config.TransportWebhook {
		return webhook.New(cfg.WebhookURL)
	}
	return smtp.New(smtp.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		To:       cfg.SupportEmail,
	})
}

// newAIScorer returns nil when AI scoring is disabled, which selects
// rule-only analysis.
func newAIScorer(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) ports.AIScorer {
	if !cfg.AIEnabled {
		return nil
	}
	if cfg.AIProvider == config.AIProviderOpenAI {
		return openai.NewScorer(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, executor, logger)
	}
	return ollama.NewScorer(ollama.New(cfg.OllamaURL, cfg.OllamaModel), executor, logger)
}

func loadLexicon(path string) (*scoring.Lexicon, error) {
	if path == "" {
		lexicon, err := scoring.DefaultLexicon()
		if err != nil {
			return nil, fmt.Errorf("load default lexicon: %w", err)
		}
		return lexicon, nil
	}
	lexicon, err := scoring.LoadLexicon(path)
	if err != nil {
		return nil, fmt.Errorf("load lexicon %s: %w", path, err)
	}
	return lexicon, nil
}

func (app *App) onClose(fn func()) {
	app.closeFns = append(app.closeFns, fn)
}

// Close releases resources in reverse order of acquisition.
func (app *App) Close() {
	for i := len(app.closeFns) - 1; i >= 0; i-- {
		app.closeFns[i]()
	}
	app.closeFns = nil
}
