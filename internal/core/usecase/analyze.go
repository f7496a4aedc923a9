package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/core/ports"
	"github.com/kirillkom/feedback-sentinel/internal/core/scoring"
)

const (
	DefaultMaxFeedbackChars = 1000
	DefaultAITimeout        = 10 * time.Second
)

type AnalyzeOptions struct {
	// AIEnabled selects between AI-backed and rule-only analysis.
	AIEnabled      bool
	AITimeout      time.Duration
	TopicThreshold float64
	MaxChars       int
}

type AnalyzeUseCase struct {
	rule       ports.RuleScorer
	ai         ports.AIScorer
	aggregator scoring.Aggregator
	opts       AnalyzeOptions
	observer   ports.AnalysisObserver
	logger     *slog.Logger
}

func NewAnalyzeUseCase(rule ports.RuleScorer, ai ports.AIScorer, opts AnalyzeOptions, logger *slog.Logger) *AnalyzeUseCase {
	if opts.AITimeout <= 0 {
		opts.AITimeout = DefaultAITimeout
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxFeedbackChars
	}
	if ai == nil {
		opts.AIEnabled = false
	}
	return &AnalyzeUseCase{
		rule: rule,
		ai:   ai,
		aggregator: scoring.Aggregator{
			TopicThreshold: opts.TopicThreshold,
			LexiconVersion: rule.LexiconVersion(),
		},
		opts:   opts,
		logger: loggerOrDefault(logger),
	}
}

func (uc *AnalyzeUseCase) SetObserver(observer ports.AnalysisObserver) {
	uc.observer = observer
}

func (uc *AnalyzeUseCase) Analyze(ctx context.Context, text, customerRef string) (*domain.AnalysisResult, error) {
	if err := uc.validate(text); err != nil {
		return nil, err
	}

	rule := uc.rule.Score(text)

	var attempt domain.AIAttempt
	// Blank text has nothing for a model to read; the rule result is final.
	if uc.opts.AIEnabled && strings.TrimSpace(text) != "" {
		attempt = uc.ai.Score(ctx, text, uc.opts.AITimeout)
	}

	result := uc.aggregator.Aggregate(rule, attempt)
	uc.logOutcome(ctx, customerRef, rule, attempt, result)
	if uc.observer != nil {
		uc.observer.ObserveAnalysis(result.AnalysisSource, result.AIFailure)
	}
	return &result, nil
}

func (uc *AnalyzeUseCase) validate(text string) error {
	if !utf8.ValidString(text) {
		return domain.WrapError(domain.ErrInvalidInput, "analyze feedback", errors.New("text is not valid utf-8"))
	}
	if n := utf8.RuneCountInString(text); n > uc.opts.MaxChars {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"analyze feedback",
			fmt.Errorf("text has %d characters, limit is %d", n, uc.opts.MaxChars),
		)
	}
	return nil
}

func (uc *AnalyzeUseCase) logOutcome(
	ctx context.Context,
	customerRef string,
	rule domain.Scores,
	attempt domain.AIAttempt,
	result domain.AnalysisResult,
) {
	switch result.AnalysisSource {
	case domain.SourceAIWithRuleFallback:
		uc.logger.WarnContext(ctx, "ai_scoring_fallback",
			"customer_ref", customerRef,
			"failure", result.AIFailure,
			"detail", attempt.Detail,
			"lexicon_version", result.LexiconVersion,
		)
	case domain.SourceAI:
		uc.logger.DebugContext(ctx, "ai_rule_drift",
			"customer_ref", customerRef,
			"ai_negative", attempt.Scores.Sentiment.Negative,
			"rule_negative", rule.Sentiment.Negative,
			"ai_primary", attempt.Scores.Sentiment.Primary(),
			"rule_primary", rule.Sentiment.Primary(),
			"lexicon_version", uc.rule.LexiconVersion(),
		)
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
