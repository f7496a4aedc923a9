// Package openai scores feedback through an OpenAI-compatible chat
// completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/llm/llmscore"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	scoreOperation = "openai.score"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type Scorer struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

func NewScorer(baseURL, apiKey, model string, executor *resilience.Executor, logger *slog.Logger) *Scorer {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
		logger:     logger,
	}
}

func (s *Scorer) Score(ctx context.Context, text string, timeout time.Duration) domain.AIAttempt {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := resilience.Do(callCtx, s.executor, scoreOperation, func(ctx context.Context) (string, error) {
		return s.complete(ctx, text)
	}, llmscore.ClassifyError)
	if err != nil {
		attempt := llmscore.Failure(err)
		s.logger.Debug("openai_score_failed", "failure", attempt.Failure, "error", err)
		return attempt
	}

	scores, err := llmscore.Parse(raw)
	if err != nil {
		return llmscore.Failure(err)
	}
	return domain.AIOk(scores)
}

func (s *Scorer) complete(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: llmscore.SystemPrompt()},
			{Role: "user", Content: llmscore.UserPrompt(text)},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &llmscore.HTTPStatusError{
			Provider:   "openai",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode chat response: %w: %w", llmscore.ErrMalformed, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat response: %w: %w", llmscore.ErrMalformed, errors.New("no choices"))
	}
	return out.Choices[0].Message.Content, nil
}
