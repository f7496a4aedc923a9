package ollama

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/llm/llmscore"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/resilience"
)

const scoreOperation = "ollama.score"

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		// Per-call deadlines come from the context; this only caps stuck sockets.
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Scorer implements AI scoring on top of Ollama's generate endpoint in JSON
// mode. It makes at most one HTTP call per Score.
type Scorer struct {
	client   *Client
	executor *resilience.Executor
	logger   *slog.Logger
}

func NewScorer(client *Client, executor *resilience.Executor, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{client: client, executor: executor, logger: logger}
}

func (s *Scorer) Score(ctx context.Context, text string, timeout time.Duration) domain.AIAttempt {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := resilience.Do(callCtx, s.executor, scoreOperation, func(ctx context.Context) (string, error) {
		return s.client.generateJSON(ctx, llmscore.Prompt(text))
	}, llmscore.ClassifyError)
	if err != nil {
		attempt := llmscore.Failure(err)
		s.logger.Debug("ollama_score_failed", "failure", attempt.Failure, "error", err)
		return attempt
	}

	scores, err := llmscore.Parse(raw)
	if err != nil {
		return llmscore.Failure(err)
	}
	return domain.AIOk(scores)
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
