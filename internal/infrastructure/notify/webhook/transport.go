// Package webhook posts alerts to a Slack-compatible incoming webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
	"github.com/kirillkom/feedback-sentinel/internal/infrastructure/notify"
)

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type block struct {
	Type   string       `json:"type"`
	Text   *textObject  `json:"text,omitempty"`
	Fields []textObject `json:"fields,omitempty"`
}

type message struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

type Transport struct {
	url    string
	client *http.Client
}

func New(url string) (*Transport, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	return &Transport{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (t *Transport) Deliver(ctx context.Context, payload domain.AlertPayload) error {
	body, err := json.Marshal(buildMessage(payload))
	if err != nil {
		return fmt.Errorf("marshal webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func buildMessage(payload domain.AlertPayload) message {
	customer := payload.Customer.Name
	if customer == "" {
		customer = "unknown"
	}
	return message{
		// Plain text is the fallback for clients that ignore blocks.
		Text: notify.Subject + "\n" + notify.Body(payload),
		Blocks: []block{
			{Type: "header", Text: &textObject{Type: "plain_text", Text: notify.Subject}},
			{Type: "section", Fields: []textObject{
				{Type: "mrkdwn", Text: "*Feedback ID:*\n" + payload.FeedbackID},
				{Type: "mrkdwn", Text: "*Customer:*\n" + customer},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Sentiment Score:*\n%.2f", payload.SentimentScore)},
				{Type: "mrkdwn", Text: "*Main Topic:*\n" + string(payload.MainTopic)},
			}},
			{Type: "divider"},
			{Type: "section", Text: &textObject{Type: "mrkdwn", Text: "> " + strings.ReplaceAll(payload.FeedbackText, "\n", "\n> ")}},
		},
	}
}
