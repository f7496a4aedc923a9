package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

func TestDeliverPostsSlackMessage(t *testing.T) {
	var got message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	tr, err := New(server.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	err = tr.Deliver(context.Background(), domain.AlertPayload{
		FeedbackID:     "fb-3",
		SentimentScore: 0.75,
		MainTopic:      domain.TopicPricing,
		FeedbackText:   "Too expensive",
	})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if !strings.Contains(got.Text, "Feedback ID: fb-3") || len(got.Blocks) != 4 {
		t.Fatalf("unexpected message %+v", got)
	}
	if got.Blocks[1].Fields[2].Text != "*Sentiment Score:*\n0.75" {
		t.Fatalf("unexpected score field %q", got.Blocks[1].Fields[2].Text)
	}
}

func TestDeliverFailsOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer server.Close()

	tr, _ := New(server.URL)
	err := tr.Deliver(context.Background(), domain.AlertPayload{FeedbackID: "fb-4"})
	if err == nil || !strings.Contains(err.Error(), "invalid_token") {
		t.Fatalf("expected status error with body, got %v", err)
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
