package notify

import (
	"strings"
	"testing"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

func TestBodyListsAlertFields(t *testing.T) {
	body := Body(domain.AlertPayload{
		FeedbackID:     "fb-1",
		Customer:       domain.Customer{Name: "Ada", Phone: "+44 20"},
		SentimentScore: 0.8765,
		MainTopic:      domain.TopicDelivery,
		FeedbackText:   "Parcel arrived crushed.",
	})

	for _, want := range []string{
		"Feedback ID: fb-1",
		"Customer: Ada",
		"Phone: +44 20",
		"Sentiment Score: 0.88",
		"Main Topic: delivery",
		"Parcel arrived crushed.",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestBodyMarksMissingCustomer(t *testing.T) {
	body := Body(domain.AlertPayload{FeedbackID: "fb-2"})
	if !strings.Contains(body, "Customer: unknown") || !strings.Contains(body, "Phone: unknown") {
		t.Fatalf("expected unknown customer fields:\n%s", body)
	}
}
