// Package notify renders alert payloads for the delivery transports.
package notify

import (
	"fmt"
	"strings"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

const Subject = "Negative Feedback Alert"

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}

// Body is the plain-text alert shared by mail and chat transports.
func Body(payload domain.AlertPayload) string {
	var b strings.Builder
	b.WriteString("Negative feedback received that requires attention:\n\n")
	fmt.Fprintf(&b, "Feedback ID: %s\n", payload.FeedbackID)
	fmt.Fprintf(&b, "Customer: %s\n", orUnknown(payload.Customer.Name))
	fmt.Fprintf(&b, "Phone: %s\n", orUnknown(payload.Customer.Phone))
	fmt.Fprintf(&b, "Sentiment Score: %.2f\n", payload.SentimentScore)
	fmt.Fprintf(&b, "Main Topic: %s\n\n", payload.MainTopic)
	b.WriteString("Feedback Text:\n")
	b.WriteString(payload.FeedbackText)
	b.WriteString("\n\nPlease review and respond promptly.\n")
	return b.String()
}
