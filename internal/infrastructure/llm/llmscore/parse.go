package llmscore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

// ErrMalformed marks a response that does not follow the scoring schema.
var ErrMalformed = errors.New("malformed scoring response")

type wireSentiment struct {
	Positive *float64 `json:"positive"`
	Neutral  *float64 `json:"neutral"`
	Negative *float64 `json:"negative"`
}

type wireScores struct {
	Sentiment *wireSentiment     `json:"sentiment"`
	Topics    map[string]float64 `json:"topics"`
}

// Parse reads a model answer. Unknown keys, missing sentiment keys,
// non-numeric values and values outside [0,1] are rejected rather than
// coerced. Missing topics score 0.
func Parse(raw string) (domain.Scores, error) {
	body := ExtractJSONObject(raw)
	if body == "" {
		return domain.Scores{}, malformed(errors.New("empty response"))
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()

	var wire wireScores
	if err := dec.Decode(&wire); err != nil {
		return domain.Scores{}, malformed(err)
	}
	if dec.More() {
		return domain.Scores{}, malformed(errors.New("trailing data after object"))
	}

	if wire.Sentiment == nil {
		return domain.Scores{}, malformed(errors.New("missing sentiment"))
	}
	if wire.Sentiment.Positive == nil || wire.Sentiment.Neutral == nil || wire.Sentiment.Negative == nil {
		return domain.Scores{}, malformed(errors.New("missing sentiment key"))
	}
	scores := domain.Scores{
		Sentiment: domain.SentimentScores{
			Positive: *wire.Sentiment.Positive,
			Neutral:  *wire.Sentiment.Neutral,
			Negative: *wire.Sentiment.Negative,
		},
		Topics: domain.NewTopicScores(),
	}
	if err := scores.Sentiment.Validate(); err != nil {
		return domain.Scores{}, malformed(err)
	}

	for key, value := range wire.Topics {
		topic, ok := domain.ParseTopic(key)
		if !ok {
			return domain.Scores{}, malformed(fmt.Errorf("unknown topic %q", key))
		}
		scores.Topics[topic] = value
	}
	if err := scores.Topics.Validate(); err != nil {
		return domain.Scores{}, malformed(err)
	}
	return scores, nil
}

// ExtractJSONObject trims any prose a model wraps around its JSON answer.
func ExtractJSONObject(raw string) string {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformed, err)
}
