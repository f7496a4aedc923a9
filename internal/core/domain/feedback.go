package domain

import (
	"fmt"
	"math"
	"time"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type Topic string

const (
	TopicProductQuality  Topic = "product_quality"
	TopicCustomerService Topic = "customer_service"
	TopicDelivery        Topic = "delivery"
	TopicPricing         Topic = "pricing"
	TopicUsability       Topic = "usability"
	TopicGeneral         Topic = "general"
)

// Topics is the fixed topic enumeration. Its order breaks score ties.
var Topics = []Topic{
	TopicProductQuality,
	TopicCustomerService,
	TopicDelivery,
	TopicPricing,
	TopicUsability,
	TopicGeneral,
}

func ParseTopic(raw string) (Topic, bool) {
	for _, topic := range Topics {
		if string(topic) == raw {
			return topic, true
		}
	}
	return "", false
}

type AnalysisSource string

const (
	SourceRuleBased          AnalysisSource = "rule_based"
	SourceAI                 AnalysisSource = "ai"
	SourceAIWithRuleFallback AnalysisSource = "ai_with_rule_fallback"
)

type SentimentScores struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// Primary returns the highest scoring label. Ties resolve negative, then neutral.
func (s SentimentScores) Primary() Sentiment {
	primary, best := SentimentNegative, s.Negative
	if s.Neutral > best {
		primary, best = SentimentNeutral, s.Neutral
	}
	if s.Positive > best {
		primary = SentimentPositive
	}
	return primary
}

func (s SentimentScores) Validate() error {
	for label, value := range map[Sentiment]float64{
		SentimentPositive: s.Positive,
		SentimentNeutral:  s.Neutral,
		SentimentNegative: s.Negative,
	} {
		if !inUnitRange(value) {
			return fmt.Errorf("sentiment %s score %v outside [0,1]", label, value)
		}
	}
	return nil
}

// TopicScores always carries every topic from Topics.
type TopicScores map[Topic]float64

func NewTopicScores() TopicScores {
	scores := make(TopicScores, len(Topics))
	for _, topic := range Topics {
		scores[topic] = 0
	}
	return scores
}

func (t TopicScores) Validate() error {
	for topic, value := range t {
		if _, ok := ParseTopic(string(topic)); !ok {
			return fmt.Errorf("unknown topic %q", topic)
		}
		if !inUnitRange(value) {
			return fmt.Errorf("topic %s score %v outside [0,1]", topic, value)
		}
	}
	return nil
}

func (t TopicScores) Clone() TopicScores {
	out := NewTopicScores()
	for topic, value := range t {
		out[topic] = value
	}
	return out
}

// Scores is the output of a single scoring pass on both axes.
type Scores struct {
	Sentiment SentimentScores `json:"sentiment"`
	Topics    TopicScores     `json:"topics"`
}

type AIFailure string

const (
	AIFailureTimeout            AIFailure = "timeout"
	AIFailureServiceUnavailable AIFailure = "service_unavailable"
	AIFailureMalformedResponse  AIFailure = "malformed_response"
)

// AIAttempt is the tagged outcome of an AI scoring call: either Scores (Failure
// empty) or a failure kind. A zero value means the AI path was not attempted.
type AIAttempt struct {
	Attempted bool
	Scores    Scores
	Failure   AIFailure
	Detail    string
}

func AIOk(scores Scores) AIAttempt {
	return AIAttempt{Attempted: true, Scores: scores}
}

func AIFailed(kind AIFailure, detail string) AIAttempt {
	return AIAttempt{Attempted: true, Failure: kind, Detail: detail}
}

func (a AIAttempt) OK() bool {
	return a.Attempted && a.Failure == ""
}

type AnalysisResult struct {
	SentimentScores  SentimentScores `json:"sentiment_scores"`
	PrimarySentiment Sentiment       `json:"primary_sentiment"`
	TopicScores      TopicScores     `json:"topic_scores"`
	MainTopic        Topic           `json:"main_topic"`
	TopTopics        []Topic         `json:"top_topics"`
	AnalysisSource   AnalysisSource  `json:"analysis_source"`
	LexiconVersion   string          `json:"lexicon_version,omitempty"`
	AIFailure        AIFailure       `json:"ai_failure,omitempty"`
}

type Customer struct {
	Ref   string `json:"ref,omitempty"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type Feedback struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Customer  Customer       `json:"customer"`
	Analysis  AnalysisResult `json:"analysis"`
	CreatedAt time.Time      `json:"created_at"`
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
