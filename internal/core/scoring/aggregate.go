package scoring

import (
	"sort"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

// Aggregator turns a rule-based pass and an AI attempt into one canonical result.
type Aggregator struct {
	// TopicThreshold is the score a topic must exceed to be listed in TopTopics.
	TopicThreshold float64
	LexiconVersion string
}

func (a Aggregator) Aggregate(rule domain.Scores, attempt domain.AIAttempt) domain.AnalysisResult {
	if attempt.OK() {
		if err := validateScores(attempt.Scores); err == nil {
			return a.build(attempt.Scores, domain.SourceAI, "", "")
		}
		attempt = domain.AIFailed(domain.AIFailureMalformedResponse, "scores failed validation")
	}

	if !attempt.Attempted {
		return a.build(rule, domain.SourceRuleBased, "", a.LexiconVersion)
	}
	return a.build(rule, domain.SourceAIWithRuleFallback, attempt.Failure, a.LexiconVersion)
}

func (a Aggregator) build(scores domain.Scores, source domain.AnalysisSource, failure domain.AIFailure, lexiconVersion string) domain.AnalysisResult {
	topics := scores.Topics.Clone()
	top := RankTopics(topics, a.TopicThreshold)
	mainTopic := domain.TopicGeneral
	if len(top) > 0 {
		mainTopic = top[0]
	}
	return domain.AnalysisResult{
		SentimentScores:  scores.Sentiment,
		PrimarySentiment: scores.Sentiment.Primary(),
		TopicScores:      topics,
		MainTopic:        mainTopic,
		TopTopics:        top,
		AnalysisSource:   source,
		LexiconVersion:   lexiconVersion,
		AIFailure:        failure,
	}
}

// RankTopics lists topics scoring strictly above threshold, highest first,
// ties in enumeration order.
func RankTopics(scores domain.TopicScores, threshold float64) []domain.Topic {
	out := make([]domain.Topic, 0, len(domain.Topics))
	for _, topic := range domain.Topics {
		if scores[topic] > threshold {
			out = append(out, topic)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return scores[out[i]] > scores[out[j]]
	})
	return out
}

func validateScores(scores domain.Scores) error {
	if err := scores.Sentiment.Validate(); err != nil {
		return err
	}
	return scores.Topics.Validate()
}
