package scoring

import (
	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

// RuleBasedScorer scores text against a Lexicon. It is deterministic and safe
// for concurrent use.
type RuleBasedScorer struct {
	lexicon *Lexicon
}

func NewRuleBasedScorer(lexicon *Lexicon) *RuleBasedScorer {
	return &RuleBasedScorer{lexicon: lexicon}
}

func (s *RuleBasedScorer) LexiconVersion() string {
	return s.lexicon.Version()
}

func (s *RuleBasedScorer) Score(text string) domain.Scores {
	var (
		sentimentTotals = make(map[domain.Sentiment]float64, 3)
		topicTotals     = make(map[domain.Topic]float64, len(domain.Topics))
	)

	tokens := Tokenize(text)
	for pos := 0; pos < len(tokens); {
		entry, width := s.longestMatch(tokens, pos)
		if width == 0 {
			pos++
			continue
		}
		for label, weight := range entry.Sentiment {
			sentimentTotals[label] += weight
		}
		for topic, weight := range entry.Topics {
			topicTotals[topic] += weight
		}
		pos += width
	}

	return domain.Scores{
		Sentiment: normalizeSentiment(sentimentTotals),
		Topics:    normalizeTopics(topicTotals),
	}
}

// longestMatch returns the longest lexicon entry starting at pos and the
// number of tokens it covers, or width 0 when nothing matches.
func (s *RuleBasedScorer) longestMatch(tokens []string, pos int) (Weights, int) {
	maxWidth := s.lexicon.maxPhraseLen
	if rest := len(tokens) - pos; rest < maxWidth {
		maxWidth = rest
	}
	for width := maxWidth; width > 0; width-- {
		if entry, ok := s.lexicon.lookup(tokens[pos : pos+width]); ok {
			return entry, width
		}
	}
	return Weights{}, 0
}

func normalizeSentiment(totals map[domain.Sentiment]float64) domain.SentimentScores {
	sum := totals[domain.SentimentPositive] + totals[domain.SentimentNeutral] + totals[domain.SentimentNegative]
	if sum <= 0 {
		return domain.SentimentScores{Neutral: 1.0}
	}
	return domain.SentimentScores{
		Positive: totals[domain.SentimentPositive] / sum,
		Neutral:  totals[domain.SentimentNeutral] / sum,
		Negative: totals[domain.SentimentNegative] / sum,
	}
}

func normalizeTopics(totals map[domain.Topic]float64) domain.TopicScores {
	scores := domain.NewTopicScores()
	var sum float64
	// Summing in enumeration order keeps float results reproducible.
	for _, topic := range domain.Topics {
		sum += totals[topic]
	}
	if sum <= 0 {
		return scores
	}
	for _, topic := range domain.Topics {
		scores[topic] = totals[topic] / sum
	}
	return scores
}
