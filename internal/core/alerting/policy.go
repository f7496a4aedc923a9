package alerting

import "github.com/kirillkom/feedback-sentinel/internal/core/domain"

const DefaultThreshold = 0.6

// Policy triggers on the negative score alone, regardless of the primary label.
type Policy struct {
	Threshold float64
}

func NewPolicy(threshold float64) Policy {
	return Policy{Threshold: threshold}
}

// ShouldAlert reports whether the negative score strictly exceeds the threshold.
func (p Policy) ShouldAlert(result *domain.AnalysisResult) bool {
	if result == nil {
		return false
	}
	return result.SentimentScores.Negative > p.Threshold
}
