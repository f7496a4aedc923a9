package scoring

import (
	"reflect"
	"testing"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

func newDefaultScorer(t *testing.T) *RuleBasedScorer {
	t.Helper()
	lex, err := DefaultLexicon()
	if err != nil {
		t.Fatalf("DefaultLexicon() error = %v", err)
	}
	return NewRuleBasedScorer(lex)
}

func TestScoreEmptyTextIsNeutralGeneral(t *testing.T) {
	scorer := newDefaultScorer(t)

	for _, text := range []string{"", "   ", "\n\t"} {
		scores := scorer.Score(text)
		if scores.Sentiment != (domain.SentimentScores{Neutral: 1.0}) {
			t.Fatalf("text %q: expected neutral=1.0, got %+v", text, scores.Sentiment)
		}
		for topic, value := range scores.Topics {
			if value != 0 {
				t.Fatalf("text %q: expected zero topic %s, got %v", text, topic, value)
			}
		}
		if len(scores.Topics) != len(domain.Topics) {
			t.Fatalf("expected every topic present, got %d", len(scores.Topics))
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	scorer := newDefaultScorer(t)
	text := "The delivery was late and the package arrived damaged, but customer service was helpful. Price is fair."

	first := scorer.Score(text)
	for i := 0; i < 50; i++ {
		next := scorer.Score(text)
		if !reflect.DeepEqual(first, next) {
			t.Fatalf("iteration %d: expected identical scores, got %+v vs %+v", i, first, next)
		}
	}
}

func TestScoreValuesStayInUnitRange(t *testing.T) {
	scorer := newDefaultScorer(t)
	texts := []string{
		"terrible terrible terrible awful",
		"great great great quality design",
		"okay fine average",
		"Shipping took too long; support staff were rude and the price was overpriced!!!",
		"¿Qué? 12345 --- '' user-friendly",
	}
	for _, text := range texts {
		scores := scorer.Score(text)
		if err := scores.Sentiment.Validate(); err != nil {
			t.Fatalf("text %q: %v", text, err)
		}
		if err := scores.Topics.Validate(); err != nil {
			t.Fatalf("text %q: %v", text, err)
		}
	}
}

func TestScoreNegativeOnlyText(t *testing.T) {
	scorer := newDefaultScorer(t)

	scores := scorer.Score("This is terrible. Absolutely the worst.")
	if scores.Sentiment.Negative != 1.0 {
		t.Fatalf("expected negative=1.0, got %+v", scores.Sentiment)
	}
	if scores.Sentiment.Primary() != domain.SentimentNegative {
		t.Fatalf("expected negative primary, got %s", scores.Sentiment.Primary())
	}
}

func TestScoreNormalizesMixedSentiment(t *testing.T) {
	scorer := newDefaultScorer(t)

	// good: positive 1, slow: negative 2.
	scores := scorer.Score("good but slow")
	if !approxEqual(scores.Sentiment.Positive, 1.0/3.0) || !approxEqual(scores.Sentiment.Negative, 2.0/3.0) {
		t.Fatalf("unexpected sentiment %+v", scores.Sentiment)
	}
	if scores.Sentiment.Neutral != 0 {
		t.Fatalf("expected neutral 0, got %v", scores.Sentiment.Neutral)
	}
}

func TestScorePrefersLongestPhrase(t *testing.T) {
	scorer := newDefaultScorer(t)

	// "not good" is a negative phrase; "good" must not also count as positive.
	scores := scorer.Score("Not good at all")
	if scores.Sentiment.Positive != 0 || scores.Sentiment.Negative != 1.0 {
		t.Fatalf("expected phrase to consume its tokens, got %+v", scores.Sentiment)
	}

	scores = scorer.Score("I would not recommend it")
	if scores.Sentiment.Positive != 0 {
		t.Fatalf("expected recommend to be consumed by phrase, got %+v", scores.Sentiment)
	}
}

func TestScoreHandlesContractionsAndCase(t *testing.T) {
	scorer := newDefaultScorer(t)

	a := scorer.Score("It DOESN’T WORK")
	b := scorer.Score("it doesn't work")
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected case and apostrophe normalization, got %+v vs %+v", a, b)
	}
	if a.Sentiment.Negative != 1.0 {
		t.Fatalf("expected negative phrase hit, got %+v", a.Sentiment)
	}
}

func TestScoreTopicsNormalizeAcrossAxis(t *testing.T) {
	scorer := newDefaultScorer(t)

	// customer service phrase weighs 2, delivery keyword weighs 1.
	scores := scorer.Score("customer service handled my delivery")
	if !approxEqual(scores.Topics[domain.TopicCustomerService], 2.0/3.0) {
		t.Fatalf("unexpected customer_service score %v", scores.Topics[domain.TopicCustomerService])
	}
	if !approxEqual(scores.Topics[domain.TopicDelivery], 1.0/3.0) {
		t.Fatalf("unexpected delivery score %v", scores.Topics[domain.TopicDelivery])
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("User-friendly, isn't it?  Price: $20!")
	want := []string{"user-friendly", "isn't", "it", "price", "20"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func approxEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	return d < eps && d > -eps
}
