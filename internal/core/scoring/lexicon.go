package scoring

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

//go:embed default_lexicon.yaml
var defaultLexiconYAML []byte

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['\-][\p{L}\p{N}]+)*`)

// Weights holds the contribution of one lexicon entry to both axes.
type Weights struct {
	Sentiment map[domain.Sentiment]float64
	Topics    map[domain.Topic]float64
}

// Lexicon is immutable once built; share one instance across goroutines.
type Lexicon struct {
	version      string
	entries      map[string]Weights
	maxPhraseLen int
}

type lexiconDocument struct {
	Version string         `yaml:"version"`
	Groups  []lexiconGroup `yaml:"groups"`
}

type lexiconGroup struct {
	Name      string             `yaml:"name"`
	Sentiment map[string]float64 `yaml:"sentiment"`
	Topics    map[string]float64 `yaml:"topics"`
	Terms     []string           `yaml:"terms"`
}

// DefaultLexicon returns the lexicon compiled into the binary.
func DefaultLexicon() (*Lexicon, error) {
	return ParseLexicon(defaultLexiconYAML)
}

// LoadLexicon reads a lexicon document from path, or the built-in one when path is empty.
func LoadLexicon(path string) (*Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultLexicon()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	return ParseLexicon(raw)
}

func ParseLexicon(raw []byte) (*Lexicon, error) {
	var doc lexiconDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse lexicon yaml: %w", err)
	}
	if strings.TrimSpace(doc.Version) == "" {
		return nil, errors.New("lexicon version is required")
	}

	lex := &Lexicon{
		version: doc.Version,
		entries: make(map[string]Weights),
	}
	for idx, group := range doc.Groups {
		sentiment, topics, err := group.weights()
		if err != nil {
			return nil, fmt.Errorf("lexicon group %d (%s): %w", idx, group.Name, err)
		}
		for _, term := range group.Terms {
			tokens := Tokenize(term)
			if len(tokens) == 0 {
				return nil, fmt.Errorf("lexicon group %d (%s): term %q has no word tokens", idx, group.Name, term)
			}
			lex.add(tokens, sentiment, topics)
		}
	}
	if len(lex.entries) == 0 {
		return nil, errors.New("lexicon has no terms")
	}
	return lex, nil
}

func (g lexiconGroup) weights() (map[domain.Sentiment]float64, map[domain.Topic]float64, error) {
	if len(g.Sentiment) == 0 && len(g.Topics) == 0 {
		return nil, nil, errors.New("group carries no weights")
	}
	sentiment := make(map[domain.Sentiment]float64, len(g.Sentiment))
	for label, weight := range g.Sentiment {
		switch domain.Sentiment(label) {
		case domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative:
		default:
			return nil, nil, fmt.Errorf("unknown sentiment %q", label)
		}
		if err := checkWeight(weight); err != nil {
			return nil, nil, fmt.Errorf("sentiment %q: %w", label, err)
		}
		sentiment[domain.Sentiment(label)] = weight
	}
	topics := make(map[domain.Topic]float64, len(g.Topics))
	for label, weight := range g.Topics {
		topic, ok := domain.ParseTopic(label)
		if !ok {
			return nil, nil, fmt.Errorf("unknown topic %q", label)
		}
		if err := checkWeight(weight); err != nil {
			return nil, nil, fmt.Errorf("topic %q: %w", label, err)
		}
		topics[topic] = weight
	}
	return sentiment, topics, nil
}

// maxWeight keeps per-axis sums finite for any input length.
const maxWeight = 1000

func checkWeight(weight float64) error {
	switch {
	case math.IsNaN(weight) || math.IsInf(weight, 0):
		return fmt.Errorf("weight %v is not finite", weight)
	case weight < 0:
		return fmt.Errorf("negative weight %v", weight)
	case weight > maxWeight:
		return fmt.Errorf("weight %v exceeds %d", weight, maxWeight)
	}
	return nil
}

func (l *Lexicon) add(tokens []string, sentiment map[domain.Sentiment]float64, topics map[domain.Topic]float64) {
	key := strings.Join(tokens, " ")
	entry, ok := l.entries[key]
	if !ok {
		entry = Weights{
			Sentiment: make(map[domain.Sentiment]float64),
			Topics:    make(map[domain.Topic]float64),
		}
	}
	for label, weight := range sentiment {
		entry.Sentiment[label] += weight
	}
	for topic, weight := range topics {
		entry.Topics[topic] += weight
	}
	l.entries[key] = entry
	if len(tokens) > l.maxPhraseLen {
		l.maxPhraseLen = len(tokens)
	}
}

func (l *Lexicon) Version() string {
	return l.version
}

func (l *Lexicon) Size() int {
	return len(l.entries)
}

func (l *Lexicon) lookup(tokens []string) (Weights, bool) {
	entry, ok := l.entries[strings.Join(tokens, " ")]
	return entry, ok
}

// Tokenize lower-cases text and splits it on word boundaries, keeping inner
// apostrophes and hyphens ("don't", "user-friendly").
func Tokenize(text string) []string {
	normalized := strings.ToLower(strings.ReplaceAll(text, "’", "'"))
	return tokenPattern.FindAllString(normalized, -1)
}
