// Package classifier provides intent classifiers.
package classifier

import (
	"fmt"
	"math"
	"sort"

	"nlu/internal/domain"
	"nlu/internal/port"
)

const naiveBayesClassName = "NaiveBayesIntentClassifier"

// TermExtractor turns raw text into bag-of-words features.
type TermExtractor interface {
	Terms(text string) []string
}

// Stemmer normalizes a whitespace-separated sentence for a language.
type Stemmer interface {
	StemSentence(sentence, lang string) string
}

// Option configures a NaiveBayes classifier.
type Option func(*NaiveBayes)

// WithStemming normalizes text through stemmer before feature extraction.
func WithStemming(stemmer Stemmer, lang string) Option {
	return func(nb *NaiveBayes) {
		nb.stemmer = stemmer
		nb.language = lang
	}
}

// WithAlpha sets the additive smoothing constant.
func WithAlpha(alpha float64) Option {
	return func(nb *NaiveBayes) {
		if alpha > 0 {
			nb.model.Alpha = alpha
		}
	}
}

// NaiveBayes is a multinomial naive Bayes intent classifier.
type NaiveBayes struct {
	terms    TermExtractor
	stemmer  Stemmer
	language string
	fitted   bool
	model    nbModel
}

type nbModel struct {
	Alpha      float64                   `json:"alpha"`
	Priors     map[string]int            `json:"priors"`
	TermCounts map[string]map[string]int `json:"term_counts"`
	Totals     map[string]int            `json:"totals"`
	Vocabulary int                       `json:"vocabulary"`
}

type nbState struct {
	ClassName string  `json:"@class_name"`
	Language  string  `json:"language,omitempty"`
	Stemming  bool    `json:"stemming"`
	Fitted    bool    `json:"fitted"`
	Model     nbModel `json:"model"`
}

// NewNaiveBayes creates an unfitted classifier.
func NewNaiveBayes(terms TermExtractor, opts ...Option) *NaiveBayes {
	nb := &NaiveBayes{
		terms: terms,
		model: nbModel{Alpha: 1.0},
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

func (nb *NaiveBayes) Fitted() bool {
	return nb.fitted
}

// Fit trains on every utterance of every intent. It returns a new
// classifier and leaves the receiver unchanged.
func (nb *NaiveBayes) Fit(dataset domain.Dataset) (port.IntentClassifier, error) {
	if len(dataset.Intents) == 0 {
		return nil, fmt.Errorf("%w: dataset has no intents", domain.ErrInvalidArgument)
	}

	fitted := &NaiveBayes{
		terms:    nb.terms,
		stemmer:  nb.stemmer,
		language: nb.language,
		model: nbModel{
			Alpha:      nb.model.Alpha,
			Priors:     make(map[string]int),
			TermCounts: make(map[string]map[string]int),
			Totals:     make(map[string]int),
		},
	}

	vocab := make(map[string]struct{})
	for name, intent := range dataset.Intents {
		counts := make(map[string]int)
		fitted.model.TermCounts[name] = counts
		fitted.model.Priors[name] = len(intent.Utterances)
		for _, u := range intent.Utterances {
			for _, term := range fitted.features(u.Text()) {
				counts[term]++
				fitted.model.Totals[name]++
				vocab[term] = struct{}{}
			}
		}
	}
	fitted.model.Vocabulary = len(vocab)
	fitted.fitted = true
	return fitted, nil
}

// GetIntent returns the most probable intent. Ties go to the intent whose
// name sorts first.
func (nb *NaiveBayes) GetIntent(text string) (string, error) {
	if !nb.fitted {
		return "", fmt.Errorf("%w: naive bayes classifier", domain.ErrNotFitted)
	}

	intents := make([]string, 0, len(nb.model.Priors))
	docs := 0
	for name, n := range nb.model.Priors {
		intents = append(intents, name)
		docs += n
	}
	if len(intents) == 0 {
		return "", fmt.Errorf("%w: classifier has no intents", domain.ErrNotFitted)
	}
	sort.Strings(intents)

	terms := nb.features(text)
	best, bestScore := "", math.Inf(-1)
	for _, name := range intents {
		score := nb.logScore(name, terms, docs, len(intents))
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return best, nil
}

func (nb *NaiveBayes) logScore(intent string, terms []string, docs, classes int) float64 {
	m := nb.model
	score := math.Log((float64(m.Priors[intent]) + m.Alpha) / (float64(docs) + m.Alpha*float64(classes)))
	denom := float64(m.Totals[intent]) + m.Alpha*float64(m.Vocabulary+1)
	for _, term := range terms {
		score += math.Log((float64(m.TermCounts[intent][term]) + m.Alpha) / denom)
	}
	return score
}

func (nb *NaiveBayes) features(text string) []string {
	if nb.stemmer != nil {
		text = nb.stemmer.StemSentence(text, nb.language)
	}
	return nb.terms.Terms(text)
}

func (nb *NaiveBayes) ToDict() (domain.Dict, error) {
	return domain.EncodeDict(nbState{
		ClassName: naiveBayesClassName,
		Language:  nb.language,
		Stemming:  nb.stemmer != nil,
		Fitted:    nb.fitted,
		Model:     nb.model,
	})
}

// NaiveBayesFromDict restores a classifier serialized with ToDict. A
// stemming classifier needs WithStemming among opts to normalize text the
// way it was trained.
func NaiveBayesFromDict(d domain.Dict, terms TermExtractor, opts ...Option) (*NaiveBayes, error) {
	var state nbState
	if err := domain.DecodeDict(d, &state); err != nil {
		return nil, fmt.Errorf("failed to decode classifier: %w", err)
	}
	if state.ClassName != naiveBayesClassName {
		return nil, fmt.Errorf("%w: expected %s dict, got %q", domain.ErrInvalidArgument, naiveBayesClassName, state.ClassName)
	}

	nb := NewNaiveBayes(terms, opts...)
	if state.Stemming && nb.stemmer == nil {
		return nil, fmt.Errorf("%w: classifier was trained with stemming but no stemmer was provided", domain.ErrInvalidArgument)
	}
	if !state.Stemming {
		nb.stemmer = nil
	}
	nb.language = state.Language
	nb.fitted = state.Fitted
	nb.model = state.Model
	return nb, nil
}
