// Package tagger provides sequence taggers for slot filling.
package tagger

import (
	"fmt"
	"sort"
	"strings"

	"nlu/internal/adapter/tagging"
	"nlu/internal/domain"
	"nlu/internal/port"
)

const lexiconClassName = "LexiconTagger"

// Lexicon tags each token with the tag it carried most often in training.
// Unseen tokens are tagged outside.
type Lexicon struct {
	scheme    domain.TaggingScheme
	fitted    bool
	emissions map[string]map[string]int
}

type lexiconState struct {
	ClassName     string                    `json:"@class_name"`
	TaggingScheme domain.TaggingScheme      `json:"tagging_scheme"`
	Fitted        bool                      `json:"fitted"`
	Emissions     map[string]map[string]int `json:"emissions"`
}

// NewLexicon creates an unfitted tagger for scheme.
func NewLexicon(scheme domain.TaggingScheme) *Lexicon {
	return &Lexicon{
		scheme:    scheme,
		emissions: make(map[string]map[string]int),
	}
}

func (l *Lexicon) Fitted() bool {
	return l.fitted
}

func (l *Lexicon) Tagging() domain.TaggingScheme {
	return l.scheme
}

// Fit counts token/tag co-occurrences. It returns a new tagger and leaves
// the receiver unchanged.
func (l *Lexicon) Fit(samples []domain.Sample) (port.SequenceTagger, error) {
	fitted := NewLexicon(l.scheme)
	for i, sample := range samples {
		if len(sample.Tokens) != len(sample.Tags) {
			return nil, fmt.Errorf("%w: sample %d has %d tokens but %d tags",
				domain.ErrInvalidInput, i, len(sample.Tokens), len(sample.Tags))
		}
		for j, tok := range sample.Tokens {
			key := normalize(tok.Value)
			counts, ok := fitted.emissions[key]
			if !ok {
				counts = make(map[string]int)
				fitted.emissions[key] = counts
			}
			counts[sample.Tags[j]]++
		}
	}
	fitted.fitted = true
	return fitted, nil
}

// GetTags returns one tag per token.
func (l *Lexicon) GetTags(tokens []domain.Token) ([]string, error) {
	if !l.fitted {
		return nil, fmt.Errorf("%w: lexicon tagger", domain.ErrNotFitted)
	}
	tags := make([]string, len(tokens))
	for i, tok := range tokens {
		tags[i] = bestTag(l.emissions[normalize(tok.Value)])
	}
	return tags, nil
}

func (l *Lexicon) ToDict() (domain.Dict, error) {
	return domain.EncodeDict(lexiconState{
		ClassName:     lexiconClassName,
		TaggingScheme: l.scheme,
		Fitted:        l.fitted,
		Emissions:     l.emissions,
	})
}

// LexiconFromDict restores a tagger serialized with ToDict.
func LexiconFromDict(d domain.Dict) (*Lexicon, error) {
	var state lexiconState
	if err := domain.DecodeDict(d, &state); err != nil {
		return nil, fmt.Errorf("failed to decode tagger: %w", err)
	}
	if state.ClassName != lexiconClassName {
		return nil, fmt.Errorf("%w: expected %s dict, got %q", domain.ErrInvalidArgument, lexiconClassName, state.ClassName)
	}
	l := NewLexicon(state.TaggingScheme)
	l.fitted = state.Fitted
	if state.Emissions != nil {
		l.emissions = state.Emissions
	}
	return l, nil
}

// Restore adapts LexiconFromDict to the port interface.
func Restore(d domain.Dict) (port.SequenceTagger, error) {
	return LexiconFromDict(d)
}

func normalize(token string) string {
	return strings.ToLower(token)
}

// bestTag picks the most frequent tag; ties go to the smallest tag.
func bestTag(counts map[string]int) string {
	if len(counts) == 0 {
		return tagging.OutsideTag
	}
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	best := tags[0]
	for _, tag := range tags[1:] {
		if counts[tag] > counts[best] {
			best = tag
		}
	}
	return best
}
