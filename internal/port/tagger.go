package port

import "nlu/internal/domain"

// SequenceTagger maps a token sequence to one tag per token.
type SequenceTagger interface {
	// Fitted reports whether the tagger can be used for inference.
	Fitted() bool

	// Tagging returns the scheme the tags are encoded with.
	Tagging() domain.TaggingScheme

	// Fit returns a fitted tagger trained on samples. The receiver is left
	// untouched.
	Fit(samples []domain.Sample) (SequenceTagger, error)

	// GetTags returns exactly one tag per token.
	GetTags(tokens []domain.Token) ([]string, error)

	ToDict() (domain.Dict, error)
}
