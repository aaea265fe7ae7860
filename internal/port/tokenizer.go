package port

import "nlu/internal/domain"

// Tokenizer splits an utterance into tokens carrying byte ranges.
type Tokenizer interface {
	Tokenize(text string) []domain.Token
}
