package analyzer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"nlu/internal/domain"
)

// JapaneseTokenizer segments text with kagome's IPA dictionary. Japanese is
// written without spaces, so word boundaries come from morphological
// analysis rather than character classes.
type JapaneseTokenizer struct {
	kg *tokenizer.Tokenizer
}

func NewJapaneseTokenizer() (*JapaneseTokenizer, error) {
	kg, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("failed to create kagome tokenizer: %w", err)
	}
	return &JapaneseTokenizer{kg: kg}, nil
}

// Tokenize returns morphemes with byte ranges. Morphemes made only of
// spaces or punctuation are dropped.
func (t *JapaneseTokenizer) Tokenize(text string) []domain.Token {
	tokens := []domain.Token{}
	for _, kt := range t.kg.Tokenize(text) {
		if kt.Class == tokenizer.DUMMY || !hasWordRune(kt.Surface) {
			continue
		}
		start := kt.Position
		tokens = append(tokens, domain.Token{
			Value: kt.Surface,
			Range: domain.Range{Start: start, End: start + len(kt.Surface)},
		})
	}
	return tokens
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if isWordRune(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

// Terms returns the lowercased morphemes of text that carry a word rune.
func (t *JapaneseTokenizer) Terms(text string) []string {
	tokens := t.Tokenize(text)
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		terms = append(terms, strings.ToLower(tok.Value))
	}
	return terms
}
