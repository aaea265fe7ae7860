package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"nlu/internal/domain"
	"nlu/internal/port"
)

// Tokenizer splits text into word tokens carrying byte offsets.
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
	}
}

// Analyzer tokenizes text for taggers and extracts terms for classifiers.
type Analyzer interface {
	port.Tokenizer
	Terms(text string) []string
}

// NewTokenizerForLanguage picks the tokenizer for an ISO language code.
func NewTokenizerForLanguage(lang string) (Analyzer, error) {
	if strings.EqualFold(lang, "ja") {
		jt, err := NewJapaneseTokenizer()
		if err != nil {
			return nil, err
		}
		return jt, nil
	}
	return NewTokenizer(), nil
}

// Tokenize splits text into tokens. Punctuation and whitespace separate
// tokens and are not part of any token.
func (t *Tokenizer) Tokenize(text string) []domain.Token {
	return splitWords(text)
}

// Terms returns the lowercased content words of text, for bag-of-words
// features.
func (t *Tokenizer) Terms(text string) []string {
	words := splitWords(text)
	terms := make([]string, 0, len(words))

	for _, word := range words {
		term := strings.ToLower(word.Value)
		if utf8.RuneCountInString(term) < 2 {
			continue
		}
		if _, isStop := t.stopwords[term]; isStop {
			continue
		}
		terms = append(terms, term)
	}

	return terms
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// splitWords splits text into words using unicode letter and digit classes.
func splitWords(text string) []domain.Token {
	tokens := []domain.Token{}
	start := -1

	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, domain.Token{
				Value: text[start:i],
				Range: domain.Range{Start: start, End: i},
			})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, domain.Token{
			Value: text[start:],
			Range: domain.Range{Start: start, End: len(text)},
		})
	}

	return tokens
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
