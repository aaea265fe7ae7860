package analyzer

import (
	"testing"
)

func TestTokenizer_Tokenize_Ranges(t *testing.T) {
	tok := NewTokenizer()
	text := "book a flight to Paris, please"

	tokens := tok.Tokenize(text)
	want := []string{"book", "a", "flight", "to", "Paris", "please"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(tokens), tokens)
	}

	for i, token := range tokens {
		if token.Value != want[i] {
			t.Errorf("token %d = %q, want %q", i, token.Value, want[i])
		}
		if got := text[token.Range.Start:token.Range.End]; got != token.Value {
			t.Errorf("token %d range %v covers %q, want %q", i, token.Range, got, token.Value)
		}
	}
}

func TestTokenizer_Tokenize_MultiByte(t *testing.T) {
	tok := NewTokenizer()
	text := "café à Zürich"

	tokens := tok.Tokenize(text)
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d: %v", len(tokens), tokens)
	}
	if tokens[2].Value != "Zürich" {
		t.Errorf("expected 'Zürich', got %q", tokens[2].Value)
	}
	if got := text[tokens[2].Range.Start:tokens[2].Range.End]; got != "Zürich" {
		t.Errorf("range covers %q", got)
	}
}

func TestTokenizer_Terms_StopwordRemoval(t *testing.T) {
	tok := NewTokenizer()

	terms := tok.Terms("The quick brown fox")
	for _, term := range terms {
		if term == "the" {
			t.Errorf("stopword 'the' should be removed, got %v", terms)
		}
	}
	if len(terms) != 3 {
		t.Errorf("expected 3 terms, got %v", terms)
	}
}

func TestTokenizer_Terms_ShortWordRemoval(t *testing.T) {
	tok := NewTokenizer()

	terms := tok.Terms("a I go to")
	for _, term := range terms {
		if len(term) < 2 {
			t.Errorf("short word should be removed: %s", term)
		}
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer()

	tokens := tok.Tokenize("")
	if len(tokens) != 0 {
		t.Errorf("expected 0 tokens for empty input, got %d", len(tokens))
	}
	if terms := tok.Terms("   "); len(terms) != 0 {
		t.Errorf("expected 0 terms for blank input, got %v", terms)
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"hello_world", 1},
		{"hello-world", 2},
		{"func(x, y)", 3},
		{"CamelCase", 1},
		{"snake_case_name", 1},
		{"123numbers456", 1},
		{"  leading and trailing  ", 3},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}

func TestNewTokenizerForLanguage_Default(t *testing.T) {
	tok, err := NewTokenizerForLanguage("en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tok.(*Tokenizer); !ok {
		t.Errorf("expected *Tokenizer for en, got %T", tok)
	}
}

func TestJapaneseTokenizer(t *testing.T) {
	tok, err := NewTokenizerForLanguage("ja")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := "東京へ行く"
	tokens := tok.Tokenize(text)
	if len(tokens) < 2 {
		t.Fatalf("expected several morphemes, got %v", tokens)
	}
	for _, token := range tokens {
		if got := text[token.Range.Start:token.Range.End]; got != token.Value {
			t.Errorf("range %v covers %q, want %q", token.Range, got, token.Value)
		}
	}
	if tokens[0].Value != "東京" {
		t.Errorf("first morpheme = %q, want 東京", tokens[0].Value)
	}
	if terms := tok.Terms(text); len(terms) != len(tokens) {
		t.Errorf("terms %v do not match tokens %v", terms, tokens)
	}
}
