package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Range is a half-open [Start, End) byte range into an utterance.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Token struct {
	Value string `json:"text"`
	Range Range  `json:"range"`
}

// TaggingScheme selects how a tag sequence encodes slot boundaries.
type TaggingScheme int

const (
	IO TaggingScheme = iota
	BIO
	BILOU
)

var schemeNames = [...]string{
	IO:    "io",
	BIO:   "bio",
	BILOU: "bilou",
}

func (s TaggingScheme) String() string {
	if int(s) >= 0 && int(s) < len(schemeNames) {
		return schemeNames[s]
	}
	return fmt.Sprintf("TaggingScheme(%d)", int(s))
}

// ParseTaggingScheme accepts the scheme name case-insensitively.
func ParseTaggingScheme(name string) (TaggingScheme, error) {
	for i, n := range schemeNames {
		if strings.EqualFold(n, name) {
			return TaggingScheme(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tagging scheme %q", name)
}

func (s TaggingScheme) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TaggingScheme) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseTaggingScheme(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SlotSpan is a decoded slot before entity resolution.
type SlotSpan struct {
	Range    Range  `json:"range"`
	SlotName string `json:"slot_name"`
}

type ParsedSlot struct {
	Range    Range  `json:"range"`
	Value    string `json:"value"`
	Entity   string `json:"entity"`
	SlotName string `json:"slot_name"`
}

type ParseResult struct {
	Input  string       `json:"input"`
	Intent string       `json:"intent"`
	Slots  []ParsedSlot `json:"slots"`
}

// Sample is a tagger training example: one tag per token.
type Sample struct {
	Tokens []Token  `json:"tokens"`
	Tags   []string `json:"tags"`
}

type Chunk struct {
	Text     string `json:"text"`
	SlotName string `json:"slot_name,omitempty"`
	Entity   string `json:"entity,omitempty"`
}

// HasSlot reports whether the chunk is annotated with a slot.
func (c Chunk) HasSlot() bool {
	return c.SlotName != ""
}

type Utterance struct {
	Data []Chunk `json:"data"`
}

// Text joins the chunk texts back into the raw utterance.
func (u Utterance) Text() string {
	var b strings.Builder
	for _, c := range u.Data {
		b.WriteString(c.Text)
	}
	return b.String()
}

type Intent struct {
	Utterances []Utterance `json:"utterances"`
}

type Dataset struct {
	Intents map[string]Intent `json:"intents"`
}

// Dict is the plain nested mapping a model serializes to.
type Dict = map[string]any

// ParserDict is the serialized form of an intent parser.
type ParserDict struct {
	ClassName               string            `json:"@class_name"`
	IntentClassifier        Dict              `json:"intent_classifier"`
	CRFTaggers              map[string]Dict   `json:"crf_taggers"`
	SlotNameToEntityMapping map[string]string `json:"slot_name_to_entity_mapping"`
}

// EncodeDict converts a JSON-serializable value into a Dict.
func EncodeDict(v any) (Dict, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var d Dict
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// DecodeDict fills v from a Dict produced by EncodeDict.
func DecodeDict(d Dict, v any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
