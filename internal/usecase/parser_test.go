package usecase

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"nlu/internal/adapter/analyzer"
	"nlu/internal/adapter/classifier"
	"nlu/internal/adapter/tagger"
	"nlu/internal/domain"
	"nlu/internal/pkg/logger"
	"nlu/internal/port"
)

// fakeClassifier always answers with intent once fitted.
type fakeClassifier struct {
	intent string
	fitted bool
	err    error
}

func (c *fakeClassifier) Fitted() bool { return c.fitted }

func (c *fakeClassifier) Fit(domain.Dataset) (port.IntentClassifier, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &fakeClassifier{intent: c.intent, fitted: true}, nil
}

func (c *fakeClassifier) GetIntent(string) (string, error) { return c.intent, nil }

func (c *fakeClassifier) ToDict() (domain.Dict, error) {
	return domain.Dict{"intent": c.intent, "fitted": c.fitted}, nil
}

// fakeTagger returns fixed tags and counts calls.
type fakeTagger struct {
	scheme  domain.TaggingScheme
	fitted  bool
	tags    []string
	err     error
	samples []domain.Sample
	calls   *int
}

func (f *fakeTagger) Fitted() bool                  { return f.fitted }
func (f *fakeTagger) Tagging() domain.TaggingScheme { return f.scheme }

func (f *fakeTagger) Fit(samples []domain.Sample) (port.SequenceTagger, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fakeTagger{scheme: f.scheme, fitted: true, tags: f.tags, samples: samples, calls: f.calls}, nil
}

func (f *fakeTagger) GetTags(tokens []domain.Token) ([]string, error) {
	if f.calls != nil {
		*f.calls++
	}
	return f.tags, nil
}

func (f *fakeTagger) ToDict() (domain.Dict, error) {
	return domain.Dict{"tagging_scheme": f.scheme.String(), "fitted": f.fitted}, nil
}

func greetDataset() domain.Dataset {
	return domain.Dataset{Intents: map[string]domain.Intent{
		"greet": {Utterances: []domain.Utterance{
			{Data: []domain.Chunk{
				{Text: "hello "},
				{Text: "world", SlotName: "target", Entity: "place"},
			}},
		}},
	}}
}

func flightDataset() domain.Dataset {
	return domain.Dataset{Intents: map[string]domain.Intent{
		"book_flight": {Utterances: []domain.Utterance{
			{Data: []domain.Chunk{
				{Text: "book a flight to "},
				{Text: "Paris", SlotName: "city", Entity: "location"},
			}},
			{Data: []domain.Chunk{
				{Text: "fly from "},
				{Text: "new york", SlotName: "origin", Entity: "location"},
				{Text: " to "},
				{Text: "Boston", SlotName: "city", Entity: "location"},
			}},
		}},
		"get_weather": {Utterances: []domain.Utterance{
			{Data: []domain.Chunk{
				{Text: "what is the weather in "},
				{Text: "Oslo", SlotName: "city", Entity: "location"},
			}},
			{Data: []domain.Chunk{
				{Text: "will it rain "},
				{Text: "tomorrow", SlotName: "date", Entity: "snips/datetime"},
			}},
		}},
	}}
}

func newParser(t *testing.T, cls port.IntentClassifier, taggers map[string]port.SequenceTagger) *IntentParser {
	t.Helper()
	return NewIntentParser(cls, taggers, analyzer.NewTokenizer(), WithLogger(logger.Discard()))
}

func realParser(t *testing.T, ds domain.Dataset, scheme domain.TaggingScheme) *IntentParser {
	t.Helper()
	taggers := make(map[string]port.SequenceTagger)
	for name := range ds.Intents {
		taggers[name] = tagger.NewLexicon(scheme)
	}
	return newParser(t, classifier.NewNaiveBayes(analyzer.NewTokenizer()), taggers)
}

func TestFit_BuildsSlotMapping(t *testing.T) {
	p := newParser(t, &fakeClassifier{intent: "greet"}, map[string]port.SequenceTagger{
		"greet": &fakeTagger{scheme: domain.BIO},
	})

	if err := p.Fit(greetDataset(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"target": "place"}
	if got := p.SlotNameToEntityMapping(); !reflect.DeepEqual(got, want) {
		t.Errorf("mapping = %v, want %v", got, want)
	}
	if !p.Fitted() {
		t.Error("expected fitted parser")
	}
}

func TestFit_ConvertsUtterancesWithTaggerScheme(t *testing.T) {
	p := newParser(t, &fakeClassifier{intent: "greet"}, map[string]port.SequenceTagger{
		"greet": &fakeTagger{scheme: domain.BILOU},
	})
	if err := p.Fit(greetDataset(), nil); err != nil {
		t.Fatal(err)
	}

	fitted := p.taggers["greet"].(*fakeTagger)
	if len(fitted.samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(fitted.samples))
	}
	if want := []string{"O", "U-target"}; !reflect.DeepEqual(fitted.samples[0].Tags, want) {
		t.Errorf("sample tags = %v, want %v", fitted.samples[0].Tags, want)
	}
}

func TestFit_ReportsProgress(t *testing.T) {
	p := realParser(t, flightDataset(), domain.BIO)

	var seen []string
	err := p.Fit(flightDataset(), func(done, total int, intent string) {
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
		seen = append(seen, intent)
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"book_flight", "get_weather"}; !reflect.DeepEqual(seen, want) {
		t.Errorf("progress intents = %v, want %v", seen, want)
	}
}

func TestFit_LastWriteWinsOnConflictingEntities(t *testing.T) {
	ds := domain.Dataset{Intents: map[string]domain.Intent{
		"a_intent": {Utterances: []domain.Utterance{{Data: []domain.Chunk{{Text: "x", SlotName: "dest", Entity: "city"}}}}},
		"b_intent": {Utterances: []domain.Utterance{{Data: []domain.Chunk{{Text: "y", SlotName: "dest", Entity: "country"}}}}},
	}}

	mapping := BuildSlotNameToEntityMapping(ds, logger.Discard())
	if mapping["dest"] != "country" {
		t.Errorf("expected last write (country) to win, got %s", mapping["dest"])
	}
}

func TestFit_AllOrNothing(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		cls     *fakeClassifier
		taggers map[string]port.SequenceTagger
	}{
		{
			name: "classifier fails",
			cls:  &fakeClassifier{err: boom},
			taggers: map[string]port.SequenceTagger{
				"greet": &fakeTagger{scheme: domain.BIO},
			},
		},
		{
			name: "tagger fails",
			cls:  &fakeClassifier{intent: "greet"},
			taggers: map[string]port.SequenceTagger{
				"greet": &fakeTagger{scheme: domain.BIO, err: boom},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParser(t, tt.cls, tt.taggers)
			err := p.Fit(greetDataset(), nil)
			if !errors.Is(err, boom) {
				t.Fatalf("expected wrapped boom error, got %v", err)
			}
			if p.Fitted() {
				t.Error("parser must stay unfitted after a failed fit")
			}
			if len(p.SlotNameToEntityMapping()) != 0 {
				t.Error("slot mapping must not be updated after a failed fit")
			}
			if p.classifier != port.IntentClassifier(tt.cls) {
				t.Error("classifier must not be replaced after a failed fit")
			}
		})
	}
}

func TestFit_UnknownDatasetIntent(t *testing.T) {
	p := newParser(t, &fakeClassifier{intent: "greet"}, map[string]port.SequenceTagger{})
	if err := p.Fit(greetDataset(), nil); !errors.Is(err, domain.ErrUnknownIntent) {
		t.Errorf("expected ErrUnknownIntent, got %v", err)
	}
}

func TestFitted_StrictConjunction(t *testing.T) {
	p := newParser(t, &fakeClassifier{fitted: true}, map[string]port.SequenceTagger{
		"a": &fakeTagger{fitted: true},
		"b": &fakeTagger{fitted: false},
	})
	if p.Fitted() {
		t.Error("parser with an unfitted tagger must not be fitted")
	}

	p = newParser(t, &fakeClassifier{fitted: false}, map[string]port.SequenceTagger{
		"a": &fakeTagger{fitted: true},
	})
	if p.Fitted() {
		t.Error("parser with an unfitted classifier must not be fitted")
	}
}

func TestGetIntent_NotFitted(t *testing.T) {
	p := realParser(t, flightDataset(), domain.BIO)
	if _, err := p.GetIntent("book a flight"); !errors.Is(err, domain.ErrNotFitted) {
		t.Errorf("expected ErrNotFitted, got %v", err)
	}
}

func TestGetSlots_EmptyIntentBeforeTagger(t *testing.T) {
	calls := 0
	p := newParser(t, &fakeClassifier{fitted: true}, map[string]port.SequenceTagger{
		"book_flight": &fakeTagger{fitted: true, calls: &calls},
	})

	_, err := p.GetSlots("book a flight", "")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if calls != 0 {
		t.Errorf("tagger must not be called, got %d calls", calls)
	}

	unfitted := realParser(t, flightDataset(), domain.BIO)
	if _, err := unfitted.GetSlots("book a flight", ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument before fitted check, got %v", err)
	}
}

func TestGetSlots_Errors(t *testing.T) {
	p := newParser(t, &fakeClassifier{fitted: true}, map[string]port.SequenceTagger{
		"book_flight": &fakeTagger{fitted: true, scheme: domain.BIO, tags: []string{"O", "B-ghost"}},
		"short":       &fakeTagger{fitted: true, scheme: domain.BIO, tags: []string{"O"}},
		"garbage":     &fakeTagger{fitted: true, scheme: domain.BIO, tags: []string{"O", "Z-city"}},
	})

	tests := []struct {
		name   string
		intent string
		want   error
	}{
		{"unknown intent", "order_pizza", domain.ErrUnknownIntent},
		{"unknown slot name", "book_flight", domain.ErrUnknownSlotName},
		{"tag count mismatch", "short", domain.ErrInvalidInput},
		{"invalid tag", "garbage", domain.ErrInvalidTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.GetSlots("to Paris", tt.intent)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGetSlots_ResolvesEntitiesAndValues(t *testing.T) {
	p := newParser(t, &fakeClassifier{intent: "book_flight"}, map[string]port.SequenceTagger{
		"book_flight": &fakeTagger{scheme: domain.BIO, tags: []string{"O", "O", "O", "O", "B-city", "I-city"}},
	})
	ds := domain.Dataset{Intents: map[string]domain.Intent{
		"book_flight": {Utterances: []domain.Utterance{{Data: []domain.Chunk{{Text: "x", SlotName: "city", Entity: "location"}}}}},
	}}
	if err := p.Fit(ds, nil); err != nil {
		t.Fatal(err)
	}

	text := "book a flight to New  York"
	slots, err := p.GetSlots(text, "book_flight")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.ParsedSlot{{
		Range:    domain.Range{Start: 17, End: 26},
		Value:    "New  York",
		Entity:   "location",
		SlotName: "city",
	}}
	if !reflect.DeepEqual(slots, want) {
		t.Errorf("slots = %+v, want %+v", slots, want)
	}
}

func TestGetSlots_Idempotent(t *testing.T) {
	p := realParser(t, flightDataset(), domain.BIO)
	if err := p.Fit(flightDataset(), nil); err != nil {
		t.Fatal(err)
	}
	before := p.SlotNameToEntityMapping()

	first, err := p.GetSlots("fly from new york to Paris", "book_flight")
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.GetSlots("fly from new york to Paris", "book_flight")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("GetSlots not idempotent: %v vs %v", first, second)
	}
	if !reflect.DeepEqual(before, p.SlotNameToEntityMapping()) {
		t.Error("GetSlots mutated the slot mapping")
	}
}

func TestParse_EndToEnd(t *testing.T) {
	for _, scheme := range []domain.TaggingScheme{domain.IO, domain.BIO, domain.BILOU} {
		t.Run(scheme.String(), func(t *testing.T) {
			p := realParser(t, flightDataset(), scheme)
			if err := p.Fit(flightDataset(), nil); err != nil {
				t.Fatal(err)
			}

			result, err := p.Parse("book a flight to Boston")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Intent != "book_flight" {
				t.Errorf("intent = %s, want book_flight", result.Intent)
			}
			if len(result.Slots) != 1 {
				t.Fatalf("expected 1 slot, got %+v", result.Slots)
			}
			slot := result.Slots[0]
			if slot.Value != "Boston" || slot.SlotName != "city" || slot.Entity != "location" {
				t.Errorf("unexpected slot %+v", slot)
			}
		})
	}
}

func TestDictRoundTrip(t *testing.T) {
	ds := flightDataset()
	p := realParser(t, ds, domain.BILOU)
	if err := p.Fit(ds, nil); err != nil {
		t.Fatal(err)
	}

	d, err := p.ToDict()
	if err != nil {
		t.Fatal(err)
	}

	// Through JSON, as a model store would persist it.
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var decoded domain.ParserDict
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	tok := analyzer.NewTokenizer()
	restored, err := ParserFromDict(decoded, tok, Restorers{
		Classifier: func(d domain.Dict) (port.IntentClassifier, error) {
			return classifier.NaiveBayesFromDict(d, tok)
		},
		Tagger: tagger.Restore,
	}, WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if restored.Fitted() != p.Fitted() {
		t.Errorf("fitted = %v, want %v", restored.Fitted(), p.Fitted())
	}
	if !reflect.DeepEqual(restored.SlotNameToEntityMapping(), p.SlotNameToEntityMapping()) {
		t.Errorf("mapping = %v, want %v", restored.SlotNameToEntityMapping(), p.SlotNameToEntityMapping())
	}
	if !reflect.DeepEqual(restored.Intents(), p.Intents()) {
		t.Errorf("intents = %v, want %v", restored.Intents(), p.Intents())
	}

	a, err := p.Parse("what is the weather in Oslo")
	if err != nil {
		t.Fatal(err)
	}
	b, err := restored.Parse("what is the weather in Oslo")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("restored parse %+v differs from original %+v", b, a)
	}
}

func TestDictRoundTrip_Unfitted(t *testing.T) {
	p := realParser(t, flightDataset(), domain.BIO)
	d, err := p.ToDict()
	if err != nil {
		t.Fatal(err)
	}
	if d.ClassName != "IntentParser" {
		t.Errorf("class name = %q", d.ClassName)
	}

	tok := analyzer.NewTokenizer()
	restored, err := ParserFromDict(d, tok, Restorers{
		Classifier: func(d domain.Dict) (port.IntentClassifier, error) {
			return classifier.NaiveBayesFromDict(d, tok)
		},
		Tagger: tagger.Restore,
	})
	if err != nil {
		t.Fatal(err)
	}
	if restored.Fitted() {
		t.Error("restored unfitted parser must stay unfitted")
	}
	if len(restored.Intents()) != 2 {
		t.Errorf("expected 2 intents, got %v", restored.Intents())
	}
}

func TestParserFromDict_MissingClassifier(t *testing.T) {
	_, err := ParserFromDict(domain.ParserDict{}, analyzer.NewTokenizer(), Restorers{})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestParserFromDict_MissingRestorers(t *testing.T) {
	d := domain.ParserDict{
		ClassName:        "IntentParser",
		IntentClassifier: domain.Dict{"fitted": false},
		CRFTaggers:       map[string]domain.Dict{"greet": {"fitted": false}},
	}
	tok := analyzer.NewTokenizer()
	classify := func(domain.Dict) (port.IntentClassifier, error) { return &fakeClassifier{}, nil }

	tests := []struct {
		name    string
		restore Restorers
	}{
		{"no restorers", Restorers{}},
		{"no tagger restorer", Restorers{Classifier: classify}},
		{"no classifier restorer", Restorers{Tagger: tagger.Restore}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParserFromDict(d, tok, tt.restore)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}
