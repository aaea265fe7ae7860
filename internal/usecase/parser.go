package usecase

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"nlu/internal/adapter/tagging"
	"nlu/internal/domain"
	"nlu/internal/port"
)

const parserClassName = "IntentParser"

// ProgressFunc is called after each intent's tagger has been fitted.
type ProgressFunc func(done, total int, intent string)

// ParserOption configures an IntentParser.
type ParserOption func(*IntentParser)

// WithLogger sets the parser's logger.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *IntentParser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// IntentParser answers which intent an utterance expresses and which slots
// it fills. One classifier is shared by all intents; each intent has its
// own sequence tagger.
type IntentParser struct {
	tokenizer port.Tokenizer
	logger    *slog.Logger

	mu           sync.RWMutex
	classifier   port.IntentClassifier
	taggers      map[string]port.SequenceTagger
	slotEntities map[string]string
}

// NewIntentParser creates a parser around unfitted or fitted components.
func NewIntentParser(
	classifier port.IntentClassifier,
	taggers map[string]port.SequenceTagger,
	tokenizer port.Tokenizer,
	opts ...ParserOption,
) *IntentParser {
	p := &IntentParser{
		tokenizer:    tokenizer,
		logger:       slog.Default(),
		classifier:   classifier,
		taggers:      make(map[string]port.SequenceTagger, len(taggers)),
		slotEntities: make(map[string]string),
	}
	for name, t := range taggers {
		p.taggers[name] = t
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fitted reports whether the classifier and every tagger are fitted.
func (p *IntentParser) Fitted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fittedLocked()
}

func (p *IntentParser) fittedLocked() bool {
	if !p.classifier.Fitted() {
		return false
	}
	for _, t := range p.taggers {
		if !t.Fitted() {
			return false
		}
	}
	return true
}

// Intents returns the intents the parser has taggers for, sorted.
func (p *IntentParser) Intents() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedKeys(p.taggers)
}

// SlotNameToEntityMapping returns a copy of the slot name to entity table.
func (p *IntentParser) SlotNameToEntityMapping() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyMapping(p.slotEntities)
}

// GetIntent classifies text.
func (p *IntentParser) GetIntent(text string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.fittedLocked() {
		return "", fmt.Errorf("%w: intent parser must be fitted before GetIntent is called", domain.ErrNotFitted)
	}
	return p.classifier.GetIntent(text)
}

// GetSlots extracts the slots of intent from text. Each slot's value is
// the exact substring of text covered by its range.
func (p *IntentParser) GetSlots(text, intent string) ([]domain.ParsedSlot, error) {
	if intent == "" {
		return nil, fmt.Errorf("%w: intent must be set", domain.ErrInvalidArgument)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.fittedLocked() {
		return nil, fmt.Errorf("%w: intent parser must be fitted before GetSlots is called", domain.ErrNotFitted)
	}
	tagger, ok := p.taggers[intent]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownIntent, intent)
	}

	tokens := p.tokenizer.Tokenize(text)
	tags, err := tagger.GetTags(tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to tag %q for intent %s: %w", text, intent, err)
	}
	spans, err := tagging.TagsToSlots(tokens, tags, tagger.Tagging())
	if err != nil {
		return nil, fmt.Errorf("failed to decode tags for intent %s: %w", intent, err)
	}

	slots := make([]domain.ParsedSlot, 0, len(spans))
	for _, s := range spans {
		entity, ok := p.slotEntities[s.SlotName]
		if !ok {
			return nil, fmt.Errorf("%w: %q decoded for intent %s", domain.ErrUnknownSlotName, s.SlotName, intent)
		}
		slots = append(slots, domain.ParsedSlot{
			Range:    s.Range,
			Value:    text[s.Range.Start:s.Range.End],
			Entity:   entity,
			SlotName: s.SlotName,
		})
	}
	return slots, nil
}

// Parse classifies text and extracts the slots of the resulting intent.
func (p *IntentParser) Parse(text string) (domain.ParseResult, error) {
	intent, err := p.GetIntent(text)
	if err != nil {
		return domain.ParseResult{}, err
	}
	slots, err := p.GetSlots(text, intent)
	if err != nil {
		return domain.ParseResult{}, err
	}
	return domain.ParseResult{Input: text, Intent: intent, Slots: slots}, nil
}

// Fit trains the classifier on the whole dataset and each intent's tagger
// on that intent's utterances. Nothing is committed unless every sub-fit
// succeeds.
func (p *IntentParser) Fit(dataset domain.Dataset, progress ProgressFunc) error {
	p.mu.RLock()
	classifier := p.classifier
	taggers := make(map[string]port.SequenceTagger, len(p.taggers))
	for name, t := range p.taggers {
		taggers[name] = t
	}
	p.mu.RUnlock()

	intents := sortedKeys(dataset.Intents)
	for _, name := range intents {
		if _, ok := taggers[name]; !ok {
			return fmt.Errorf("%w: no tagger configured for dataset intent %q", domain.ErrUnknownIntent, name)
		}
	}

	mapping := BuildSlotNameToEntityMapping(dataset, p.logger)

	fittedClassifier, err := classifier.Fit(dataset)
	if err != nil {
		return fmt.Errorf("failed to fit intent classifier: %w", err)
	}
	p.logger.Info("fitted intent classifier", "intents", len(intents))

	for i, name := range intents {
		tagger := taggers[name]
		utterances := dataset.Intents[name].Utterances
		samples := make([]domain.Sample, 0, len(utterances))
		for _, u := range utterances {
			samples = append(samples, tagging.UtteranceToSample(u.Data, tagger.Tagging(), p.tokenizer))
		}

		fitted, err := tagger.Fit(samples)
		if err != nil {
			return fmt.Errorf("failed to fit tagger for intent %s: %w", name, err)
		}
		taggers[name] = fitted
		p.logger.Debug("fitted tagger", "intent", name, "samples", len(samples), "tagging", tagger.Tagging().String())

		if progress != nil {
			progress(i+1, len(intents), name)
		}
	}

	for name := range taggers {
		if _, ok := dataset.Intents[name]; !ok {
			p.logger.Warn("tagger has no training data and stays unfitted", "intent", name)
		}
	}

	p.mu.Lock()
	p.classifier = fittedClassifier
	p.taggers = taggers
	p.slotEntities = mapping
	p.mu.Unlock()

	p.logger.Info("fitted intent parser", "intents", len(intents), "slots", len(mapping))
	return nil
}

// BuildSlotNameToEntityMapping collects the entity of every annotated
// chunk. A slot name seen with several entities keeps the last one.
func BuildSlotNameToEntityMapping(dataset domain.Dataset, logger *slog.Logger) map[string]string {
	mapping := make(map[string]string)
	for _, name := range sortedKeys(dataset.Intents) {
		for _, u := range dataset.Intents[name].Utterances {
			for _, chunk := range u.Data {
				if !chunk.HasSlot() {
					continue
				}
				if prev, ok := mapping[chunk.SlotName]; ok && prev != chunk.Entity && logger != nil {
					logger.Warn("slot name reassigned to a different entity",
						"slot_name", chunk.SlotName, "previous", prev, "entity", chunk.Entity, "intent", name)
				}
				mapping[chunk.SlotName] = chunk.Entity
			}
		}
	}
	return mapping
}

// ToDict serializes the classifier, the taggers and the slot mapping.
func (p *IntentParser) ToDict() (domain.ParserDict, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	classifierDict, err := p.classifier.ToDict()
	if err != nil {
		return domain.ParserDict{}, fmt.Errorf("failed to serialize intent classifier: %w", err)
	}

	taggers := make(map[string]domain.Dict, len(p.taggers))
	for _, name := range sortedKeys(p.taggers) {
		d, err := p.taggers[name].ToDict()
		if err != nil {
			return domain.ParserDict{}, fmt.Errorf("failed to serialize tagger for intent %s: %w", name, err)
		}
		taggers[name] = d
	}

	return domain.ParserDict{
		ClassName:               parserClassName,
		IntentClassifier:        classifierDict,
		CRFTaggers:              taggers,
		SlotNameToEntityMapping: copyMapping(p.slotEntities),
	}, nil
}

// Restorers rebuild parser components from their dicts.
type Restorers struct {
	Classifier func(domain.Dict) (port.IntentClassifier, error)
	Tagger     func(domain.Dict) (port.SequenceTagger, error)
}

// ParserFromDict rebuilds a parser serialized with ToDict.
func ParserFromDict(d domain.ParserDict, tokenizer port.Tokenizer, restore Restorers, opts ...ParserOption) (*IntentParser, error) {
	if d.ClassName != "" && d.ClassName != parserClassName {
		return nil, fmt.Errorf("%w: expected %s dict, got %q", domain.ErrInvalidArgument, parserClassName, d.ClassName)
	}
	if restore.Classifier == nil || restore.Tagger == nil {
		return nil, fmt.Errorf("%w: classifier and tagger restorers are required", domain.ErrInvalidArgument)
	}
	if d.IntentClassifier == nil {
		return nil, fmt.Errorf("%w: missing intent_classifier", domain.ErrInvalidArgument)
	}

	classifier, err := restore.Classifier(d.IntentClassifier)
	if err != nil {
		return nil, fmt.Errorf("failed to restore intent classifier: %w", err)
	}

	taggers := make(map[string]port.SequenceTagger, len(d.CRFTaggers))
	for _, name := range sortedKeys(d.CRFTaggers) {
		t, err := restore.Tagger(d.CRFTaggers[name])
		if err != nil {
			return nil, fmt.Errorf("failed to restore tagger for intent %s: %w", name, err)
		}
		taggers[name] = t
	}

	p := NewIntentParser(classifier, taggers, tokenizer, opts...)
	p.slotEntities = copyMapping(d.SlotNameToEntityMapping)
	return p, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyMapping(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
