package tagging

import (
	"fmt"

	"nlu/internal/domain"
)

// spanBuilder holds the single open span of a decoding pass.
type spanBuilder struct {
	slots []domain.SlotSpan
	open  bool
	name  string
	start int
	end   int
}

func (b *spanBuilder) openSpan(name string, r domain.Range) {
	b.closeSpan()
	b.open = true
	b.name = name
	b.start = r.Start
	b.end = r.End
}

// extend grows the open span if it has the same slot name, and opens a new
// span at r otherwise.
func (b *spanBuilder) extend(name string, r domain.Range) {
	if b.open && b.name == name {
		b.end = r.End
		return
	}
	b.openSpan(name, r)
}

func (b *spanBuilder) closeSpan() {
	if !b.open {
		return
	}
	b.slots = append(b.slots, domain.SlotSpan{
		Range:    domain.Range{Start: b.start, End: b.end},
		SlotName: b.name,
	})
	b.open = false
}

// TagsToSlots decodes one tag per token into slot spans. A span covers the
// source text from its first token's start to its last token's end.
//
// An inside or last tag with no compatible open span starts a new span
// rather than being dropped.
func TagsToSlots(tokens []domain.Token, tags []string, scheme domain.TaggingScheme) ([]domain.SlotSpan, error) {
	if len(tokens) != len(tags) {
		return nil, fmt.Errorf("%w: %d tokens but %d tags", domain.ErrInvalidInput, len(tokens), len(tags))
	}
	if _, err := allowedPrefixes(scheme); err != nil {
		return nil, err
	}

	b := &spanBuilder{}
	for i, tag := range tags {
		prefix, name, err := parseTag(tag, scheme)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		r := tokens[i].Range

		switch prefix {
		case OutsideTag:
			b.closeSpan()
		case BeginPrefix:
			b.openSpan(name, r)
		case InsidePrefix:
			b.extend(name, r)
		case LastPrefix:
			b.extend(name, r)
			b.closeSpan()
		case UnitPrefix:
			b.openSpan(name, r)
			b.closeSpan()
		}
	}
	b.closeSpan()

	if b.slots == nil {
		return []domain.SlotSpan{}, nil
	}
	return b.slots, nil
}
