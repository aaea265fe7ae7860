package tagging

import (
	"nlu/internal/domain"
	"nlu/internal/port"
)

// UtteranceToSample tokenizes each chunk in place within the joined
// utterance and tags its tokens: slot chunks get positive tags under
// scheme, the rest are outside.
func UtteranceToSample(chunks []domain.Chunk, scheme domain.TaggingScheme, tokenizer port.Tokenizer) domain.Sample {
	sample := domain.Sample{
		Tokens: []domain.Token{},
		Tags:   []string{},
	}

	offset := 0
	for _, chunk := range chunks {
		tokens := tokenizer.Tokenize(chunk.Text)
		for _, tok := range tokens {
			tok.Range.Start += offset
			tok.Range.End += offset
			sample.Tokens = append(sample.Tokens, tok)
		}

		if chunk.HasSlot() {
			sample.Tags = append(sample.Tags, PositiveTags(len(tokens), chunk.SlotName, scheme)...)
		} else {
			sample.Tags = append(sample.Tags, negativeTags(len(tokens))...)
		}
		offset += len(chunk.Text)
	}
	return sample
}
