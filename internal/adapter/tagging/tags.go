// Package tagging converts between slot-annotated utterances and per-token
// tag sequences.
package tagging

import (
	"fmt"
	"strings"

	"nlu/internal/domain"
)

const (
	OutsideTag = "O"

	BeginPrefix  = "B-"
	InsidePrefix = "I-"
	LastPrefix   = "L-"
	UnitPrefix   = "U-"
)

// Prefix returns the boundary prefix of a tag, or OutsideTag for "O".
func Prefix(tag string) string {
	if tag == OutsideTag {
		return OutsideTag
	}
	if len(tag) < 2 {
		return ""
	}
	return tag[:2]
}

// TagName returns the slot name a tag refers to, or "" for the outside tag.
func TagName(tag string) string {
	if tag == OutsideTag || len(tag) < 2 {
		return ""
	}
	return tag[2:]
}

// allowedPrefixes lists the boundary prefixes valid under each scheme.
func allowedPrefixes(scheme domain.TaggingScheme) ([]string, error) {
	switch scheme {
	case domain.IO:
		return []string{InsidePrefix}, nil
	case domain.BIO:
		return []string{BeginPrefix, InsidePrefix}, nil
	case domain.BILOU:
		return []string{BeginPrefix, InsidePrefix, LastPrefix, UnitPrefix}, nil
	}
	return nil, fmt.Errorf("%w: unsupported tagging scheme %s", domain.ErrInvalidTag, scheme)
}

// parseTag splits tag into its prefix and slot name, checking it against
// the scheme.
func parseTag(tag string, scheme domain.TaggingScheme) (prefix, name string, err error) {
	if tag == OutsideTag {
		return OutsideTag, "", nil
	}
	prefixes, err := allowedPrefixes(scheme)
	if err != nil {
		return "", "", err
	}
	for _, p := range prefixes {
		if strings.HasPrefix(tag, p) && len(tag) > len(p) {
			return p, tag[len(p):], nil
		}
	}
	return "", "", fmt.Errorf("%w: %q under %s scheme", domain.ErrInvalidTag, tag, scheme)
}

// PositiveTags returns the tags for a run of n tokens all belonging to
// slotName.
func PositiveTags(n int, slotName string, scheme domain.TaggingScheme) []string {
	tags := make([]string, n)
	if n == 0 {
		return tags
	}
	switch scheme {
	case domain.IO:
		for i := range tags {
			tags[i] = InsidePrefix + slotName
		}
	case domain.BIO:
		tags[0] = BeginPrefix + slotName
		for i := 1; i < n; i++ {
			tags[i] = InsidePrefix + slotName
		}
	case domain.BILOU:
		if n == 1 {
			tags[0] = UnitPrefix + slotName
			return tags
		}
		tags[0] = BeginPrefix + slotName
		for i := 1; i < n-1; i++ {
			tags[i] = InsidePrefix + slotName
		}
		tags[n-1] = LastPrefix + slotName
	}
	return tags
}

func negativeTags(n int) []string {
	tags := make([]string, n)
	for i := range tags {
		tags[i] = OutsideTag
	}
	return tags
}
