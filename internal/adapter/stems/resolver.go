// Package stems normalizes inflected verbs to their canonical form using
// per-language conjugation tables.
package stems

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Table maps an inflected form to its canonical stem.
type Table map[string]string

// Loader loads the conjugation table for a language. A language with no
// resource yields an empty table and a nil error.
type Loader interface {
	Load(lang string) (Table, error)
}

// Cache holds one table per language, loaded at most once.
type Cache struct {
	loader Loader
	logger *slog.Logger

	mu     sync.RWMutex
	tables map[string]Table
	group  singleflight.Group
}

// NewCache creates a cache backed by loader.
func NewCache(loader Loader, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		loader: loader,
		logger: logger,
		tables: make(map[string]Table),
	}
}

// Table returns the table for lang, loading it on first use. Load failures
// are logged and cached as an empty table.
func (c *Cache) Table(lang string) Table {
	c.mu.RLock()
	table, ok := c.tables[lang]
	c.mu.RUnlock()
	if ok {
		return table
	}

	v, _, _ := c.group.Do(lang, func() (any, error) {
		c.mu.RLock()
		table, ok := c.tables[lang]
		c.mu.RUnlock()
		if ok {
			return table, nil
		}

		table, err := c.loader.Load(lang)
		if err != nil {
			c.logger.Warn("failed to load stem table", "lang", lang, "error", err)
			table = Table{}
		}
		if table == nil {
			table = Table{}
		}
		c.logger.Debug("loaded stem table", "lang", lang, "entries", len(table))

		c.mu.Lock()
		c.tables[lang] = table
		c.mu.Unlock()
		return table, nil
	})
	return v.(Table)
}

// Stem returns the canonical form of token, or token itself when unknown.
func (c *Cache) Stem(token, lang string) string {
	if stem, ok := c.Table(lang)[token]; ok {
		return stem
	}
	return token
}

// StemSentence stems each whitespace-separated word and joins the result
// with single spaces.
func (c *Cache) StemSentence(sentence, lang string) string {
	words := strings.Fields(sentence)
	for i, w := range words {
		words[i] = c.Stem(w, lang)
	}
	return strings.Join(words, " ")
}

// ParseTable reads lines of the form
//
//	canonical;inflection,feature;inflection,feature
//
// mapping each inflection to canonical. The first field may itself be
// "canonical,inflection". Later fields without a comma are skipped.
func ParseTable(r io.Reader) (Table, error) {
	table := Table{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ";")
		canonical, first, _ := strings.Cut(fields[0], ",")
		if canonical == "" {
			continue
		}
		if first != "" {
			table[first] = canonical
		}
		for _, field := range fields[1:] {
			inflection, _, found := strings.Cut(field, ",")
			if !found || inflection == "" {
				continue
			}
			table[inflection] = canonical
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
