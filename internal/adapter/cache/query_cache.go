// Package cache memoizes parse results for repeated inputs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"nlu/internal/domain"
)

// ParseCache is a bounded LRU of parse results with a TTL. Invalidate
// bumps a generation counter so entries from an older model are never
// served.
type ParseCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	gen     uint64
}

type cacheEntry struct {
	result    domain.ParseResult
	timestamp time.Time
	gen       uint64
}

func NewParseCache(maxSize int, ttl time.Duration) *ParseCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ParseCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// cacheKey separates the forced intent from the text with a NUL byte.
func cacheKey(text, intent string) string {
	data := make([]byte, 0, len(text)+len(intent)+1)
	data = append(data, intent...)
	data = append(data, 0)
	data = append(data, text...)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func (c *ParseCache) Get(text, intent string) (domain.ParseResult, bool) {
	key := cacheKey(text, intent)

	c.mu.RLock()
	entry, exists := c.entries[key]
	currentGen := c.gen
	c.mu.RUnlock()

	if !exists {
		return domain.ParseResult{}, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.gen != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return domain.ParseResult{}, false
	}

	c.mu.Lock()
	// A concurrent Put may have evicted the key since the read lock.
	if _, still := c.entries[key]; still {
		c.moveToEnd(key)
	}
	c.mu.Unlock()

	return copyResult(entry.result), true
}

func (c *ParseCache) Put(text, intent string, result domain.ParseResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(text, intent)
	entry := &cacheEntry{
		result:    copyResult(result),
		timestamp: time.Now(),
		gen:       c.gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Invalidate drops every entry. Call it whenever the model changes.
func (c *ParseCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.gen++
}

func (c *ParseCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ParseCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *ParseCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *ParseCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func copyResult(r domain.ParseResult) domain.ParseResult {
	slots := make([]domain.ParsedSlot, len(r.Slots))
	copy(slots, r.Slots)
	r.Slots = slots
	return r
}

// Parser is the part of the intent parser the cache wraps.
type Parser interface {
	GetIntent(text string) (string, error)
	GetSlots(text, intent string) ([]domain.ParsedSlot, error)
}

// CachedParser answers repeated inputs from a ParseCache. Errors are not
// cached.
type CachedParser struct {
	parser Parser
	cache  *ParseCache
}

func NewCachedParser(parser Parser, cache *ParseCache) *CachedParser {
	return &CachedParser{
		parser: parser,
		cache:  cache,
	}
}

// Parse classifies text and extracts its slots.
func (p *CachedParser) Parse(text string) (domain.ParseResult, error) {
	if result, hit := p.cache.Get(text, ""); hit {
		return result, nil
	}

	intent, err := p.parser.GetIntent(text)
	if err != nil {
		return domain.ParseResult{}, err
	}
	result, err := p.parseAs(text, intent)
	if err != nil {
		return domain.ParseResult{}, err
	}

	p.cache.Put(text, "", result)
	return result, nil
}

// ParseAs extracts slots of a caller-chosen intent, skipping
// classification.
func (p *CachedParser) ParseAs(text, intent string) (domain.ParseResult, error) {
	if result, hit := p.cache.Get(text, intent); hit {
		return result, nil
	}

	result, err := p.parseAs(text, intent)
	if err != nil {
		return domain.ParseResult{}, err
	}

	p.cache.Put(text, intent, result)
	return result, nil
}

func (p *CachedParser) parseAs(text, intent string) (domain.ParseResult, error) {
	slots, err := p.parser.GetSlots(text, intent)
	if err != nil {
		return domain.ParseResult{}, err
	}
	return domain.ParseResult{Input: text, Intent: intent, Slots: slots}, nil
}

// Invalidate forgets every cached result.
func (p *CachedParser) Invalidate() {
	p.cache.Invalidate()
}
