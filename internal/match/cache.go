// Package match implements the shared regex window matcher cache (spec §2
// C3, §3 Invariants, §9 "Regex cache under config reload"). A Matcher is an
// OR of app_id patterns and an OR of title patterns; a window matches a
// Matcher if either list is non-empty and any pattern in it matches the
// corresponding window field.
package match

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Matcher groups app_id and title regex pattern lists under OR semantics
// (spec §3 WindowRule, §4.1 scratchpad app_id matching, §4.6 swallow rule
// matching all build on this shape).
type Matcher struct {
	AppIDPatterns []string
	TitlePatterns []string
}

// key returns a cache key for m, hashed with xxhash rather than built from
// a joined string (DOMAIN STACK: xxhash is a teacher-pack direct
// dependency, reused here to avoid allocating a separator-joined string on
// every lookup).
func (m Matcher) key() uint64 {
	h := xxhash.New()
	for _, p := range m.AppIDPatterns {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte{0xff})
	for _, p := range m.TitlePatterns {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// compiled is an immutable, shareable compiled form of a Matcher. Cache
// entries, once inserted, are never mutated (spec §5 "cache entries, once
// inserted, are immutable clones").
type compiled struct {
	appID []*regexp.Regexp
	title []*regexp.Regexp
}

// Cache lazily compiles Matchers and serves subsequent lookups from memory,
// guarded by a single RWMutex (spec §5: "shared across plugins but uses a
// single mutex").
type Cache struct {
	mu      sync.RWMutex
	entries map[uint64]*compiled
	pattern map[string]*regexp.Regexp // single-pattern compile cache, keyed by literal pattern text
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[uint64]*compiled),
		pattern: make(map[string]*regexp.Regexp),
	}
}

// Clear empties the cache. Called on every config reload before plugins see
// the new config (spec §3 Invariant: "regex cache never returns a stale
// pattern: config reload clears it before plugins see the new config").
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*compiled)
	c.pattern = make(map[string]*regexp.Regexp)
}

// Compile returns the compiled form of pattern exactly as stored, compiling
// and caching it on first use (spec §8: "the regex cache returns Ok(r)
// where r is the compile of the pattern exactly as stored").
func (c *Cache) Compile(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	if r, ok := c.pattern[pattern]; ok {
		c.mu.RUnlock()
		return r, nil
	}
	c.mu.RUnlock()

	r, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("match: compile pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	if existing, ok := c.pattern[pattern]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.pattern[pattern] = r
	c.mu.Unlock()
	return r, nil
}

// get returns (and lazily compiles) the full Matcher.
func (c *Cache) get(m Matcher) (*compiled, error) {
	key := m.key()
	c.mu.RLock()
	if cm, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return cm, nil
	}
	c.mu.RUnlock()

	appID := make([]*regexp.Regexp, 0, len(m.AppIDPatterns))
	for _, p := range m.AppIDPatterns {
		r, err := c.Compile(p)
		if err != nil {
			return nil, err
		}
		appID = append(appID, r)
	}
	title := make([]*regexp.Regexp, 0, len(m.TitlePatterns))
	for _, p := range m.TitlePatterns {
		r, err := c.Compile(p)
		if err != nil {
			return nil, err
		}
		title = append(title, r)
	}
	cm := &compiled{appID: appID, title: title}

	c.mu.Lock()
	c.entries[key] = cm
	c.mu.Unlock()
	return cm, nil
}

// Match reports whether appID/title match m under OR semantics: at least
// one of the two pattern lists must be non-empty, and the window matches if
// any app_id pattern matches appID OR any title pattern matches title
// (spec §3 WindowRule, §4.3).
func (c *Cache) Match(m Matcher, appID, title string) (bool, error) {
	if len(m.AppIDPatterns) == 0 && len(m.TitlePatterns) == 0 {
		return false, nil
	}
	cm, err := c.get(m)
	if err != nil {
		return false, err
	}
	for _, r := range cm.appID {
		if r.MatchString(appID) {
			return true, nil
		}
	}
	for _, r := range cm.title {
		if r.MatchString(title) {
			return true, nil
		}
	}
	return false, nil
}
