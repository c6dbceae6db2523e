package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/snow-ghost/fusion/core"
)

type entry struct {
	decision  core.SelectionDecision
	expiresAt time.Time
}

// SelectionCache memoizes selection decisions keyed by normalized query
// hash, with LRU eviction and per-entry TTL.
type SelectionCache struct {
	cache *lru.Cache[string, entry]
	ttl   time.Duration
	now   func() time.Time
}

// NewSelectionCache creates a cache holding up to size decisions for
// ttl each. A non-positive ttl keeps entries until evicted.
func NewSelectionCache(size int, ttl time.Duration) (*SelectionCache, error) {
	if size < 1 {
		size = 1
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &SelectionCache{cache: c, ttl: ttl, now: time.Now}, nil
}

// Key hashes a query into a cache key. Whitespace and case variations
// of the same question map to the same key.
func Key(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached decision for a query, if present and fresh.
func (sc *SelectionCache) Get(query string) (core.SelectionDecision, bool) {
	e, ok := sc.cache.Get(Key(query))
	if !ok {
		return core.SelectionDecision{}, false
	}
	if sc.ttl > 0 && sc.now().After(e.expiresAt) {
		sc.cache.Remove(Key(query))
		return core.SelectionDecision{}, false
	}
	return e.decision, true
}

// Put stores a decision for a query.
func (sc *SelectionCache) Put(query string, decision core.SelectionDecision) {
	sc.cache.Add(Key(query), entry{
		decision:  decision,
		expiresAt: sc.now().Add(sc.ttl),
	})
}

// Len returns the number of cached decisions.
func (sc *SelectionCache) Len() int { return sc.cache.Len() }

// Purge drops all entries.
func (sc *SelectionCache) Purge() { sc.cache.Purge() }
