package engine

import (
	"crypto/md5"
	"fmt"
	"strings"
	"sync"
	"time"
)

// resultCache memoizes successful run results keyed on the normalized
// question plus previous-SQL context, with TTL expiry and oldest-entry
// eviction. A datasource swap clears it wholesale.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	max     int
	ttl     time.Duration

	now func() time.Time // injectable for tests
}

type cacheEntry struct {
	result *RunResult
	at     time.Time
}

func newResultCache(max int, ttl time.Duration) *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry),
		max:     max,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(question, previousSQL string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	context := previousSQL
	if len(context) > 100 {
		context = context[:100]
	}
	return fmt.Sprintf("%x", md5.Sum([]byte(normalized+"|"+context)))
}

// get returns a copy of the cached result marked as cached, or nil.
func (c *resultCache) get(question, previousSQL string) *RunResult {
	if c == nil || c.max <= 0 {
		return nil
	}
	key := cacheKey(question, previousSQL)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(entry.at) >= c.ttl {
		delete(c.entries, key)
		return nil
	}

	cached := *entry.result
	cached.Cached = true
	return &cached
}

func (c *resultCache) set(question, previousSQL string, result *RunResult) {
	if c == nil || c.max <= 0 || result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.max {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.at.Before(oldest) {
				oldestKey, oldest = k, e.at
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[cacheKey(question, previousSQL)] = cacheEntry{result: result, at: c.now()}
}

func (c *resultCache) clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *resultCache) len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
