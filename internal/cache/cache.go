package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
)

// Key derives the canonical cache key for a (source, batch) pair. The item
// ids are sorted first so equal batches hash identically regardless of
// request order.
func Key(source string, itemIDs []string) string {
	sorted := append([]string(nil), itemIDs...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	payload   map[string]enrich.Fragment
	cachedAt  time.Time
	expiresAt time.Time
}

// Cache is a TTL map for per-(source, batch) adapter payloads. Entries are
// checked against their expiry on read; there is no background sweeper.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]entry

	now func() time.Time
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached payload, or false once the entry expired.
func (c *Cache) Get(key string) (map[string]enrich.Fragment, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}

	payload := make(map[string]enrich.Fragment, len(e.payload))
	for id, frag := range e.payload {
		payload[id] = frag.Clone()
	}
	return payload, true
}

// Set overwrites the entry unconditionally with a fresh TTL.
func (c *Cache) Set(key string, payload map[string]enrich.Fragment) {
	dup := make(map[string]enrich.Fragment, len(payload))
	for id, frag := range payload {
		dup[id] = frag.Clone()
	}

	now := c.now()
	c.mu.Lock()
	c.entries[key] = entry{
		payload:   dup,
		cachedAt:  now,
		expiresAt: now.Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
