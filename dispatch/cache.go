package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/sagip-cad/emergency-dispatch-api/databases"
	"github.com/sagip-cad/emergency-dispatch-api/models"
)

// DefaultIdentityTTL bounds how stale an enriched name may be. Directory
// entries change rarely; five minutes keeps fan-out cheap without pinning
// renames forever.
const DefaultIdentityTTL = 5 * time.Minute

type cacheEntry struct {
	user      *models.UserSummary
	fetchedAt time.Time
}

// IdentityCache memoizes directory lookups for the live view publisher.
// It is an explicit dependency, scoped to the publisher instance, with
// TTL-based invalidation; a cron job sweeps expired entries.
type IdentityCache struct {
	udb databases.UserDatabase
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewIdentityCache creates a cache over the user directory. A ttl of zero
// falls back to DefaultIdentityTTL.
func NewIdentityCache(udb databases.UserDatabase, ttl time.Duration) *IdentityCache {
	if ttl <= 0 {
		ttl = DefaultIdentityTTL
	}
	return &IdentityCache{
		udb:     udb,
		ttl:     ttl,
		entries: map[string]cacheEntry{},
	}
}

// Lookup resolves the given ids to directory entries, serving fresh cache
// hits and batch-fetching the rest in one query. Ids the directory does
// not know are absent from the result. When the directory fetch fails the
// cached hits are still returned along with the error so the caller can
// degrade instead of dropping the snapshot.
func (c *IdentityCache) Lookup(ctx context.Context, ids []string) (map[string]*models.UserSummary, error) {
	now := time.Now()
	found := map[string]*models.UserSummary{}
	var misses []string

	c.mu.Lock()
	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if entry, ok := c.entries[id]; ok && now.Sub(entry.fetchedAt) < c.ttl {
			if entry.user != nil {
				found[id] = entry.user
			}
			continue
		}
		misses = append(misses, id)
	}
	c.mu.Unlock()

	if len(misses) == 0 {
		return found, nil
	}

	users, err := c.udb.FindByIDs(ctx, misses)
	if err != nil {
		return found, err
	}

	c.mu.Lock()
	fetched := map[string]bool{}
	for i := range users {
		user := users[i]
		c.entries[user.ID] = cacheEntry{user: &user, fetchedAt: now}
		found[user.ID] = &user
		fetched[user.ID] = true
	}
	// negative-cache directory misses so unknown reporters don't trigger a
	// fetch on every change notification
	for _, id := range misses {
		if !fetched[id] {
			c.entries[id] = cacheEntry{user: nil, fetchedAt: now}
		}
	}
	c.mu.Unlock()

	return found, nil
}

// Sweep drops expired entries and reports how many were removed
func (c *IdentityCache) Sweep() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, entry := range c.entries {
		if now.Sub(entry.fetchedAt) >= c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}
