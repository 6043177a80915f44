package store

import (
	"context"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// subtreeCache holds hashes of accumulator subtrees whose leaves are all
// persisted. Such a subtree never changes, so entries never go stale; the
// cache only bounds memory.
type subtreeCache struct {
	c *bigcache.BigCache
}

func newSubtreeCache(sizeMB int) (*subtreeCache, error) {
	cfg := bigcache.DefaultConfig(24 * time.Hour)
	cfg.Shards = 64
	cfg.MaxEntrySize = 32
	cfg.MaxEntriesInWindow = 10000
	cfg.HardMaxCacheSize = sizeMB
	cfg.Verbose = false

	c, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("creating subtree cache: %w", err)
	}
	return &subtreeCache{c: c}, nil
}

func subtreeKey(lo, hi uint64) string {
	return fmt.Sprintf("%d:%d", lo, hi)
}

func (sc *subtreeCache) get(lo, hi uint64) ([]byte, bool) {
	bz, err := sc.c.Get(subtreeKey(lo, hi))
	if err != nil {
		return nil, false
	}
	return bz, true
}

func (sc *subtreeCache) set(lo, hi uint64, hash []byte) {
	// a full cache only costs a recomputation
	_ = sc.c.Set(subtreeKey(lo, hi), hash)
}

func (sc *subtreeCache) len() int {
	return sc.c.Len()
}

func (sc *subtreeCache) close() error {
	return sc.c.Close()
}
