package p2p

import (
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru"
	gocache "github.com/patrickmn/go-cache"
)

const seenCacheSize = 4096

// gossipCache holds the two in-memory stores the gossip loop needs: a bounded
// set of payload hashes already processed, and a TTL-bound store of payloads
// we can serve to peers asking via getdata.
type gossipCache struct {
	seen     *lru.Cache
	payloads *gocache.Cache
}

func newGossipCache(expiry time.Duration) (*gossipCache, error) {
	seen, err := lru.New(seenCacheSize)
	if err != nil {
		return nil, err
	}
	return &gossipCache{
		seen:     seen,
		payloads: gocache.New(expiry, 2*expiry),
	}, nil
}

// markSeen records a payload hash, reporting whether it was already known.
func (c *gossipCache) markSeen(hash string) bool {
	known, _ := c.seen.ContainsOrAdd(hash, struct{}{})
	return known
}

func (c *gossipCache) hasSeen(hash string) bool {
	return c.seen.Contains(hash)
}

// offer stores a payload under its hash so getdata requests can be served
// until the gossip expiry passes.
func (c *gossipCache) offer(hash string, payload json.RawMessage) {
	c.payloads.SetDefault(hash, payload)
}

func (c *gossipCache) payload(hash string) (json.RawMessage, bool) {
	v, ok := c.payloads.Get(hash)
	if !ok {
		return nil, false
	}
	return v.(json.RawMessage), true
}
