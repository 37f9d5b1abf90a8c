package fetcher

import (
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// dnsCacheDial wraps net.Dial with an LRU cache of recent connections'
// remote addresses, the way the teacher's dnscache package avoids repeat DNS
// lookups for hosts the crawler hits over and over. Entries older than
// cacheTTL are re-resolved.
type dnsCacheDial struct {
	cache *lru.Cache
	mu    sync.RWMutex
}

type dialRecord struct {
	addr        string
	blacklisted bool
	err         error
	cachedAt    time.Time
}

const cacheTTL = 5 * time.Minute

func newDNSCacheDial(maxEntries int) (*dnsCacheDial, error) {
	cache, err := lru.New(maxEntries)
	if err != nil {
		return nil, err
	}
	return &dnsCacheDial{cache: cache}, nil
}

// Dial resolves and connects to addr, serving from cache when the entry is
// fresh.
func (d *dnsCacheDial) Dial(network, addr string) (net.Conn, error) {
	key := network + addr

	d.mu.RLock()
	if entry, ok := d.cache.Get(key); ok {
		rec := entry.(dialRecord)
		if time.Since(rec.cachedAt) <= cacheTTL {
			if rec.blacklisted {
				d.mu.RUnlock()
				return nil, rec.err
			}
			resolved := rec.addr
			d.mu.RUnlock()
			return net.Dial(network, resolved)
		}
	}
	d.mu.RUnlock()

	return d.dialAndCache(network, addr, key)
}

func (d *dnsCacheDial) dialAndCache(network, addr, key string) (net.Conn, error) {
	conn, err := net.Dial(network, addr)
	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.cache.Add(key, dialRecord{blacklisted: true, err: err, cachedAt: time.Now()})
		return nil, err
	}
	d.cache.Add(key, dialRecord{addr: conn.RemoteAddr().String(), cachedAt: time.Now()})
	return conn, nil
}
