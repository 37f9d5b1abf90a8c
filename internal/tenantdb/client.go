// Package tenantdb is the keyspace-scoped CQL client. A Client wraps a
// *gocql.Session shared across every tenant plus one string: the keyspace
// to qualify every table name with. This mirrors the teacher's
// cassandra.Datastore, which keeps one *gocql.Session per process and
// prefixes every statement with the configured keyspace — except here the
// keyspace is per-Client, so WithKeyspace can hand back a sibling Client
// for a different tenant without opening a second connection pool.
package tenantdb

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
	lru "github.com/hashicorp/golang-lru"
)

// Client is a tenant-scoped view onto a shared gocql session.
type Client struct {
	session  *gocql.Session
	keyspace string
	log      *slog.Logger

	// domainCache remembers recent is_domain_allowed results, the way the
	// teacher's Datastore.domainCache avoids re-querying domain_info for
	// every link on a page.
	domainCache *lru.Cache
}

// Pool is the shared, reference-counted gocql session every tenant Client
// is built from. One Pool per process; NewClient is cheap and does not open
// new connections.
type Pool struct {
	session *gocql.Session
}

// NewPool connects to the cluster. hosts are comma-split cluster addresses
// (spec §6: "cluster hosts (comma-separated)").
func NewPool(hosts []string, timeout time.Duration) (*Pool, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = timeout
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("tenantdb: failed to create session: %w", err)
	}
	return &Pool{session: session}, nil
}

// Close shuts down the shared session. Call once at process exit.
func (p *Pool) Close() {
	p.session.Close()
}

// NewClient returns a Client scoped to keyspace, sharing p's session.
func (p *Pool) NewClient(keyspace string, log *slog.Logger, domainCacheSize int) (*Client, error) {
	if domainCacheSize <= 0 {
		domainCacheSize = 10000
	}
	cache, err := lru.New(domainCacheSize)
	if err != nil {
		return nil, fmt.Errorf("tenantdb: failed to create domain cache: %w", err)
	}
	return &Client{
		session:     p.session,
		keyspace:    keyspace,
		log:         log,
		domainCache: cache,
	}, nil
}

// WithKeyspace returns a new Client sharing this Client's pool and logger
// but scoped to a different tenant keyspace. This is the §4.1
// with_keyspace(name) constructor.
func (c *Client) WithKeyspace(keyspace string) *Client {
	cache, _ := lru.New(c.domainCache.Len() + 1)
	if cache == nil {
		cache = c.domainCache
	}
	return &Client{
		session:     c.session,
		keyspace:    keyspace,
		log:         c.log,
		domainCache: cache,
	}
}

// Keyspace returns the tenant keyspace this client is scoped to.
func (c *Client) Keyspace() string {
	return c.keyspace
}

// table fully qualifies a bare table name with this client's keyspace, the
// way the teacher's schema template interpolates {{.Keyspace}}.table.
func (c *Client) table(name string) string {
	return fmt.Sprintf("%s.%s", c.keyspace, name)
}
