// Package bootstrap wires together the tenant DB pool, object store, search
// index, and one scheduler per tenant keyspace at process startup (spec
// §4.7). It is the single place that knows about both deployment modes.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lalasearch/crawlcore/internal/config"
	"github.com/lalasearch/crawlcore/internal/fetcher"
	"github.com/lalasearch/crawlcore/internal/objectstore"
	"github.com/lalasearch/crawlcore/internal/pipeline"
	"github.com/lalasearch/crawlcore/internal/scheduler"
	"github.com/lalasearch/crawlcore/internal/searchindex"
	"github.com/lalasearch/crawlcore/internal/tenantdb"
)

const domainCacheSize = 4096

// Runtime holds every shared resource a scheduler needs, plus the schedulers
// themselves once started.
type Runtime struct {
	Config  config.Config
	Pool    *tenantdb.Pool
	Store   *objectstore.Client
	Search  *searchindex.Index // nil if search.host is unset
	Log     *slog.Logger
	System  *tenantdb.SystemClient
	clients map[string]*tenantdb.Client
}

// New connects the shared pool, object store, and (optionally) search index,
// per the environment-variable interface in spec §6. Panics are the
// caller's responsibility: spec §6 mandates "panic on missing required env
// vars", which config.Load already enforces.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Runtime, error) {
	pool, err := tenantdb.NewPool(cfg.ScyllaHosts, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect cluster: %w", err)
	}

	store, err := objectstore.New(ctx, objectstore.Config{
		Endpoint:        cfg.S3Endpoint,
		Bucket:          cfg.S3Bucket,
		AccessKey:       cfg.S3AccessKey,
		SecretKey:       cfg.S3SecretKey,
		UseSSL:          cfg.S3UseSSL,
		CompressContent: cfg.S3CompressContent,
		CompressMinSize: cfg.S3CompressMinSize,
	}, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: connect object store: %w", err)
	}

	var search *searchindex.Index
	if cfg.SearchHost != "" {
		search = searchindex.New(cfg.SearchURL(), cfg.SearchAPIKey, cfg.SearchIndex)
		if err := search.EnsureIndex(); err != nil {
			pool.Close()
			return nil, fmt.Errorf("bootstrap: ensure search index: %w", err)
		}
	}

	systemClient, err := pool.NewClient(cfg.SystemKeyspace, log, domainCacheSize)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: system client: %w", err)
	}
	system := pool.NewSystemClient(cfg.SystemKeyspace, systemClient)

	return &Runtime{
		Config:  cfg,
		Pool:    pool,
		Store:   store,
		Search:  search,
		Log:     log,
		System:  system,
		clients: make(map[string]*tenantdb.Client),
	}, nil
}

// Close releases the shared connection pool.
func (r *Runtime) Close() {
	r.Pool.Close()
}

// TenantKeyspaces resolves the set of tenant keyspaces to run a scheduler
// for: in multi-tenant mode, every tenant listed in the system keyspace's
// tenants table (after a row is ensured for each configured multi-tenant
// keyspace); otherwise the single configured tenant keyspace (spec §4.7).
func (r *Runtime) TenantKeyspaces() ([]string, error) {
	if !r.Config.IsMultiTenant() {
		if err := r.System.EnsureDefaultTenant(r.Config.TenantKeyspace, time.Now().UTC()); err != nil {
			return nil, err
		}
		return []string{r.Config.TenantKeyspace}, nil
	}

	for _, ks := range r.Config.MultiTenantKeyspaces {
		if err := r.System.EnsureDefaultTenant(ks, time.Now().UTC()); err != nil {
			return nil, err
		}
	}
	return r.System.ListTenantKeyspaces()
}

// ClientFor returns the tenant DB client for keyspace, creating and caching
// it on first use.
func (r *Runtime) ClientFor(keyspace string) (*tenantdb.Client, error) {
	if c, ok := r.clients[keyspace]; ok {
		return c, nil
	}
	c, err := r.Pool.NewClient(keyspace, r.Log, domainCacheSize)
	if err != nil {
		return nil, err
	}
	r.clients[keyspace] = c
	return c, nil
}

// SchedulerFor builds a fully-wired Scheduler for one tenant keyspace (spec
// §4.7: one worker per tenant keyspace at startup; adding a tenant later
// requires a restart).
func (r *Runtime) SchedulerFor(keyspace string) (*scheduler.Scheduler, error) {
	client, err := r.ClientFor(keyspace)
	if err != nil {
		return nil, err
	}

	p := &pipeline.Pipeline{
		DB:          client,
		Fetcher:     fetcher.New(r.Config.UserAgent, r.Log),
		Store:       r.Store,
		Search:      r.Search,
		TenantID:    keyspace,
		MultiTenant: r.Config.IsMultiTenant(),
		Log:         r.Log.With("tenant_id", keyspace),
	}

	return &scheduler.Scheduler{
		DB:                     client,
		Pipeline:               p,
		PollInterval:           r.Config.PollInterval(),
		DefaultCrawlingEnabled: r.Config.DefaultCrawlingEnabled(),
		TenantID:               keyspace,
		Log:                    r.Log,
	}, nil
}

// RunAll starts one scheduler per tenant keyspace and blocks until ctx is
// canceled (spec §4.7, §5 — "the process spawns one scheduler per tenant
// keyspace at startup").
func (r *Runtime) RunAll(ctx context.Context) error {
	keyspaces, err := r.TenantKeyspaces()
	if err != nil {
		return fmt.Errorf("bootstrap: list tenant keyspaces: %w", err)
	}
	if len(keyspaces) == 0 {
		return fmt.Errorf("bootstrap: no tenant keyspaces to run")
	}

	done := make(chan struct{})
	remaining := len(keyspaces)
	for _, ks := range keyspaces {
		sched, err := r.SchedulerFor(ks)
		if err != nil {
			return fmt.Errorf("bootstrap: build scheduler for %q: %w", ks, err)
		}
		go func() {
			sched.Run(ctx)
			done <- struct{}{}
		}()
	}

	for i := 0; i < remaining; i++ {
		<-done
	}
	return nil
}
