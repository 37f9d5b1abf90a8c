// Package pipeline runs the Lease -> Fetch -> Store -> Record -> Index ->
// Discover sequence for one crawl_queue entry. It is the Go counterpart to
// original_source/services/queue_processor.rs's process_next_entry, extended
// with the object-store and search stages the distilled agent didn't have
// (spec §4.6).
package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/lalasearch/crawlcore/internal/crawlerr"
	"github.com/lalasearch/crawlcore/internal/fetcher"
	"github.com/lalasearch/crawlcore/internal/htmlproc"
	"github.com/lalasearch/crawlcore/internal/model"
	"github.com/lalasearch/crawlcore/internal/searchindex"
)

const (
	defaultCrawlFrequencyHours = 24
	maxAttempts                = 5
	excerptLength              = 500
)

// queueDB is the subset of *tenantdb.Client the pipeline needs, narrowed to
// an interface the way scheduler.go's queueSource narrows *tenantdb.Client
// for its own run loop, so tests can substitute fakes instead of a live
// gocql session.
type queueDB interface {
	DeleteQueueEntry(entry *model.CrawlQueueEntry) error
	GetCrawledPage(domain, urlPath string) (*model.CrawledPage, error)
	UpsertCrawledPage(page *model.CrawledPage) error
	IsDomainAllowed(domain string) (bool, error)
	CrawledPageExists(domain, urlPath string) (bool, error)
	InsertQueueEntry(entry *model.CrawlQueueEntry) error
	LogCrawlError(e *model.CrawlError) error
	RequeueWithRetry(entry *model.CrawlQueueEntry, now time.Time) (*model.CrawlQueueEntry, error)
}

// fetchClient is the subset of *fetcher.Fetcher the pipeline needs.
type fetchClient interface {
	Fetch(target string) fetcher.Result
}

// storeClient is the subset of *objectstore.Client the pipeline needs.
type storeClient interface {
	Put(ctx context.Context, body []byte, url string) (string, model.StorageCompression, error)
}

// Pipeline holds the dependencies shared by every stage. One instance is
// reused across queue entries within a scheduler's run loop.
type Pipeline struct {
	DB          queueDB
	Fetcher     fetchClient
	Store       storeClient
	Search      *searchindex.Index // nil if not configured
	TenantID    string             // tenant keyspace; folded into search ids only when MultiTenant
	MultiTenant bool
	Log         *slog.Logger
}

// Process runs every stage for one leased queue entry. Returns an error only
// for conditions the caller cannot recover from (e.g. a database failure
// while requeuing); classified pipeline failures are handled internally via
// handleFailure and do not propagate.
func (p *Pipeline) Process(ctx context.Context, entry *model.CrawlQueueEntry) error {
	log := p.Log.With("url", entry.URL)

	// Stage 1: Lease. Deleting first is what "owns" this entry (spec §4.6,
	// §9) — a concurrent deleter's call is a silent no-op and both workers
	// proceed, tolerated because UpsertCrawledPage is idempotent.
	if err := p.DB.DeleteQueueEntry(entry); err != nil {
		return fmt.Errorf("pipeline: lease: %w", err)
	}

	domain, urlPath, err := splitURL(entry.URL)
	if err != nil {
		return p.handleFailure(entry, crawlerr.New(model.ErrorInvalidURL, "%s", err.Error()), domain)
	}

	// Stage 2: Fetch.
	result := p.Fetcher.Fetch(entry.URL)
	if !result.AllowedByRobots {
		log.Info("robots.txt disallowed fetch")
		return p.handleFailure(entry, crawlerr.New(model.ErrorRobotsDisallowed, "robots.txt disallowed"), domain)
	}
	if result.Error != "" {
		log.Warn("fetch failed", "error", result.Error)
		return p.handleFailure(entry, crawlerr.New(model.ErrorFetch, "%s", result.Error), domain)
	}

	httpStatus := 500
	if result.HasContent {
		httpStatus = 200
	}

	// Stage 3: Store body.
	if p.Store == nil {
		return p.handleFailure(entry, crawlerr.New(model.ErrorStorage, "object store not configured"), domain)
	}
	storageID, compression, err := p.Store.Put(ctx, []byte(result.Content), entry.URL)
	if err != nil {
		log.Warn("store failed", "error", err)
		return p.handleFailure(entry, crawlerr.New(model.ErrorStorage, "%s", err.Error()), domain)
	}

	// Stage 4: Record page.
	now := time.Now().UTC()
	page, err := p.recordPage(entry, domain, urlPath, storageID, compression, result, httpStatus, now)
	if err != nil {
		log.Warn("record failed", "error", err)
		return p.handleFailure(entry, crawlerr.New(model.ErrorDatabase, "%s", err.Error()), domain)
	}

	doc, parseErr := htmlproc.Parse(result.Content, entry.URL)
	var directives htmlproc.MetaRobots
	if parseErr == nil {
		directives = doc.MetaRobots
	}
	if result.XRobotsTag != "" {
		directives = directives.Merge(htmlproc.ParseRobotsDirective(result.XRobotsTag))
	}

	// Stage 5: Index.
	if !directives.NoIndex && p.Search != nil {
		if err := p.indexPage(page, doc); err != nil {
			log.Warn("index failed", "error", err)
			return p.handleFailure(entry, crawlerr.New(model.ErrorSearchIndex, "%s", err.Error()), domain)
		}
	}

	// Stage 6: Discover.
	if !directives.NoFollow && parseErr == nil {
		p.discover(entry, doc.Links, now)
	}

	return nil
}

// recordPage looks up any prior CrawledPage by (domain, path) to compute
// crawl_count and created_at, then upserts (spec §4.6 step 4).
func (p *Pipeline) recordPage(entry *model.CrawlQueueEntry, domain, urlPath, storageID string,
	compression model.StorageCompression, result fetcher.Result, httpStatus int, now time.Time) (*model.CrawledPage, error) {

	prior, err := p.DB.GetCrawledPage(domain, urlPath)
	if err != nil {
		return nil, err
	}

	crawlCount := 1
	createdAt := now
	if prior != nil {
		crawlCount = prior.CrawlCount + 1
		createdAt = prior.CreatedAt
	}

	sum := md5.Sum([]byte(result.Content))
	page := &model.CrawledPage{
		Domain:              domain,
		URLPath:             urlPath,
		URL:                 entry.URL,
		StorageID:           storageID,
		StorageCompression:  compression,
		LastCrawledAt:       now,
		NextCrawlAt:         now.Add(defaultCrawlFrequencyHours * time.Hour),
		CrawlFrequencyHours: defaultCrawlFrequencyHours,
		HTTPStatus:          httpStatus,
		ContentHash:         hex.EncodeToString(sum[:]),
		ContentLength:       int64(len(result.Content)),
		RobotsAllowed:       result.AllowedByRobots,
		ErrorMessage:        result.Error,
		CrawlCount:          crawlCount,
		CreatedAt:           createdAt,
		UpdatedAt:           now,
	}

	if err := p.DB.UpsertCrawledPage(page); err != nil {
		return nil, err
	}
	return page, nil
}

// indexPage upserts the search document for a successfully recorded page
// (spec §4.5).
func (p *Pipeline) indexPage(page *model.CrawledPage, doc htmlproc.Document) error {
	tenantID := ""
	if p.MultiTenant {
		tenantID = p.TenantID
	}

	excerpt := doc.Text
	if len(excerpt) > excerptLength {
		excerpt = excerpt[:excerptLength]
	}

	return p.Search.IndexDocument(searchindex.Document{
		ID:         searchindex.DocumentID(tenantID, page.URL),
		TenantID:   tenantID,
		URL:        page.URL,
		Domain:     page.Domain,
		Title:      doc.Title,
		Content:    doc.Text,
		Excerpt:    excerpt,
		CrawledAt:  page.LastCrawledAt.Unix(),
		HTTPStatus: page.HTTPStatus,
	})
}

// discover admits newly found links into the queue (spec §4.6 step 6).
// Enqueue failures are logged only, never surfaced.
func (p *Pipeline) discover(entry *model.CrawlQueueEntry, links []string, now time.Time) {
	for _, link := range links {
		parsed, err := url.Parse(link)
		if err != nil || parsed.Host == "" {
			continue
		}

		allowed, err := p.DB.IsDomainAllowed(parsed.Host)
		if err != nil {
			p.Log.Warn("discover: allow-list check failed", "host", parsed.Host, "error", err)
			continue
		}
		if !allowed {
			continue
		}

		exists, err := p.DB.CrawledPageExists(parsed.Host, parsed.Path)
		if err != nil {
			p.Log.Warn("discover: existence check failed", "url", link, "error", err)
			continue
		}
		if exists {
			continue
		}

		newEntry := &model.CrawlQueueEntry{
			Priority:     entry.Priority,
			ScheduledAt:  now,
			URL:          link,
			Domain:       parsed.Host,
			AttemptCount: 0,
			CreatedAt:    now,
		}
		if err := p.DB.InsertQueueEntry(newEntry); err != nil {
			p.Log.Warn("discover: enqueue failed", "url", link, "error", err)
		}
	}
}

// handleFailure writes a CrawlError row and decides whether to requeue with
// backoff, per the classification table in spec §7.
func (p *Pipeline) handleFailure(entry *model.CrawlQueueEntry, ce *crawlerr.ClassifiedError, domain string) error {
	if domain == "" {
		domain = entry.Domain
	}
	now := time.Now().UTC()

	if err := p.DB.LogCrawlError(&model.CrawlError{
		Domain:       domain,
		OccurredAt:   now,
		URL:          entry.URL,
		ErrorType:    ce.Type(),
		ErrorMessage: ce.Error(),
		AttemptCount: entry.AttemptCount,
	}); err != nil {
		return fmt.Errorf("pipeline: log_crawl_error: %w", err)
	}

	if !ce.Retryable() {
		return nil
	}
	if entry.AttemptCount >= maxAttempts {
		p.Log.Info("giving up after max attempts", "url", entry.URL, "attempt_count", entry.AttemptCount)
		return nil
	}

	if _, err := p.DB.RequeueWithRetry(entry, now); err != nil {
		return fmt.Errorf("pipeline: requeue: %w", err)
	}
	return nil
}

// splitURL derives (domain, path) the way
// original_source/services/queue_processor.rs's create_crawled_page does.
func splitURL(raw string) (domain, path string, err error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("invalid URL: missing host")
	}
	p := parsed.Path
	if p == "" {
		p = "/"
	}
	return parsed.Host, p, nil
}
