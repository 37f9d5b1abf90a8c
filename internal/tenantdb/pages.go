package tenantdb

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/lalasearch/crawlcore/internal/model"
)

// UpsertCrawledPage writes a crawled_pages row and then, in a separate
// statement, increments the pages_crawled counter for (today, current hour,
// domain) (spec §4.1). The counter increment is not atomic with the row
// write and is logged-only on failure; it is advisory (§9,
// Open question — counter-scoped crawl count).
func (c *Client) UpsertCrawledPage(p *model.CrawledPage) error {
	query := fmt.Sprintf(
		`INSERT INTO %s
			(domain, url_path, url, storage_id, storage_compression,
			 last_crawled_at, next_crawl_at, crawl_frequency_hours, http_status,
			 content_hash, content_length, robots_allowed, error_message,
			 crawl_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, c.table("crawled_pages"))

	err := c.session.Query(query,
		p.Domain, p.URLPath, p.URL, p.StorageID, string(p.StorageCompression),
		p.LastCrawledAt, p.NextCrawlAt, p.CrawlFrequencyHours, p.HTTPStatus,
		p.ContentHash, p.ContentLength, p.RobotsAllowed, p.ErrorMessage,
		p.CrawlCount, p.CreatedAt, p.UpdatedAt,
	).Exec()
	if err != nil {
		return fmt.Errorf("tenantdb: upsert_crawled_page: %w", err)
	}

	if err := c.incrementStat(p.Domain, "pages_crawled", p.LastCrawledAt); err != nil {
		c.log.Warn("failed to increment pages_crawled counter", "domain", p.Domain, "error", err)
	}
	return nil
}

// GetCrawledPage looks up a single row by (domain, url_path).
func (c *Client) GetCrawledPage(domain, urlPath string) (*model.CrawledPage, error) {
	query := fmt.Sprintf(
		`SELECT domain, url_path, url, storage_id, storage_compression,
			last_crawled_at, next_crawl_at, crawl_frequency_hours, http_status,
			content_hash, content_length, robots_allowed, error_message,
			crawl_count, created_at, updated_at
		 FROM %s WHERE domain = ? AND url_path = ?`, c.table("crawled_pages"))

	var p model.CrawledPage
	var compression string
	err := c.session.Query(query, domain, urlPath).Scan(
		&p.Domain, &p.URLPath, &p.URL, &p.StorageID, &compression,
		&p.LastCrawledAt, &p.NextCrawlAt, &p.CrawlFrequencyHours, &p.HTTPStatus,
		&p.ContentHash, &p.ContentLength, &p.RobotsAllowed, &p.ErrorMessage,
		&p.CrawlCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == gocql.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tenantdb: get_crawled_page: %w", err)
	}
	p.StorageCompression = model.StorageCompression(compression)
	return &p, nil
}

// CrawledPageExists reports whether a row exists for (domain, url_path).
func (c *Client) CrawledPageExists(domain, urlPath string) (bool, error) {
	query := fmt.Sprintf(`SELECT url_path FROM %s WHERE domain = ? AND url_path = ?`, c.table("crawled_pages"))
	var up string
	err := c.session.Query(query, domain, urlPath).Scan(&up)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tenantdb: crawled_page_exists: %w", err)
	}
	return true, nil
}

// LogCrawlError writes a crawl_errors row and increments pages_failed.
func (c *Client) LogCrawlError(e *model.CrawlError) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (domain, occurred_at, url, error_type, error_message, attempt_count, stack_trace)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`, c.table("crawl_errors"))

	err := c.session.Query(query,
		e.Domain, e.OccurredAt, e.URL, string(e.ErrorType), e.ErrorMessage, e.AttemptCount, e.StackTrace,
	).Exec()
	if err != nil {
		return fmt.Errorf("tenantdb: log_crawl_error: %w", err)
	}

	if err := c.incrementStat(e.Domain, "pages_failed", e.OccurredAt); err != nil {
		c.log.Warn("failed to increment pages_failed counter", "domain", e.Domain, "error", err)
	}
	return nil
}

func (c *Client) incrementStat(domain, column string, at time.Time) error {
	date := at.UTC().Format("2006-01-02")
	hour := at.UTC().Hour()
	query := fmt.Sprintf(
		`UPDATE %s SET %s = %s + 1 WHERE date = ? AND hour = ? AND domain = ?`,
		c.table("crawl_stats"), column, column)
	err := c.session.Query(query, date, hour, domain).Exec()
	if err != nil {
		return fmt.Errorf("tenantdb: increment %s: %w", column, err)
	}
	return nil
}

// CrawlStats reads the (date, hour, domain) counter row. Either counter may
// be null (unread); a null deserializes to zero, per spec §4.1/§9.
type CrawlStats struct {
	PagesCrawled int64
	PagesFailed  int64
}

// GetCrawlStats reads the advisory hourly counters for a domain.
func (c *Client) GetCrawlStats(date string, hour int, domain string) (CrawlStats, error) {
	query := fmt.Sprintf(`SELECT pages_crawled, pages_failed FROM %s WHERE date = ? AND hour = ? AND domain = ?`,
		c.table("crawl_stats"))

	var crawled, failed *int64
	err := c.session.Query(query, date, hour, domain).Scan(&crawled, &failed)
	if err == gocql.ErrNotFound {
		return CrawlStats{}, nil
	}
	if err != nil {
		return CrawlStats{}, fmt.Errorf("tenantdb: get_crawl_stats: %w", err)
	}
	stats := CrawlStats{}
	if crawled != nil {
		stats.PagesCrawled = *crawled
	}
	if failed != nil {
		stats.PagesFailed = *failed
	}
	return stats, nil
}
