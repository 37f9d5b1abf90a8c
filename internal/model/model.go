// Package model holds the row-shaped types shared by the tenant DB client,
// the pipeline, and the HTTP handlers. None of these types know how to
// persist themselves; that is the tenant DB client's job.
package model

import "time"

// StorageCompression names how a crawled body is stored in the object store.
type StorageCompression string

const (
	CompressionNone StorageCompression = "none"
	CompressionGzip StorageCompression = "gzip"
)

// FileExtension returns the object-key suffix for this compression type.
func (c StorageCompression) FileExtension() string {
	if c == CompressionGzip {
		return "html.gz"
	}
	return "html"
}

// ContentType returns the HTTP Content-Type used when storing a body.
func (c StorageCompression) ContentType() string {
	if c == CompressionGzip {
		return "application/gzip"
	}
	return "text/html"
}

// CrawlQueueEntry is a row in the per-tenant crawl_queue table. The triple
// (Priority, ScheduledAt, URL) is its primary key.
type CrawlQueueEntry struct {
	Priority      int
	ScheduledAt   time.Time
	URL           string
	Domain        string
	LastAttemptAt time.Time
	AttemptCount  int
	CreatedAt     time.Time
}

// ErrorType is the CrawlError.error_type taxonomy from spec §7.
type ErrorType string

const (
	ErrorFetch             ErrorType = "fetch"
	ErrorStorage           ErrorType = "storage"
	ErrorDatabase          ErrorType = "database"
	ErrorSearchIndex       ErrorType = "search_index"
	ErrorRobotsDisallowed  ErrorType = "robots_disallowed"
	ErrorInvalidURL        ErrorType = "invalid_url"
	ErrorUnknown           ErrorType = "unknown"
)

// Terminal reports whether this error type should never be retried.
func (e ErrorType) Terminal() bool {
	return e == ErrorRobotsDisallowed || e == ErrorInvalidURL
}

// CrawledPage is a row in the per-tenant crawled_pages table, keyed by
// (Domain, URLPath).
type CrawledPage struct {
	Domain              string
	URLPath             string
	URL                 string
	StorageID           string
	StorageCompression  StorageCompression
	LastCrawledAt       time.Time
	NextCrawlAt         time.Time
	CrawlFrequencyHours int
	HTTPStatus          int
	ContentHash         string
	ContentLength       int64
	RobotsAllowed       bool
	ErrorMessage        string
	CrawlCount          int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CrawlError is a row in the per-tenant crawl_errors table, keyed by
// (Domain, OccurredAt).
type CrawlError struct {
	Domain       string
	OccurredAt   time.Time
	URL          string
	ErrorType    ErrorType
	ErrorMessage string
	AttemptCount int
	StackTrace   string
}

// AllowedDomain is a row in the per-tenant allowed_domains table.
type AllowedDomain struct {
	Domain  string
	AddedBy string
	Notes   string
	AddedAt time.Time
}

// Setting is a row in the per-tenant settings table.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// SettingCrawlingEnabled is the well-known settings key from spec §3.
const SettingCrawlingEnabled = "crawling_enabled"

// Tenant is a row in the system keyspace's tenants table.
type Tenant struct {
	TenantID    string
	DisplayName string
	CreatedAt   time.Time
}
