package tenantdb

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/lalasearch/crawlcore/internal/model"
)

// NextQueueEntry returns at most one crawl_queue row. There is no ORDER BY:
// per spec §4.1/§9, the store's natural partition order is all we get, and
// callers must not assume FIFO or strict priority ordering.
func (c *Client) NextQueueEntry() (*model.CrawlQueueEntry, error) {
	query := fmt.Sprintf(
		`SELECT priority, scheduled_at, url, domain, last_attempt_at, attempt_count, created_at
		 FROM %s LIMIT 1`, c.table("crawl_queue"))

	var e model.CrawlQueueEntry
	var lastAttempt time.Time
	err := c.session.Query(query).Scan(
		&e.Priority, &e.ScheduledAt, &e.URL, &e.Domain, &lastAttempt, &e.AttemptCount, &e.CreatedAt,
	)
	if err == gocql.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tenantdb: next_queue_entry: %w", err)
	}
	e.LastAttemptAt = lastAttempt
	return &e, nil
}

// InsertQueueEntry writes a new queue row. Idempotent by
// (priority, scheduled_at, url).
func (c *Client) InsertQueueEntry(e *model.CrawlQueueEntry) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (priority, scheduled_at, url, domain, last_attempt_at, attempt_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`, c.table("crawl_queue"))

	err := c.session.Query(query,
		e.Priority, e.ScheduledAt, e.URL, e.Domain, e.LastAttemptAt, e.AttemptCount, e.CreatedAt,
	).Exec()
	if err != nil {
		return fmt.Errorf("tenantdb: insert_queue_entry: %w", err)
	}
	return nil
}

// DeleteQueueEntry removes the row identified by e's primary key. This is
// the "lease": whichever worker's DELETE reaches the store first claims the
// entry (spec §4.6, §9). A concurrent deleter's DELETE is a silent no-op.
func (c *Client) DeleteQueueEntry(e *model.CrawlQueueEntry) error {
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE priority = ? AND scheduled_at = ? AND url = ?`, c.table("crawl_queue"))

	err := c.session.Query(query, e.Priority, e.ScheduledAt, e.URL).Exec()
	if err != nil {
		return fmt.Errorf("tenantdb: delete_queue_entry: %w", err)
	}
	return nil
}

// RequeueWithRetry inserts a retry row derived from e: priority+1,
// attempt_count+1, last_attempt_at=now, scheduled_at = now + 2^attempt_count
// minutes, created_at preserved (spec §4.1, §4.6, §8).
func (c *Client) RequeueWithRetry(e *model.CrawlQueueEntry, now time.Time) (*model.CrawlQueueEntry, error) {
	backoff := time.Duration(1<<uint(e.AttemptCount)) * time.Minute
	retry := &model.CrawlQueueEntry{
		Priority:      e.Priority + 1,
		ScheduledAt:   now.Add(backoff),
		URL:           e.URL,
		Domain:        e.Domain,
		LastAttemptAt: now,
		AttemptCount:  e.AttemptCount + 1,
		CreatedAt:     e.CreatedAt,
	}
	if err := c.InsertQueueEntry(retry); err != nil {
		return nil, err
	}
	return retry, nil
}
