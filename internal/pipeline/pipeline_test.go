package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalasearch/crawlcore/internal/fetcher"
	"github.com/lalasearch/crawlcore/internal/model"
)

// fakeQueueDB is an in-memory queueDB for exercising Process without a live
// gocql session, the same pattern scheduler_test.go uses for queueSource.
type fakeQueueDB struct {
	deleted       []*model.CrawlQueueEntry
	pages         map[string]*model.CrawledPage
	upserted      []*model.CrawledPage
	errors        []*model.CrawlError
	retried       []*model.CrawlQueueEntry
	retryNow      time.Time
	allowedDomain bool
	pageExists    bool
	inserted      []*model.CrawlQueueEntry
}

func (f *fakeQueueDB) DeleteQueueEntry(entry *model.CrawlQueueEntry) error {
	f.deleted = append(f.deleted, entry)
	return nil
}

func (f *fakeQueueDB) GetCrawledPage(domain, urlPath string) (*model.CrawledPage, error) {
	return f.pages[domain+urlPath], nil
}

func (f *fakeQueueDB) UpsertCrawledPage(page *model.CrawledPage) error {
	f.upserted = append(f.upserted, page)
	if f.pages == nil {
		f.pages = map[string]*model.CrawledPage{}
	}
	f.pages[page.Domain+page.URLPath] = page
	return nil
}

func (f *fakeQueueDB) IsDomainAllowed(domain string) (bool, error) {
	return f.allowedDomain, nil
}

func (f *fakeQueueDB) CrawledPageExists(domain, urlPath string) (bool, error) {
	return f.pageExists, nil
}

func (f *fakeQueueDB) InsertQueueEntry(entry *model.CrawlQueueEntry) error {
	f.inserted = append(f.inserted, entry)
	return nil
}

func (f *fakeQueueDB) LogCrawlError(e *model.CrawlError) error {
	f.errors = append(f.errors, e)
	return nil
}

// RequeueWithRetry mirrors tenantdb.Client.RequeueWithRetry's backoff formula
// exactly, so tests can assert on the resulting retry entry.
func (f *fakeQueueDB) RequeueWithRetry(entry *model.CrawlQueueEntry, now time.Time) (*model.CrawlQueueEntry, error) {
	f.retryNow = now
	backoff := time.Duration(1<<uint(entry.AttemptCount)) * time.Minute
	retry := &model.CrawlQueueEntry{
		Priority:      entry.Priority + 1,
		ScheduledAt:   now.Add(backoff),
		URL:           entry.URL,
		Domain:        entry.Domain,
		LastAttemptAt: now,
		AttemptCount:  entry.AttemptCount + 1,
		CreatedAt:     entry.CreatedAt,
	}
	f.retried = append(f.retried, retry)
	return retry, nil
}

type fakeFetcher struct {
	result fetcher.Result
}

func (f *fakeFetcher) Fetch(target string) fetcher.Result {
	return f.result
}

type fakeStore struct{}

func (f *fakeStore) Put(ctx context.Context, body []byte, url string) (string, model.StorageCompression, error) {
	return "storage-id", model.CompressionNone, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

// TestProcess_RobotsDisallowed covers spec §8 scenario 2: a robots.txt
// disallow is classified, not retried, and never produces a CrawledPage row.
func TestProcess_RobotsDisallowed(t *testing.T) {
	db := &fakeQueueDB{}
	p := &Pipeline{
		DB:      db,
		Fetcher: &fakeFetcher{result: fetcher.Result{URL: "https://example.com/x", AllowedByRobots: false}},
		Store:   &fakeStore{},
		Log:     discardLogger(),
	}

	entry := &model.CrawlQueueEntry{URL: "https://example.com/x", AttemptCount: 0}
	err := p.Process(context.Background(), entry)

	require.NoError(t, err)
	require.Len(t, db.errors, 1)
	assert.Equal(t, model.ErrorRobotsDisallowed, db.errors[0].ErrorType)
	assert.Empty(t, db.upserted, "robots-disallowed fetch must never write a CrawledPage")
	assert.Empty(t, db.retried, "terminal error types must never be retried")
}

// TestProcess_RetryBackoff covers spec §8 scenario 4: a retryable failure
// increments attempt_count and priority, and schedules at least 2^n minutes
// out. Giving up once AttemptCount reaches maxAttempts is covered by
// TestProcess_RetryGivesUpAtMaxAttempts.
func TestProcess_RetryBackoff(t *testing.T) {
	db := &fakeQueueDB{}
	p := &Pipeline{
		DB:      db,
		Fetcher: &fakeFetcher{result: fetcher.Result{URL: "https://example.com/x", AllowedByRobots: true, Error: "connection reset"}},
		Store:   &fakeStore{},
		Log:     discardLogger(),
	}

	entry := &model.CrawlQueueEntry{
		URL:          "https://example.com/x",
		Domain:       "example.com",
		Priority:     3,
		AttemptCount: 2,
	}
	err := p.Process(context.Background(), entry)

	require.NoError(t, err)
	require.Len(t, db.errors, 1)
	assert.Equal(t, model.ErrorFetch, db.errors[0].ErrorType)

	require.Len(t, db.retried, 1)
	retry := db.retried[0]
	assert.Equal(t, entry.Priority+1, retry.Priority)
	assert.Equal(t, entry.AttemptCount+1, retry.AttemptCount)
	assert.True(t, !retry.ScheduledAt.Before(db.retryNow.Add(4*time.Minute)),
		"scheduled_at must be at least 2^attempt_count minutes out")
}

func TestProcess_RetryGivesUpAtMaxAttempts(t *testing.T) {
	db := &fakeQueueDB{}
	p := &Pipeline{
		DB:      db,
		Fetcher: &fakeFetcher{result: fetcher.Result{URL: "https://example.com/x", AllowedByRobots: true, Error: "still failing"}},
		Store:   &fakeStore{},
		Log:     discardLogger(),
	}

	entry := &model.CrawlQueueEntry{
		URL:          "https://example.com/x",
		Domain:       "example.com",
		AttemptCount: maxAttempts,
	}
	err := p.Process(context.Background(), entry)

	require.NoError(t, err)
	require.Len(t, db.errors, 1)
	assert.Empty(t, db.retried, "an entry at the attempt ceiling must not be requeued again")
}

func TestSplitURL(t *testing.T) {
	domain, path, err := splitURL("https://example.com/a/b")
	require.NoError(t, err)
	assert.Equal(t, "example.com", domain)
	assert.Equal(t, "/a/b", path)
}

func TestSplitURL_RootPath(t *testing.T) {
	domain, path, err := splitURL("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", domain)
	assert.Equal(t, "/", path)
}

func TestSplitURL_Invalid(t *testing.T) {
	_, _, err := splitURL("::not a url::")
	assert.Error(t, err)
}

func TestSplitURL_MissingHost(t *testing.T) {
	_, _, err := splitURL("/just/a/path")
	assert.Error(t, err)
}
