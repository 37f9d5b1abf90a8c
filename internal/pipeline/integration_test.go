//go:build integration

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lalasearch/crawlcore/internal/fetcher"
	"github.com/lalasearch/crawlcore/internal/model"
	"github.com/lalasearch/crawlcore/internal/objectstore"
	"github.com/lalasearch/crawlcore/internal/tenantdb"
)

// Requires a live Scylla/Cassandra cluster at 127.0.0.1 and a MinIO instance
// at 127.0.0.1:9000. Mirrors spec scenario 3 ("Happy path with
// noindex"): a single process() call must store the body, record the page,
// skip search indexing, and discover one new link.
func TestPipeline_NoIndexHappyPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/p", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><head><meta name="robots" content="noindex"><title>T</title></head><body><a href="/x">x</a></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	log := slog.Default()
	pool, err := tenantdb.NewPool([]string{"127.0.0.1"}, 10*time.Second)
	require.NoError(t, err)
	defer pool.Close()

	db, err := pool.NewClient("crawlcore_pipeline_test", log, 128)
	require.NoError(t, err)

	host := srv.Listener.Addr().String()
	require.NoError(t, db.AddAllowedDomain(&model.AllowedDomain{Domain: host, AddedAt: time.Now().UTC()}))

	store, err := objectstore.New(context.Background(), objectstore.Config{
		Endpoint:        "127.0.0.1:9000",
		Bucket:          "crawlcore-test",
		AccessKey:       "minioadmin",
		SecretKey:       "minioadmin",
		CompressContent: false,
	}, log)
	require.NoError(t, err)

	p := &Pipeline{
		DB:      db,
		Fetcher: fetcher.New("crawlcore-test", log),
		Store:   store,
		Log:     log,
	}

	entry := &model.CrawlQueueEntry{
		Priority:     1,
		ScheduledAt:  time.Now().UTC(),
		URL:          srv.URL + "/p",
		Domain:       host,
		AttemptCount: 0,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, db.InsertQueueEntry(entry))

	require.NoError(t, p.Process(context.Background(), entry))

	page, err := db.GetCrawledPage(host, "/p")
	require.NoError(t, err)
	require.NotNil(t, page)
	require.Equal(t, 200, page.HTTPStatus)

	next, err := db.NextQueueEntry()
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, srv.URL+"/x", next.URL)
}
