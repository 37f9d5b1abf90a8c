package fetcher

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestFetch_InvalidURL(t *testing.T) {
	f := New("test-agent", discardLogger())
	res := f.Fetch("::not a url::")
	assert.NotEmpty(t, res.Error)
	assert.False(t, res.HasContent)
}

func TestFetch_Allowed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("X-Robots-Tag", "noindex")
		fmt.Fprint(w, "<html><body>hi</body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New("test-agent", discardLogger())
	res := f.Fetch(srv.URL + "/page")
	require.Empty(t, res.Error)
	assert.True(t, res.AllowedByRobots)
	assert.True(t, res.HasContent)
	assert.Contains(t, res.Content, "hi")
	assert.Equal(t, "noindex", res.XRobotsTag)
}

func TestFetch_DisallowedByRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/private/secret", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("fetcher should not request a disallowed path")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New("test-agent", discardLogger())
	res := f.Fetch(srv.URL + "/private/secret")
	assert.False(t, res.AllowedByRobots)
	assert.False(t, res.HasContent)
}

func TestFetch_MissingRobotsIsPermissive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New("test-agent", discardLogger())
	res := f.Fetch(srv.URL + "/page")
	assert.True(t, res.AllowedByRobots)
	assert.True(t, res.HasContent)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New("test-agent", discardLogger())
	res := f.Fetch(srv.URL + "/gone")
	assert.True(t, res.AllowedByRobots)
	assert.NotEmpty(t, res.Error)
	assert.False(t, res.HasContent)
}
