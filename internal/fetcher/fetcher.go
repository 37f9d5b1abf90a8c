// Package fetcher performs the HTTP GET for a single URL, including
// robots.txt discovery and evaluation, the way the teacher's top-level
// fetcher.go does — minus walker's domain-segment batching, since this
// pipeline fetches one URL per queue entry (spec §4.3).
package fetcher

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
)

// Result is the outcome of fetching one URL.
type Result struct {
	URL             string
	AllowedByRobots bool
	Content         string
	HasContent      bool
	Error           string
	XRobotsTag      string
}

// Fetcher issues GET requests with a configured user agent.
type Fetcher struct {
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

const dnsCacheEntries = 4096

// New builds a Fetcher with a DNS-caching transport, since a crawl worker
// dials the same hosts repeatedly. Redirects follow the http.Client's
// default policy (spec §4.3).
func New(userAgent string, log *slog.Logger) *Fetcher {
	client := &http.Client{Timeout: 30 * time.Second}
	if dialer, err := newDNSCacheDial(dnsCacheEntries); err == nil {
		client.Transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			Dial:                dialer.Dial,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	} else {
		log.Warn("dns cache disabled, falling back to default transport", "error", err)
	}

	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		log:       log,
	}
}

// Fetch implements the §4.3 procedure: parse, check robots.txt, GET.
func (f *Fetcher) Fetch(target string) Result {
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		return Result{URL: target, Error: fmt.Sprintf("invalid URL: %v", err)}
	}

	group := f.fetchRobotsGroup(parsed)
	if !group.Test(parsed.Path) {
		return Result{URL: target, AllowedByRobots: false}
	}

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return Result{URL: target, AllowedByRobots: true, Error: err.Error()}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{URL: target, AllowedByRobots: true, Error: err.Error()}
	}
	defer resp.Body.Close()

	xRobotsTag := resp.Header.Get("X-Robots-Tag")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{
			URL:             target,
			AllowedByRobots: true,
			Error:           fmt.Sprintf("non-2xx status: %d", resp.StatusCode),
			XRobotsTag:      xRobotsTag,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{URL: target, AllowedByRobots: true, Error: err.Error(), XRobotsTag: xRobotsTag}
	}
	if len(body) == 0 {
		return Result{URL: target, AllowedByRobots: true, Error: "empty response body", XRobotsTag: xRobotsTag}
	}

	return Result{
		URL:             target,
		AllowedByRobots: true,
		Content:         string(body),
		HasContent:      true,
		XRobotsTag:      xRobotsTag,
	}
}

// fetchRobotsGroup fetches and parses robots.txt for parsed's origin,
// evaluated against f.userAgent. Any network failure or non-2xx response is
// treated as an empty, permissive robots.txt (spec §4.3 step 2).
func (f *Fetcher) fetchRobotsGroup(parsed *url.URL) *robotstxt.Group {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)

	permissive := func() *robotstxt.Group {
		data, _ := robotstxt.FromString("")
		return data.FindGroup(f.userAgent)
	}

	req, err := http.NewRequest(http.MethodGet, robotsURL, nil)
	if err != nil {
		return permissive()
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Debug("robots.txt fetch failed, treating as permissive", "url", robotsURL, "error", err)
		return permissive()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return permissive()
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		f.log.Debug("robots.txt parse failed, treating as permissive", "url", robotsURL, "error", err)
		return permissive()
	}
	return data.FindGroup(f.userAgent)
}
