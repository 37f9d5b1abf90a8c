// Package httpapi exposes the JSON HTTP surface over gorilla/mux, the Go
// counterpart to the teacher's console/rest.go REST handlers, extended with
// the gorilla/sessions-based tenant boundary spec §4.8 requires in
// multi-tenant mode.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"github.com/lalasearch/crawlcore/internal/config"
	"github.com/lalasearch/crawlcore/internal/model"
	"github.com/lalasearch/crawlcore/internal/searchindex"
	"github.com/lalasearch/crawlcore/internal/tenantdb"
)

const sessionCookieName = "crawlcore_session"
const sessionTenantKey = "tenant_id"

// TenantResolver resolves the tenant DB client for a request, per spec
// §4.8.
type TenantResolver struct {
	DeploymentMode config.DeploymentMode
	BaseClient     *tenantdb.Client // used in single-tenant mode
	Pool           *tenantdb.Pool
	Store          *sessions.CookieStore // nil ⇒ no session service configured
	Log            *slog.Logger
}

// Resolve returns the tenant DB client to use for req, or writes an
// error response and returns (nil, false) if the request cannot proceed.
func (t *TenantResolver) Resolve(w http.ResponseWriter, req *http.Request) (*tenantdb.Client, bool) {
	if t.DeploymentMode != config.ModeMultiTenant {
		return t.BaseClient, true
	}

	if t.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no-session-service", "session service not configured")
		return nil, false
	}

	sess, err := t.Store.Get(req, sessionCookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "bad-session", "invalid session")
		return nil, false
	}

	tenantID, _ := sess.Values[sessionTenantKey].(string)
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, "no-session", "missing tenant session")
		return nil, false
	}

	client := t.BaseClient.WithKeyspace(tenantID)
	return client, true
}

// Server wires every route from spec §6.
type Server struct {
	Resolver *TenantResolver
	Search   *searchindex.Index // nil if not configured
	Config   *config.Config
	Log      *slog.Logger
}

// Router builds the gorilla/mux router for this server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	r.HandleFunc("/queue/add", s.handleQueueAdd).Methods(http.MethodPost)
	r.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	r.HandleFunc("/admin/allowed-domains", s.handleListAllowedDomains).Methods(http.MethodGet)
	r.HandleFunc("/admin/allowed-domains", s.handleAddAllowedDomain).Methods(http.MethodPost)
	r.HandleFunc("/admin/allowed-domains/{domain}", s.handleRemoveAllowedDomain).Methods(http.MethodDelete)
	r.HandleFunc("/admin/settings/crawling-enabled", s.handleGetCrawlingEnabled).Methods(http.MethodGet)
	r.HandleFunc("/admin/settings/crawling-enabled", s.handleSetCrawlingEnabled).Methods(http.MethodPut)
	return r
}

type errorResponse struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, tag, format string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Tag: tag, Message: format})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleVersion(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent":           "crawlcore",
		"version":         "1.0.0",
		"deployment_mode": s.Config.DeploymentMode,
	})
}

type queueAddRequest struct {
	URL      string `json:"url"`
	Priority *int   `json:"priority,omitempty"`
}

func (s *Server) handleQueueAdd(w http.ResponseWriter, req *http.Request) {
	var body queueAddRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad-json-decode", err.Error())
		return
	}

	parsed, err := url.Parse(body.URL)
	if err != nil || parsed.Host == "" {
		writeError(w, http.StatusBadRequest, "invalid-url", "could not parse URL or URL has no host")
		return
	}

	client, ok := s.Resolver.Resolve(w, req)
	if !ok {
		return
	}

	allowed, err := client.IsDomainAllowed(parsed.Host)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database-error", err.Error())
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "domain-not-allowed", "domain "+parsed.Host+" is not in the allow-list")
		return
	}

	priority := 1
	if body.Priority != nil {
		priority = *body.Priority
	}
	now := time.Now().UTC()
	entry := &model.CrawlQueueEntry{
		Priority:     priority,
		ScheduledAt:  now,
		URL:          body.URL,
		Domain:       parsed.Host,
		AttemptCount: 0,
		CreatedAt:    now,
	}
	if err := client.InsertQueueEntry(entry); err != nil {
		writeError(w, http.StatusInternalServerError, "database-error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "queued",
		"url":     body.URL,
		"domain":  parsed.Host,
	})
}

type searchRequest struct {
	Query  string `json:"query"`
	Limit  *int   `json:"limit,omitempty"`
	Offset *int   `json:"offset,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, req *http.Request) {
	if s.Search == nil {
		writeError(w, http.StatusServiceUnavailable, "search-not-configured", "search is not configured")
		return
	}

	var body searchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad-json-decode", err.Error())
		return
	}

	started := time.Now()
	resp, err := s.Search.Search(searchindex.Request{Query: body.Query, Limit: body.Limit, Offset: body.Offset})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search-upstream-error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results":       resp.Results,
		"total":         resp.Total,
		"processing_ms": time.Since(started).Milliseconds(),
	})
}

type allowedDomainRequest struct {
	Domain string `json:"domain"`
	Notes  string `json:"notes,omitempty"`
}

func (s *Server) handleAddAllowedDomain(w http.ResponseWriter, req *http.Request) {
	var body allowedDomainRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad-json-decode", err.Error())
		return
	}
	if strings.TrimSpace(body.Domain) == "" {
		writeError(w, http.StatusBadRequest, "empty-domain", "domain must not be empty")
		return
	}

	client, ok := s.Resolver.Resolve(w, req)
	if !ok {
		return
	}

	if err := client.AddAllowedDomain(&model.AllowedDomain{
		Domain:  body.Domain,
		Notes:   body.Notes,
		AddedAt: time.Now().UTC(),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "database-error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "domain added",
		"domain":  body.Domain,
	})
}

func (s *Server) handleListAllowedDomains(w http.ResponseWriter, req *http.Request) {
	client, ok := s.Resolver.Resolve(w, req)
	if !ok {
		return
	}

	domains, err := client.ListAllowedDomains()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database-error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"domains": domains,
		"count":   len(domains),
	})
}

func (s *Server) handleRemoveAllowedDomain(w http.ResponseWriter, req *http.Request) {
	domain := mux.Vars(req)["domain"]

	client, ok := s.Resolver.Resolve(w, req)
	if !ok {
		return
	}

	if err := client.RemoveAllowedDomain(domain); err != nil {
		writeError(w, http.StatusInternalServerError, "database-error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "domain removed",
		"domain":  domain,
	})
}

func (s *Server) handleGetCrawlingEnabled(w http.ResponseWriter, req *http.Request) {
	client, ok := s.Resolver.Resolve(w, req)
	if !ok {
		return
	}

	enabled, err := client.IsCrawlingEnabled(s.Config.DefaultCrawlingEnabled())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database-error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": enabled})
}

type crawlingEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetCrawlingEnabled(w http.ResponseWriter, req *http.Request) {
	var body crawlingEnabledRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad-json-decode", err.Error())
		return
	}

	client, ok := s.Resolver.Resolve(w, req)
	if !ok {
		return
	}

	if err := client.SetCrawlingEnabled(body.Enabled, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "database-error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": body.Enabled})
}
