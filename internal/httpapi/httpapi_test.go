package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalasearch/crawlcore/internal/config"
)

func newCookieStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret"))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func newTestServer() *Server {
	return &Server{
		Resolver: &TenantResolver{DeploymentMode: config.ModeSingleTenant, Log: discardLogger()},
		Config:   &config.Config{DeploymentMode: config.ModeSingleTenant},
		Log:      discardLogger(),
	}
}

func TestHandleVersion(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "crawlcore", body["agent"])
	assert.Equal(t, "single_tenant", body["deployment_mode"])
}

func TestHandleQueueAdd_InvalidURL(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(queueAddRequest{URL: "not-a-url"})
	req := httptest.NewRequest(http.MethodPost, "/queue/add", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleQueueAdd_BadJSON(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/queue/add", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAddAllowedDomain_EmptyDomain(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(allowedDomainRequest{Domain: "  "})
	req := httptest.NewRequest(http.MethodPost, "/admin/allowed-domains", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSearch_NotConfigured(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(searchRequest{Query: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestResolve_MultiTenantNoSessionService(t *testing.T) {
	resolver := &TenantResolver{DeploymentMode: config.ModeMultiTenant, Log: discardLogger()}
	req := httptest.NewRequest(http.MethodGet, "/admin/settings/crawling-enabled", nil)
	w := httptest.NewRecorder()

	_, ok := resolver.Resolve(w, req)

	assert.False(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestResolve_MultiTenantMissingSession(t *testing.T) {
	resolver := &TenantResolver{
		DeploymentMode: config.ModeMultiTenant,
		Store:          newCookieStore(),
		Log:            discardLogger(),
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/settings/crawling-enabled", nil)
	w := httptest.NewRecorder()

	_, ok := resolver.Resolve(w, req)

	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
