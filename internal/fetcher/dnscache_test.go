package fetcher

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDNSCacheDial_ConnectsAndCaches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := newDNSCacheDial(16)
	require.NoError(t, err)

	addr := srv.Listener.Addr().String()
	conn, err := d.Dial("tcp", addr)
	require.NoError(t, err)
	conn.Close()

	_, ok := d.cache.Get("tcp" + addr)
	assert.True(t, ok)

	conn2, err := d.Dial("tcp", addr)
	require.NoError(t, err)
	conn2.Close()
}

func TestDNSCacheDial_CachesFailure(t *testing.T) {
	d, err := newDNSCacheDial(16)
	require.NoError(t, err)

	_, dialErr := d.Dial("tcp", "127.0.0.1:1")
	assert.Error(t, dialErr)

	entry, ok := d.cache.Get("tcp127.0.0.1:1")
	require.True(t, ok)
	rec := entry.(dialRecord)
	assert.True(t, rec.blacklisted)
}
