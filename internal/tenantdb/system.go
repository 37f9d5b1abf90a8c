package tenantdb

import (
	"fmt"
	"time"

	"github.com/lalasearch/crawlcore/internal/model"
)

// SystemClient is a Client scoped to the deployment-wide system keyspace. It
// is the same type as a tenant Client (both are keyspace-qualified CQL
// wrappers over the shared session) but exposes the subset of operations
// that only make sense against tenants (spec §3, §4.1).
type SystemClient struct {
	*Client
}

// NewSystemClient returns a client scoped to the system keyspace.
func (p *Pool) NewSystemClient(keyspace string, client *Client) *SystemClient {
	return &SystemClient{Client: client.WithKeyspace(keyspace)}
}

// EnsureDefaultTenant idempotently inserts a tenant row (IF NOT EXISTS), so
// bootstrap can be run repeatedly without creating duplicate rows (spec
// §4.1, §4.7).
func (s *SystemClient) EnsureDefaultTenant(tenantID string, now time.Time) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (tenant_id, display_name, created_at) VALUES (?, ?, ?) IF NOT EXISTS`,
		s.table("tenants"))
	applied, err := s.session.Query(query, tenantID, tenantID, now).ScanCAS()
	if err != nil {
		return fmt.Errorf("tenantdb: ensure_default_tenant: %w", err)
	}
	_ = applied // false just means the tenant already existed; not an error
	return nil
}

// ListTenantKeyspaces enumerates every tenant for scheduler bootstrap (spec
// §4.7).
func (s *SystemClient) ListTenantKeyspaces() ([]string, error) {
	query := fmt.Sprintf(`SELECT tenant_id FROM %s`, s.table("tenants"))
	iter := s.session.Query(query).Iter()

	var keyspaces []string
	var tenantID string
	for iter.Scan(&tenantID) {
		keyspaces = append(keyspaces, tenantID)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("tenantdb: list_tenant_keyspaces: %w", err)
	}
	return keyspaces, nil
}

// ListTenants returns full Tenant rows.
func (s *SystemClient) ListTenants() ([]model.Tenant, error) {
	query := fmt.Sprintf(`SELECT tenant_id, display_name, created_at FROM %s`, s.table("tenants"))
	iter := s.session.Query(query).Iter()

	var tenants []model.Tenant
	var t model.Tenant
	for iter.Scan(&t.TenantID, &t.DisplayName, &t.CreatedAt) {
		tenants = append(tenants, t)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("tenantdb: list_tenants: %w", err)
	}
	return tenants, nil
}
