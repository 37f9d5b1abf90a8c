package tenantdb

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/lalasearch/crawlcore/internal/model"
)

// IsDomainAllowed returns true iff domain exists in allowed_domains. Results
// are cached in an LRU (teacher's Datastore.domainCache) since this is
// consulted for every discovered link in Discover (spec §4.6).
func (c *Client) IsDomainAllowed(domain string) (bool, error) {
	if cached, ok := c.domainCache.Get(domain); ok {
		return cached.(bool), nil
	}

	query := fmt.Sprintf(`SELECT domain FROM %s WHERE domain = ?`, c.table("allowed_domains"))
	var d string
	err := c.session.Query(query, domain).Scan(&d)
	if err == gocql.ErrNotFound {
		c.domainCache.Add(domain, false)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tenantdb: is_domain_allowed: %w", err)
	}
	c.domainCache.Add(domain, true)
	return true, nil
}

// AddAllowedDomain inserts or updates an allow-list entry and refreshes the
// cache so a just-added domain is immediately admitted.
func (c *Client) AddAllowedDomain(d *model.AllowedDomain) error {
	query := fmt.Sprintf(`INSERT INTO %s (domain, added_by, notes, added_at) VALUES (?, ?, ?, ?)`,
		c.table("allowed_domains"))
	err := c.session.Query(query, d.Domain, d.AddedBy, d.Notes, d.AddedAt).Exec()
	if err != nil {
		return fmt.Errorf("tenantdb: add_allowed_domain: %w", err)
	}
	c.domainCache.Add(d.Domain, true)
	return nil
}

// RemoveAllowedDomain deletes an allow-list entry (idempotent: deleting a
// domain that isn't present is not an error, per spec §6).
func (c *Client) RemoveAllowedDomain(domain string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE domain = ?`, c.table("allowed_domains"))
	if err := c.session.Query(query, domain).Exec(); err != nil {
		return fmt.Errorf("tenantdb: remove_allowed_domain: %w", err)
	}
	c.domainCache.Add(domain, false)
	return nil
}

// ListAllowedDomains returns every allow-list row.
func (c *Client) ListAllowedDomains() ([]model.AllowedDomain, error) {
	query := fmt.Sprintf(`SELECT domain, added_by, notes, added_at FROM %s`, c.table("allowed_domains"))
	iter := c.session.Query(query).Iter()

	var domains []model.AllowedDomain
	var d model.AllowedDomain
	var addedAt time.Time
	for iter.Scan(&d.Domain, &d.AddedBy, &d.Notes, &addedAt) {
		d.AddedAt = addedAt
		domains = append(domains, d)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("tenantdb: list_allowed_domains: %w", err)
	}
	return domains, nil
}
