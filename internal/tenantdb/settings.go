package tenantdb

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/lalasearch/crawlcore/internal/model"
)

// IsCrawlingEnabled returns the stored crawling_enabled value, or
// defaultValue if no Setting row exists (spec §3, §4.1 — the default is
// environment-driven, see config.Config.DefaultCrawlingEnabled).
func (c *Client) IsCrawlingEnabled(defaultValue bool) (bool, error) {
	query := fmt.Sprintf(`SELECT setting_value FROM %s WHERE setting_key = ?`, c.table("settings"))
	var value string
	err := c.session.Query(query, model.SettingCrawlingEnabled).Scan(&value)
	if err == gocql.ErrNotFound {
		return defaultValue, nil
	}
	if err != nil {
		return false, fmt.Errorf("tenantdb: is_crawling_enabled: %w", err)
	}
	return value == "true", nil
}

// SetCrawlingEnabled writes the crawling_enabled setting.
func (c *Client) SetCrawlingEnabled(enabled bool, now time.Time) error {
	value := "false"
	if enabled {
		value = "true"
	}
	query := fmt.Sprintf(`INSERT INTO %s (setting_key, setting_value, updated_at) VALUES (?, ?, ?)`,
		c.table("settings"))
	if err := c.session.Query(query, model.SettingCrawlingEnabled, value, now).Exec(); err != nil {
		return fmt.Errorf("tenantdb: set_crawling_enabled: %w", err)
	}
	return nil
}
