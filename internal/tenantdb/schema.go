package tenantdb

import (
	"bytes"
	"fmt"
	"text/template"
)

// schemaParams parameterizes the schema template, the way the teacher's
// cassandra.schemaTemplate is rendered with {{.Keyspace}} and
// {{.ReplicationFactor}} so the same DDL can create a test keyspace or a
// production one.
type schemaParams struct {
	Keyspace          string
	ReplicationFactor int
}

// schemaTemplate is the per-tenant keyspace DDL. It mirrors the data model
// in spec §3: crawl_queue, crawled_pages, crawl_errors, allowed_domains,
// crawl_stats (a counter table), and settings.
const schemaTemplate = `-- Generated schema for a lalasearch crawlcore tenant keyspace.
CREATE KEYSPACE IF NOT EXISTS {{.Keyspace}}
WITH REPLICATION = { 'class': 'SimpleStrategy', 'replication_factor': {{.ReplicationFactor}} };

-- crawl_queue holds URLs waiting to be fetched. (priority, scheduled_at, url)
-- identifies at most one entry; re-enqueue on retry writes a new row with
-- advanced scheduled_at and priority (the original row was already deleted
-- when the entry was leased).
CREATE TABLE IF NOT EXISTS {{.Keyspace}}.crawl_queue (
	priority        int,
	scheduled_at    timestamp,
	url             text,
	domain          text,
	last_attempt_at timestamp,
	attempt_count   int,
	created_at      timestamp,
	PRIMARY KEY (priority, scheduled_at, url)
);

-- crawled_pages records the outcome of the most recent fetch for a given
-- (domain, url_path). crawl_count is a plain int set by the application,
-- not a counter column: the pipeline reads the prior row and writes
-- prior + 1 through upsert_crawled_page, as two separate statements.
CREATE TABLE IF NOT EXISTS {{.Keyspace}}.crawled_pages (
	domain                text,
	url_path              text,
	url                   text,
	storage_id            text,
	storage_compression   text,
	last_crawled_at       timestamp,
	next_crawl_at         timestamp,
	crawl_frequency_hours int,
	http_status           int,
	content_hash          text,
	content_length        bigint,
	robots_allowed        boolean,
	error_message         text,
	crawl_count           int,
	created_at            timestamp,
	updated_at            timestamp,
	PRIMARY KEY (domain, url_path)
);

-- crawl_errors is an append-only log of classified pipeline failures.
CREATE TABLE IF NOT EXISTS {{.Keyspace}}.crawl_errors (
	domain        text,
	occurred_at   timestamp,
	url           text,
	error_type    text,
	error_message text,
	attempt_count int,
	stack_trace   text,
	PRIMARY KEY (domain, occurred_at)
);

-- allowed_domains is the admissions allow-list.
CREATE TABLE IF NOT EXISTS {{.Keyspace}}.allowed_domains (
	domain   text,
	added_by text,
	notes    text,
	added_at timestamp,
	PRIMARY KEY (domain)
);

-- crawl_stats is advisory, hourly counters; absent counter reads are zero.
CREATE TABLE IF NOT EXISTS {{.Keyspace}}.crawl_stats (
	date          text,
	hour          int,
	domain        text,
	pages_crawled counter,
	pages_failed  counter,
	PRIMARY KEY ((date, hour, domain))
);

-- settings is a small per-tenant key/value store; only crawling_enabled is
-- read by the pipeline today.
CREATE TABLE IF NOT EXISTS {{.Keyspace}}.settings (
	setting_key   text,
	setting_value text,
	updated_at    timestamp,
	PRIMARY KEY (setting_key)
);
`

// systemSchemaTemplate is the deployment-wide system keyspace DDL.
const systemSchemaTemplate = `CREATE KEYSPACE IF NOT EXISTS {{.Keyspace}}
WITH REPLICATION = { 'class': 'SimpleStrategy', 'replication_factor': {{.ReplicationFactor}} };

CREATE TABLE IF NOT EXISTS {{.Keyspace}}.tenants (
	tenant_id    text,
	display_name text,
	created_at   timestamp,
	PRIMARY KEY (tenant_id)
);
`

// RenderTenantSchema renders the tenant-keyspace DDL for the given keyspace
// name and replication factor, ready to be split on ';' and executed.
func RenderTenantSchema(keyspace string, replicationFactor int) (string, error) {
	return renderSchema(schemaTemplate, schemaParams{Keyspace: keyspace, ReplicationFactor: replicationFactor})
}

// RenderSystemSchema renders the system-keyspace DDL.
func RenderSystemSchema(keyspace string, replicationFactor int) (string, error) {
	return renderSchema(systemSchemaTemplate, schemaParams{Keyspace: keyspace, ReplicationFactor: replicationFactor})
}

func renderSchema(tmplText string, params schemaParams) (string, error) {
	tmpl, err := template.New("schema").Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("tenantdb: failed to parse schema template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("tenantdb: failed to render schema: %w", err)
	}
	return buf.String(), nil
}
