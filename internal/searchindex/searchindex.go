// Package searchindex adapts the meilisearch-go client to crawlcore's
// document shape, the Go counterpart to the meilisearch_sdk wrapper in
// original_source/services/search.rs (spec §4.5, §12).
package searchindex

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meilisearch/meilisearch-go"
)

// Document is the shape indexed for each crawled page (spec §4.5).
type Document struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id,omitempty"`
	URL        string `json:"url"`
	Domain     string `json:"domain"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
	Excerpt    string `json:"excerpt"`
	CrawledAt  int64  `json:"crawled_at"`
	HTTPStatus int    `json:"http_status"`
}

// DocumentID derives a document id from the crawl scope and URL. In
// multi-tenant mode the tenant id is folded into the hash so that two
// tenants crawling the same URL never collide in a shared index; in
// single-tenant mode (tenantID == "") the id is bare md5(url), matching
// what an external client computing md5(url) would expect (spec §4.5).
func DocumentID(tenantID, url string) string {
	key := url
	if tenantID != "" {
		key = tenantID + "\x00" + url
	}
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Request is a search query (spec §4.5). Limit and Offset are clamped the
// way original_source/services/search.rs clamps them: limit defaults to 20
// and never exceeds 1000, offset defaults to 0.
type Request struct {
	Query  string
	Limit  *int
	Offset *int
}

func (r Request) limit() int64 {
	if r.Limit == nil {
		return 20
	}
	if *r.Limit > 1000 {
		return 1000
	}
	if *r.Limit < 0 {
		return 0
	}
	return int64(*r.Limit)
}

func (r Request) offset() int64 {
	if r.Offset == nil || *r.Offset < 0 {
		return 0
	}
	return int64(*r.Offset)
}

// Result pairs a hit with its ranking score, when available.
type Result struct {
	Document Document `json:"document"`
	Score    *float32 `json:"score,omitempty"`
}

// Response is the outcome of a search.
type Response struct {
	Results []Result `json:"results"`
	Total   int64    `json:"total"`
}

// Index wraps a single meilisearch index.
type Index struct {
	client meilisearch.ServiceManager
	index  meilisearch.IndexManager
	name   string
}

// New connects to Meilisearch at host (a bare host:port or full URL) and
// binds to indexName.
func New(host, apiKey, indexName string) *Index {
	url := host
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + host
	}
	client := meilisearch.New(url, meilisearch.WithAPIKey(apiKey))
	return &Index{client: client, index: client.Index(indexName), name: indexName}
}

// EnsureIndex creates the index if needed and configures searchable,
// filterable, and sortable attributes (spec §12 — init_index in the original
// agent).
func (i *Index) EnsureIndex() error {
	if _, err := i.client.CreateIndex(&meilisearch.IndexConfig{Uid: i.name, PrimaryKey: "id"}); err != nil {
		if !isIndexAlreadyExistsErr(err) {
			return fmt.Errorf("searchindex: create index %q: %w", i.name, err)
		}
	}

	searchable := []string{"title", "content", "domain", "url"}
	if _, err := i.index.UpdateSearchableAttributes(&searchable); err != nil {
		return fmt.Errorf("searchindex: set searchable attributes: %w", err)
	}

	filterable := []string{"domain", "http_status", "crawled_at"}
	if _, err := i.index.UpdateFilterableAttributes(&filterable); err != nil {
		return fmt.Errorf("searchindex: set filterable attributes: %w", err)
	}

	sortable := []string{"crawled_at"}
	if _, err := i.index.UpdateSortableAttributes(&sortable); err != nil {
		return fmt.Errorf("searchindex: set sortable attributes: %w", err)
	}

	return nil
}

func isIndexAlreadyExistsErr(err error) bool {
	apiErr, ok := err.(*meilisearch.Error)
	return ok && apiErr.MeilisearchApiError.Code == "index_already_exists"
}

// IndexDocument upserts a single document (spec §4.5 step: Index).
func (i *Index) IndexDocument(doc Document) error {
	return i.IndexDocuments([]Document{doc})
}

// IndexDocuments upserts a batch of documents.
func (i *Index) IndexDocuments(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := i.index.AddDocuments(docs, nil); err != nil {
		return fmt.Errorf("searchindex: add documents: %w", err)
	}
	return nil
}

// DeleteDocument removes a document by id. The pipeline does not call it: a
// page that turns noindex on a re-crawl keeps any document indexed earlier.
func (i *Index) DeleteDocument(id string) error {
	if _, err := i.index.DeleteDocument(id); err != nil {
		return fmt.Errorf("searchindex: delete document %q: %w", id, err)
	}
	return nil
}

// Search runs a query against the index (spec §4.5 Search operation).
func (i *Index) Search(req Request) (Response, error) {
	res, err := i.index.Search(req.Query, &meilisearch.SearchRequest{
		Limit:  req.limit(),
		Offset: req.offset(),
	})
	if err != nil {
		return Response{}, fmt.Errorf("searchindex: search: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc, err := decodeHit(hit)
		if err != nil {
			continue
		}
		results = append(results, Result{Document: doc})
	}

	return Response{Results: results, Total: res.EstimatedTotalHits}, nil
}

// decodeHit converts a raw search hit (returned by the client as untyped
// JSON) back into a Document.
func decodeHit(hit interface{}) (Document, error) {
	raw, err := json.Marshal(hit)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}
