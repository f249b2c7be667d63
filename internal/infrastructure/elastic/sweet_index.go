// Package elastic maintains the sweets search index.
package elastic

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/internal/domain/search"
)

// NewClient creates an Elasticsearch client with sane defaults and optional basic auth.
func NewClient(addrs []string, username, password string) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: addrs,
		Username:  username,
		Password:  password,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 5 * time.Second,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		},
	}
	return elasticsearch.NewClient(cfg)
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "name":        {"type": "keyword"},
      "description": {"type": "text"},
      "price":       {"type": "double"},
      "category":    {"type": "keyword"},
      "image":       {"type": "keyword", "index": false},
      "quantity":    {"type": "integer"},
      "createdAt":   {"type": "date"}
    }
  }
}`

// pageSize is the number of hits fetched per search round trip.
const pageSize = 500

// Documents carry the store version as an external version, so a write that
// arrives late never replaces a newer one. Conflicts are therefore expected
// and ignored.
const versionType = "external"

type SweetIndex struct {
	es       *elasticsearch.Client
	index    string
	timeout  time.Duration
	pageSize int
}

func NewSweetIndex(es *elasticsearch.Client, index string) *SweetIndex {
	return &SweetIndex{es: es, index: index, timeout: 3 * time.Second, pageSize: pageSize}
}

func responseError(res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return fmt.Errorf("elasticsearch: %s: %s", res.Status(), strings.TrimSpace(string(body)))
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (x *SweetIndex) EnsureIndex(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	res, err := esapi.IndicesExistsRequest{Index: []string{x.index}}.Do(c, x.es)
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{Index: x.index, Body: strings.NewReader(indexMapping)}.Do(c, x.es)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

// Index writes s at version s.Version. An older or equal version is ignored.
func (x *SweetIndex) Index(ctx context.Context, s entity.Sweet) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	c, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()
	version := int(s.Version)
	req := esapi.IndexRequest{
		Index:       x.index,
		DocumentID:  s.ID,
		Body:        bytes.NewReader(b),
		Version:     &version,
		VersionType: versionType,
		Refresh:     "wait_for",
	}
	res, err := req.Do(c, x.es)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && res.StatusCode != http.StatusConflict {
		return responseError(res)
	}
	return nil
}

// Remove deletes the document last stored at version. A missing document is
// not an error.
func (x *SweetIndex) Remove(ctx context.Context, id string, version int64) error {
	c, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()
	v := int(version + 1)
	req := esapi.DeleteRequest{
		Index:       x.index,
		DocumentID:  id,
		Version:     &v,
		VersionType: versionType,
		Refresh:     "wait_for",
	}
	res, err := req.Do(c, x.es)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && res.StatusCode != http.StatusNotFound && res.StatusCode != http.StatusConflict {
		return responseError(res)
	}
	return nil
}

// Reindex bulk-loads sweets into the index. Documents already holding a newer
// version keep it.
func (x *SweetIndex) Reindex(ctx context.Context, sweets []entity.Sweet) error {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     x.es,
		Index:      x.index,
		NumWorkers: 2,
		Refresh:    "wait_for",
	})
	if err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		failures int
		firstErr error
	)
	onFailure := func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
		if err == nil && res.Status == http.StatusConflict {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		failures++
		if firstErr == nil {
			if err == nil {
				err = fmt.Errorf("%s: %s", res.Error.Type, res.Error.Reason)
			}
			firstErr = fmt.Errorf("index %s: %w", item.DocumentID, err)
		}
	}

	for _, s := range sweets {
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		version := s.Version
		if err := bi.Add(ctx, esutil.BulkIndexerItem{
			Action:      "index",
			DocumentID:  s.ID,
			Body:        bytes.NewReader(b),
			Version:     &version,
			VersionType: versionType,
			OnFailure:   onFailure,
		}); err != nil {
			_ = bi.Close(ctx)
			return err
		}
	}
	if err := bi.Close(ctx); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if failures > 0 {
		return fmt.Errorf("reindex: %d of %d documents failed: %w", failures, len(sweets), firstErr)
	}
	return nil
}

type searchHit struct {
	Source entity.Sweet      `json:"_source"`
	Sort   []json.RawMessage `json:"sort"`
}

// Search runs f against the index, ordered like the store listing. Results
// are paged with search_after until the index is exhausted.
func (x *SweetIndex) Search(ctx context.Context, f search.Filter) ([]entity.Sweet, error) {
	out := make([]entity.Sweet, 0)
	var after []json.RawMessage
	for {
		hits, err := x.searchPage(ctx, f, after)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			out = append(out, h.Source)
		}
		if len(hits) < x.pageSize {
			return out, nil
		}
		after = hits[len(hits)-1].Sort
		if len(after) == 0 {
			return out, nil
		}
	}
}

func (x *SweetIndex) searchPage(ctx context.Context, f search.Filter, after []json.RawMessage) ([]searchHit, error) {
	body := map[string]any{
		"query":            f.ESQuery(),
		"size":             x.pageSize,
		"sort":             []any{map[string]any{"createdAt": "asc"}, map[string]any{"id": "asc"}},
		"track_total_hits": false,
	}
	if len(after) > 0 {
		body["search_after"] = after
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	res, err := x.es.Search(x.es.Search.WithContext(c), x.es.Search.WithIndex(x.index), x.es.Search.WithBody(bytes.NewReader(b)))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.IsError() {
		return nil, responseError(res)
	}

	var parsed struct {
		Hits struct {
			Hits []searchHit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Hits.Hits, nil
}
