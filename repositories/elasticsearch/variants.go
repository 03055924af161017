package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"pvv/api/models"
	"pvv/api/models/indexes"
	"pvv/api/models/ingest/structs"

	"github.com/elastic/go-elasticsearch/v7/esutil"
	"github.com/mitchellh/mapstructure"
)

type (
	// IndexSummary counts documents accepted and rejected by a bulk run
	IndexSummary struct {
		Indexed uint64 `json:"indexed"`
		Failed  uint64 `json:"failed"`
	}

	SearchResult struct {
		Total     int               `json:"total"`
		Documents []indexes.Variant `json:"documents"`
	}

	Bucket struct {
		Key   string `json:"key" mapstructure:"key"`
		Count int    `json:"count" mapstructure:"doc_count"`
	}
)

// IndexVariants bulk-indexes one document per variant, keyed by variant key so
// re-indexing replaces the previous document
func (r *Repository) IndexVariants(ctx context.Context, variants []models.Variant) (*IndexSummary, error) {
	summary := &IndexSummary{}
	if len(variants) == 0 {
		return summary, nil
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:      r.Index,
		Client:     r.Client,
		NumWorkers: 1,
		Refresh:    "wait_for",
	})
	if err != nil {
		return nil, fmt.Errorf("creating bulk indexer: %w", err)
	}

	var wg sync.WaitGroup
	for i := range variants {
		doc := indexes.FromVariant(&variants[i])
		wg.Add(1)

		if err := r.add(ctx, bi, &structs.IndexingQueueStructure{Document: &doc, WaitGroup: &wg}, summary); err != nil {
			wg.Done()
			atomic.AddUint64(&summary.Failed, 1)
			r.log.Warn("could not queue document", "key", doc.Key, "error", err)
		}
	}

	// Close flushes the remaining items and fires their callbacks
	if err := bi.Close(ctx); err != nil {
		return summary, fmt.Errorf("flushing bulk indexer: %w", err)
	}
	wg.Wait()

	r.log.Debug("mirrored variants", "index", r.Index, "indexed", summary.Indexed, "failed", summary.Failed)
	return summary, nil
}

func (r *Repository) add(ctx context.Context, bi esutil.BulkIndexer, item *structs.IndexingQueueStructure, summary *IndexSummary) error {
	data, err := json.Marshal(item.Document)
	if err != nil {
		return err
	}

	wg := item.WaitGroup
	return bi.Add(ctx, esutil.BulkIndexerItem{
		Action:     "index",
		DocumentID: item.Document.Key,
		Body:       bytes.NewReader(data),

		OnSuccess: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem) {
			defer wg.Done()
			atomic.AddUint64(&summary.Indexed, 1)
		},

		OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			defer wg.Done()
			atomic.AddUint64(&summary.Failed, 1)
			if err != nil {
				r.log.Warn("bulk index failure", "document", item.DocumentID, "error", err)
			} else {
				r.log.Warn("bulk index failure", "document", item.DocumentID, "type", res.Error.Type, "reason", res.Error.Reason)
			}
		},
	})
}

// SearchVariants runs a case-insensitive wildcard match of term across the
// searchable fields, optionally restricted to one patient
func (r *Repository) SearchVariants(ctx context.Context, term string, patientId string, size int) (*SearchResult, error) {
	if size <= 0 {
		size = 100
	}

	must := []map[string]interface{}{{
		"query_string": map[string]interface{}{
			"query":            fmt.Sprintf("*%s*", escapeQueryString(term)),
			"fields":           indexes.SearchableFields,
			"analyze_wildcard": true,
		},
	}}
	if patientId != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"patientId": patientId},
		})
	}

	body, err := encode(map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []map[string]interface{}{{
					"bool": map[string]interface{}{"must": must},
				}},
			},
		},
		"size": size,
		"sort": []map[string]string{{"chrom": "asc"}, {"pos": "asc"}},
	})
	if err != nil {
		return nil, err
	}

	res, err := r.Client.Search(
		r.Client.Search.WithContext(ctx),
		r.Client.Search.WithIndex(r.Index),
		r.Client.Search.WithBody(body),
		r.Client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parsed, err := parse(res)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Documents: []indexes.Variant{}}
	if total, ok := parsed.Path("hits.total.value").Data().(float64); ok {
		result.Total = int(total)
	}

	hits, _ := parsed.Path("hits.hits").Children()
	for _, hit := range hits {
		var doc indexes.Variant
		if err := mapstructure.Decode(hit.Path("_source").Data(), &doc); err != nil {
			r.log.Warn("skipping undecodable search hit", "error", err)
			continue
		}
		result.Documents = append(result.Documents, doc)
	}
	return result, nil
}

// GetVariantsBucketsByKeyword aggregates mirrored documents by a keyword field
func (r *Repository) GetVariantsBucketsByKeyword(ctx context.Context, keyword string) ([]Bucket, error) {
	body, err := encode(map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"items": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": keyword,
					"size":  10000,
					"order": map[string]string{"_key": "asc"},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	res, err := r.Client.Search(
		r.Client.Search.WithContext(ctx),
		r.Client.Search.WithIndex(r.Index),
		r.Client.Search.WithBody(body),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parsed, err := parse(res)
	if err != nil {
		return nil, err
	}

	buckets := []Bucket{}
	if err := mapstructure.WeakDecode(parsed.Path("aggregations.items.buckets").Data(), &buckets); err != nil {
		return nil, fmt.Errorf("decoding buckets: %w", err)
	}
	return buckets, nil
}

var queryStringReserved = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `=`, `\=`, `&`, `\&`, `|`, `\|`,
	`!`, `\!`, `(`, `\(`, `)`, `\)`, `{`, `\{`, `}`, `\}`, `[`, `\[`,
	`]`, `\]`, `^`, `\^`, `"`, `\"`, `~`, `\~`, `*`, `\*`, `?`, `\?`,
	`:`, `\:`, `/`, `\/`, `<`, ``, `>`, ``,
)

func escapeQueryString(term string) string {
	return queryStringReserved.Replace(strings.TrimSpace(term))
}
