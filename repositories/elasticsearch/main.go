package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"pvv/api/models/indexes"
	"pvv/api/utils/logger"

	"github.com/Jeffail/gabs"
	es7 "github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
)

var ErrUnavailable = errors.New("search index is unavailable")

type (
	// Repository mirrors annotated variants into a single search index
	Repository struct {
		Client *es7.Client
		Index  string

		log *logger.Logger
	}
)

func NewRepository(client *es7.Client, index string, log *logger.Logger) *Repository {
	if log == nil {
		log = logger.NewNop()
	}
	return &Repository{
		Client: client,
		Index:  index,
		log:    log,
	}
}

func (r *Repository) Ping(ctx context.Context) error {
	res, err := r.Client.Ping(r.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrUnavailable, res.Status())
	}
	return nil
}

// EnsureIndex creates the variant index with its mapping when missing
func (r *Repository) EnsureIndex(ctx context.Context) error {
	res, err := r.Client.Indices.Exists([]string{r.Index}, r.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := encode(map[string]interface{}{"mappings": indexes.VARIANT_INDEX_MAPPING})
	if err != nil {
		return err
	}

	res, err = r.Client.Indices.Create(r.Index,
		r.Client.Indices.Create.WithContext(ctx),
		r.Client.Indices.Create.WithBody(body),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := parse(res); err != nil {
		return fmt.Errorf("creating index %s: %w", r.Index, err)
	}

	r.log.Info("created search index", "index", r.Index)
	return nil
}

// DeleteIndex drops the mirror; a missing index is not an error
func (r *Repository) DeleteIndex(ctx context.Context) error {
	res, err := r.Client.Indices.Delete([]string{r.Index},
		r.Client.Indices.Delete.WithContext(ctx),
		r.Client.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_, err = parse(res)
	return err
}

func encode(v interface{}) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	return &buf, nil
}

// parse reads the response body; error statuses carry the reported reason
func parse(res *esapi.Response) (*gabs.Container, error) {
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var parsed *gabs.Container
	if len(bytes.TrimSpace(raw)) > 0 {
		parsed, err = gabs.ParseJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	} else {
		parsed = gabs.New()
	}

	if res.IsError() {
		reason, _ := parsed.Path("error.reason").Data().(string)
		if reason == "" {
			reason = res.Status()
		}
		return nil, fmt.Errorf("[%d] %s", res.StatusCode, reason)
	}
	return parsed, nil
}
