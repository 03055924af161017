package utils

import (
	"net/http"
	"time"

	"pvv/api/models"
	"pvv/api/utils/logger"

	"github.com/cenkalti/backoff"
	es7 "github.com/elastic/go-elasticsearch/v7"
)

// CreateEsConnection builds the search client; transport is nil outside tests
func CreateEsConnection(cfg *models.Config, transport http.RoundTripper, log *logger.Logger) (*es7.Client, error) {
	var (
		clusterURLs  = []string{cfg.Elasticsearch.Url}
		retryBackoff = backoff.NewExponentialBackOff()
	)

	esCfg := es7.Config{
		Addresses: clusterURLs,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		Transport: transport,

		RetryOnStatus: []int{502, 503, 504, 429},

		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: 5,

		// only the X-Elastic-Product header of real responses is verified
		UseResponseCheckOnly: true,
	}

	client, err := es7.NewClient(esCfg)
	if err != nil {
		return nil, err
	}

	log.Debug("using elasticsearch client", "version", es7.Version, "url", cfg.Elasticsearch.Url)
	return client, nil
}
