package annotation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pvv/api/models"
	"pvv/api/models/annotations"
	"pvv/api/models/constants"
	annotationStatus "pvv/api/models/constants/annotation-status"
	"pvv/api/utils/logger"

	"github.com/Jeffail/gabs"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 8 * 1024 * 1024

type (
	// Client fetches one category of annotation for a variant. Fetch never
	// returns an error; failures are reported through the result status.
	Client interface {
		Source() constants.AnnotationSource
		Fetch(ctx context.Context, v *models.Variant) annotations.Result
	}

	ClientOptions struct {
		HttpClient *http.Client
		Policy     RetryPolicy
		MinDelay   time.Duration
		Timeout    time.Duration
		Metrics    *Metrics
		Log        *logger.Logger
	}

	// httpSource holds what every source shares: the rate gate,
	// the retry policy and response parsing
	httpSource struct {
		source     constants.AnnotationSource
		baseUrl    string
		httpClient *http.Client
		gate       *rate.Limiter
		policy     RetryPolicy
		timeout    time.Duration
		metrics    *Metrics
		log        *logger.Logger
	}
)

func newHttpSource(source constants.AnnotationSource, baseUrl string, opts ClientOptions) *httpSource {
	httpClient := opts.HttpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	limit := rate.Inf
	if opts.MinDelay > 0 {
		limit = rate.Every(opts.MinDelay)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	policy := opts.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}

	log := opts.Log
	if log == nil {
		log = logger.NewNop()
	}

	return &httpSource{
		source:     source,
		baseUrl:    baseUrl,
		httpClient: httpClient,
		gate:       rate.NewLimiter(limit, 1),
		policy:     policy,
		timeout:    timeout,
		metrics:    opts.Metrics,
		log:        log.With("source", string(source)),
	}
}

func (h *httpSource) Source() constants.AnnotationSource {
	return h.source
}

// getJSON issues a GET with retries; every attempt passes through the rate gate
func (h *httpSource) getJSON(ctx context.Context, endpoint string, query url.Values) (*gabs.Container, int, error) {
	var parsed *gabs.Container

	attempts, err := h.policy.Do(ctx, func(attempt int) error {
		c, err := h.attempt(ctx, endpoint, query)
		if err != nil {
			return err
		}
		parsed = c
		return nil
	}, func(err error, wait time.Duration) {
		h.metrics.ObserveRetry(h.source)
		h.log.Debug("retrying annotation request", "endpoint", endpoint, "wait", wait, "error", err)
	})

	return parsed, attempts, err
}

func (h *httpSource) attempt(ctx context.Context, endpoint string, query url.Values) (*gabs.Container, error) {
	if err := h.gate.Wait(ctx); err != nil {
		return nil, &PermanentError{Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	target := h.baseUrl + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &PermanentError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.metrics.ObserveRequest(h.source, "transport_error")
		if ctx.Err() != nil {
			return nil, &PermanentError{Err: ctx.Err()}
		}
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	h.metrics.ObserveRequest(h.source, strconv.Itoa(resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransientError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	c, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, &PermanentError{StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return c, nil
}

func (h *httpSource) ok(payload interface{}, attempts int) annotations.Result {
	return annotations.Result{
		Source:    h.source,
		Status:    annotationStatus.Ok,
		Payload:   payload,
		Attempts:  attempts,
		FetchedAt: time.Now().UTC(),
	}
}

func (h *httpSource) notFound(message string, attempts int) annotations.Result {
	return annotations.Result{
		Source:    h.source,
		Status:    annotationStatus.NotFound,
		Message:   message,
		Attempts:  attempts,
		FetchedAt: time.Now().UTC(),
	}
}

// failed turns an error into a not_found or error result
func (h *httpSource) failed(v *models.Variant, err error, attempts int) annotations.Result {
	if errors.Is(err, ErrNotFound) {
		return h.notFound(err.Error(), attempts)
	}

	h.log.Warn("annotation lookup failed", "variant", v.VariantKey, "attempts", attempts, "error", err)
	return annotations.Result{
		Source:    h.source,
		Status:    annotationStatus.Error,
		Message:   err.Error(),
		Attempts:  attempts,
		FetchedAt: time.Now().UTC(),
	}
}

// decode maps a generic JSON value onto a tagged struct
func decode(input interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func malformed(format string, args ...interface{}) error {
	return &PermanentError{Err: fmt.Errorf("malformed response: "+format, args...)}
}
