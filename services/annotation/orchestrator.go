package annotation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pvv/api/models"
	"pvv/api/models/annotations"
	"pvv/api/models/constants"
	annotationSource "pvv/api/models/constants/annotation-source"
	annotationStatus "pvv/api/models/constants/annotation-status"
	"pvv/api/utils/logger"

	"golang.org/x/sync/errgroup"
)

const okLookupChunk = 500

type (
	// Store is what the orchestrator needs from the variant store
	Store interface {
		OkSources(ctx context.Context, variantIds []uint) (map[uint]map[constants.AnnotationSource]bool, error)
		AttachAnnotation(ctx context.Context, a *models.Annotation) (bool, error)
		CountUnannotated(ctx context.Context, source constants.AnnotationSource) (int64, error)
	}

	Orchestrator struct {
		Store   Store
		Clients map[constants.AnnotationSource]Client
		Workers int
		Metrics *Metrics

		limits map[constants.AnnotationSource]chan bool
		log    *logger.Logger
	}

	SourceSummary struct {
		Ok          int   `json:"ok"`
		NotFound    int   `json:"notFound"`
		Error       int   `json:"error"`
		Skipped     int   `json:"skipped"`
		Outstanding int64 `json:"outstanding"`
	}

	BatchResult struct {
		Sources           map[constants.AnnotationSource]*SourceSummary `json:"sources"`
		Variants          int                                           `json:"variants"`
		FailedVariantKeys []string                                      `json:"failedVariantKeys"`
		Stopped           bool                                          `json:"stopped"`
	}

	batchState struct {
		mux     sync.Mutex
		result  *BatchResult
		failed  map[string]bool
		stopped bool
	}
)

// NewOrchestrator wires the clients with a bounded worker pool; concurrency
// caps the number of in-flight fetches per source
func NewOrchestrator(store Store, clients []Client, workers int, concurrency map[constants.AnnotationSource]int, metrics *Metrics, log *logger.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.NewNop()
	}

	o := &Orchestrator{
		Store:   store,
		Clients: map[constants.AnnotationSource]Client{},
		Workers: workers,
		Metrics: metrics,
		limits:  map[constants.AnnotationSource]chan bool{},
		log:     log,
	}
	for _, c := range clients {
		limit := concurrency[c.Source()]
		if limit < 1 {
			limit = 1
		}
		o.Clients[c.Source()] = c
		o.limits[c.Source()] = make(chan bool, limit)
	}
	return o
}

// Annotate fetches and stores every (variant, source) pair that is not already
// ok. Cancelling ctx stops dispatching new work; fetches already running
// finish and are written.
func (o *Orchestrator) Annotate(ctx context.Context, variants []models.Variant, sources []constants.AnnotationSource) (*BatchResult, error) {
	if len(sources) == 0 {
		sources = annotationSource.All()
	}
	for _, src := range sources {
		if o.Clients[src] == nil {
			return nil, fmt.Errorf("no client configured for source %s", src)
		}
	}

	// writes and bookkeeping must survive a stop request
	detached := context.WithoutCancel(ctx)

	okSources, err := o.okSources(detached, variants)
	if err != nil {
		return nil, err
	}

	state := &batchState{
		result: &BatchResult{
			Sources:           map[constants.AnnotationSource]*SourceSummary{},
			Variants:          len(variants),
			FailedVariantKeys: []string{},
		},
		failed: map[string]bool{},
	}
	for _, src := range sources {
		state.result.Sources[src] = &SourceSummary{}
	}

	g := new(errgroup.Group)
	g.SetLimit(o.Workers)

	for i := range variants {
		if ctx.Err() != nil {
			state.markStopped()
			break
		}

		v := &variants[i]
		g.Go(func() error {
			o.annotateVariant(ctx, detached, v, sources, okSources[v.ID], state)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		state.markStopped()
	}

	for _, src := range sources {
		outstanding, err := o.Store.CountUnannotated(detached, src)
		if err != nil {
			return nil, fmt.Errorf("counting outstanding %s annotations: %w", src, err)
		}
		state.result.Sources[src].Outstanding = outstanding
	}

	for key := range state.failed {
		state.result.FailedVariantKeys = append(state.result.FailedVariantKeys, key)
	}
	sort.Strings(state.result.FailedVariantKeys)
	state.result.Stopped = state.stopped

	o.log.Info("annotation batch finished", "variants", len(variants), "failed", len(state.failed), "stopped", state.stopped)
	return state.result, nil
}

func (o *Orchestrator) okSources(ctx context.Context, variants []models.Variant) (map[uint]map[constants.AnnotationSource]bool, error) {
	out := map[uint]map[constants.AnnotationSource]bool{}
	for start := 0; start < len(variants); start += okLookupChunk {
		end := start + okLookupChunk
		if end > len(variants) {
			end = len(variants)
		}

		ids := make([]uint, 0, end-start)
		for _, v := range variants[start:end] {
			ids = append(ids, v.ID)
		}

		chunk, err := o.Store.OkSources(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("reading existing annotations: %w", err)
		}
		for id, sources := range chunk {
			out[id] = sources
		}
	}
	return out, nil
}

// sources run in order so later ones can reuse what earlier ones stored
func (o *Orchestrator) annotateVariant(ctx context.Context, detached context.Context, v *models.Variant, sources []constants.AnnotationSource, alreadyOk map[constants.AnnotationSource]bool, state *batchState) {
	for _, src := range sources {
		if alreadyOk[src] {
			state.skipped(src)
			continue
		}
		if ctx.Err() != nil {
			state.markStopped()
			return
		}

		res := o.fetch(detached, src, v)
		applied, err := o.write(detached, v, res)
		if err != nil {
			o.log.Error("storing annotation failed", "variant", v.VariantKey, "source", src, "error", err)
			res.Status = annotationStatus.Error
		} else if !applied {
			o.Metrics.ObserveSkippedWrite(src)
		}

		state.record(src, v.VariantKey, res.Status)
	}
}

func (o *Orchestrator) fetch(ctx context.Context, src constants.AnnotationSource, v *models.Variant) (res annotations.Result) {
	limit := o.limits[src]
	limit <- true
	defer func() { <-limit }()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("annotation client panicked", "variant", v.VariantKey, "source", src, "panic", r)
			res = annotations.Result{
				Source:    src,
				Status:    annotationStatus.Error,
				Message:   fmt.Sprintf("client panic: %v", r),
				FetchedAt: time.Now().UTC(),
			}
		}
		o.Metrics.ObserveOutcome(src, res.Status, time.Since(start))
	}()

	return o.Clients[src].Fetch(ctx, v)
}

func (o *Orchestrator) write(ctx context.Context, v *models.Variant, res annotations.Result) (bool, error) {
	ann, err := res.ToAnnotation(v.ID)
	if err != nil {
		return false, err
	}
	return o.Store.AttachAnnotation(ctx, ann)
}

func (s *batchState) markStopped() {
	s.mux.Lock()
	s.stopped = true
	s.mux.Unlock()
}

func (s *batchState) skipped(src constants.AnnotationSource) {
	s.mux.Lock()
	s.result.Sources[src].Skipped++
	s.mux.Unlock()
}

func (s *batchState) record(src constants.AnnotationSource, variantKey string, status constants.AnnotationStatus) {
	s.mux.Lock()
	defer s.mux.Unlock()

	summary := s.result.Sources[src]
	switch status {
	case annotationStatus.Ok:
		summary.Ok++
	case annotationStatus.NotFound:
		summary.NotFound++
	default:
		summary.Error++
		s.failed[variantKey] = true
	}
}
