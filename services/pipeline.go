package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pvv/api/models"
	"pvv/api/models/constants"
	annotationSource "pvv/api/models/constants/annotation-source"
	"pvv/api/models/ingest"
	esRepo "pvv/api/repositories/elasticsearch"
	"pvv/api/repositories/sqlite"
	"pvv/api/services/annotation"
	"pvv/api/services/vcf"
	"pvv/api/utils/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrInterrupted = errors.New("load interrupted before the file was fully read")

type (
	PipelineOptions struct {
		Force            bool
		RetryOutstanding bool
		Sources          []constants.AnnotationSource
	}

	Annotator interface {
		Annotate(ctx context.Context, variants []models.Variant, sources []constants.AnnotationSource) (*annotation.BatchResult, error)
	}

	SearchMirror interface {
		IndexVariants(ctx context.Context, variants []models.Variant) (*esRepo.IndexSummary, error)
	}

	// BatchSummary is persisted as the summary of a load batch
	BatchSummary struct {
		Reused      bool                    `json:"reused,omitempty"`
		Annotation  *annotation.BatchResult `json:"annotation,omitempty"`
		Mirror      *esRepo.IndexSummary    `json:"mirror,omitempty"`
		MirrorError string                  `json:"mirrorError,omitempty"`
	}

	DirectoryResult struct {
		Batches  []*models.LoadBatch `json:"batches"`
		Failures map[string]string   `json:"failures"`
	}

	// Pipeline drives parse, dedupe, annotate and persist for one file at a time
	Pipeline struct {
		Store      *sqlite.Store
		Annotator  Annotator
		Mirror     SearchMirror
		AssemblyId constants.AssemblyId
		Metrics    *PipelineMetrics

		log *logger.Logger
	}

	PipelineMetrics struct {
		batchesTotal *prometheus.CounterVec
		recordsTotal *prometheus.CounterVec
	}
)

func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvv_pipeline_batches_total",
				Help: "Load batches partitioned by final state.",
			},
			[]string{"state"},
		),
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvv_pipeline_records_total",
				Help: "Parsed variant records partitioned by outcome.",
			},
			[]string{"outcome"},
		),
	}

	for _, state := range []ingest.State{ingest.Done, ingest.Error} {
		m.batchesTotal.WithLabelValues(string(state))
	}
	for _, outcome := range []string{"new", "skipped", "parse_error"} {
		m.recordsTotal.WithLabelValues(outcome)
	}

	for _, c := range []prometheus.Collector{m.batchesTotal, m.recordsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PipelineMetrics) observeBatch(b *models.LoadBatch) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(string(b.State)).Inc()
	m.recordsTotal.WithLabelValues("new").Add(float64(b.New))
	m.recordsTotal.WithLabelValues("skipped").Add(float64(b.Skipped))
	m.recordsTotal.WithLabelValues("parse_error").Add(float64(b.ParseErrors))
}

func NewPipeline(store *sqlite.Store, annotator Annotator, mirror SearchMirror, assembly constants.AssemblyId, metrics *PipelineMetrics, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		Store:      store,
		Annotator:  annotator,
		Mirror:     mirror,
		AssemblyId: assembly,
		Metrics:    metrics,
		log:        log,
	}
}

// Run loads one variant file. Fatal problems with the file itself are
// returned as errors; a batch row exists for every run that got past the
// file name and digest checks.
func (p *Pipeline) Run(ctx context.Context, path string, opts PipelineOptions) (*models.LoadBatch, error) {
	sources := opts.Sources
	if len(sources) == 0 {
		sources = annotationSource.All()
	}

	parser, err := vcf.NewParser(path)
	if err != nil {
		return nil, err
	}

	digest, err := parser.Digest()
	if err != nil {
		return nil, err
	}

	log := p.log.With("file", parser.FileName, "patient", parser.PatientId)

	// bookkeeping must land even when a stop is requested
	detached := context.WithoutCancel(ctx)

	if !opts.Force {
		prior, err := p.Store.FindDoneBatchByDigest(detached, digest)
		switch {
		case err == nil:
			log.Info("file already loaded, skipping parse", "batch", prior.ID)
			if !opts.RetryOutstanding {
				return prior, nil
			}

			result, err := p.annotateOutstanding(ctx, parser.PatientId, sources)
			if err != nil {
				return prior, err
			}
			if result != nil {
				log.Info("outstanding variants re-annotated", "batch", prior.ID, "variants", result.Variants, "failed", len(result.FailedVariantKeys))
			}

			// the stored summary still describes the original load; the
			// returned copy reports this retry
			raw, err := json.Marshal(&BatchSummary{Reused: true, Annotation: result})
			if err != nil {
				return prior, err
			}
			prior.Summary = raw
			return prior, nil
		case !errors.Is(err, sqlite.ErrNotFound):
			return nil, err
		}
	}

	batch := &models.LoadBatch{
		ID:         uuid.NewString(),
		FileName:   parser.FileName,
		FilePath:   path,
		Digest:     digest,
		PatientId:  parser.PatientId,
		AssemblyId: p.AssemblyId,
	}
	if err := p.Store.CreateBatch(detached, batch); err != nil {
		return nil, fmt.Errorf("creating load batch for %s: %w", path, err)
	}
	log = log.With("batch", batch.ID)
	log.Info("loading variant file")

	created, lineErrors, readErr := p.ingest(ctx, parser, batch)

	if err := p.Store.SaveParseErrors(detached, batch.ID, lineErrors); err != nil {
		log.Error("could not persist parse errors", "error", err)
	}
	batch.ParseErrors = len(lineErrors)
	batch.LineErrors = lineErrors

	if readErr != nil {
		log.Error("load failed", "error", readErr, "seen", batch.Seen)
		return batch, p.finalize(detached, batch, ingest.Error, readErr, nil)
	}

	summary := &BatchSummary{}

	targets := created
	if opts.RetryOutstanding {
		targets, err = p.withOutstanding(detached, parser.PatientId, created, sources)
		if err != nil {
			return batch, p.finalize(detached, batch, ingest.Error, err, summary)
		}
	}

	if p.Annotator != nil && len(targets) > 0 {
		result, err := p.Annotator.Annotate(ctx, targets, sources)
		if err != nil {
			return batch, p.finalize(detached, batch, ingest.Error, err, summary)
		}
		summary.Annotation = result
		if result.Stopped {
			log.Warn("annotation stopped early; remaining pairs stay outstanding")
		}
	}

	p.mirror(detached, targets, summary)

	log.Info("load finished", "seen", batch.Seen, "new", batch.New, "skipped", batch.Skipped, "parseErrors", batch.ParseErrors)
	if err := p.finalize(detached, batch, ingest.Done, nil, summary); err != nil {
		return batch, err
	}
	return batch, nil
}

// ingest upserts every valid record and collects line errors; the returned
// error is fatal for the batch
func (p *Pipeline) ingest(ctx context.Context, parser *vcf.Parser, batch *models.LoadBatch) ([]models.Variant, []models.ParseError, error) {
	var (
		created    []models.Variant
		lineErrors []models.ParseError
	)

	reader, err := parser.Open()
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()

	detached := context.WithoutCancel(ctx)

	for reader.Scan() {
		if ctx.Err() != nil {
			return created, lineErrors, fmt.Errorf("%w: %s", ErrInterrupted, parser.Path)
		}

		if lineErr := reader.LineError(); lineErr != nil {
			lineErrors = append(lineErrors, models.ParseError{
				Line:   lineErr.Line,
				Reason: lineErr.Reason,
				Text:   lineErr.Text,
			})
			continue
		}

		rec := reader.Record()
		batch.Seen++

		v, isNew, err := p.Store.Upsert(detached, p.toVariant(rec, batch.ID))
		if err != nil {
			return created, lineErrors, err
		}
		if isNew {
			batch.New++
			created = append(created, *v)
		} else {
			batch.Skipped++
		}
	}

	return created, lineErrors, reader.Err()
}

func (p *Pipeline) toVariant(rec *vcf.Record, batchId string) *models.Variant {
	return &models.Variant{
		PatientId:       rec.PatientId,
		Chromosome:      rec.Chrom,
		Position:        rec.Pos,
		ReferenceAllele: rec.Ref,
		AlternateAllele: rec.Alt,
		VcfId:           rec.Id,
		Qual:            rec.Qual,
		Filter:          rec.Filter,
		Info:            rec.Info,
		GeneHint:        rec.GeneHint,
		AssemblyId:      p.AssemblyId,
		BatchId:         batchId,
	}
}

// withOutstanding adds the patient's variants still lacking an ok annotation
func (p *Pipeline) withOutstanding(ctx context.Context, patientId string, created []models.Variant, sources []constants.AnnotationSource) ([]models.Variant, error) {
	outstanding, err := p.Store.GetOutstanding(ctx, sources, patientId)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool, len(created))
	targets := append([]models.Variant{}, created...)
	for _, v := range created {
		seen[v.ID] = true
	}
	for _, v := range outstanding {
		if !seen[v.ID] {
			seen[v.ID] = true
			targets = append(targets, v)
		}
	}
	return targets, nil
}

// AnnotateOutstanding re-runs the lookups for every stored variant missing an
// ok annotation, optionally for one patient only
func (p *Pipeline) AnnotateOutstanding(ctx context.Context, patientId string, sources []constants.AnnotationSource) (*annotation.BatchResult, error) {
	if len(sources) == 0 {
		sources = annotationSource.All()
	}
	return p.annotateOutstanding(ctx, patientId, sources)
}

func (p *Pipeline) annotateOutstanding(ctx context.Context, patientId string, sources []constants.AnnotationSource) (*annotation.BatchResult, error) {
	if p.Annotator == nil {
		return nil, errors.New("no annotator configured")
	}

	targets, err := p.withOutstanding(ctx, patientId, nil, sources)
	if err != nil {
		return nil, err
	}

	result, err := p.Annotator.Annotate(ctx, targets, sources)
	if err != nil {
		return nil, err
	}

	p.mirror(context.WithoutCancel(ctx), targets, &BatchSummary{Annotation: result})
	return result, nil
}

// mirror pushes the annotated variants to the search index; failures are
// recorded on the summary and never fail the load
func (p *Pipeline) mirror(ctx context.Context, variants []models.Variant, summary *BatchSummary) {
	if p.Mirror == nil || len(variants) == 0 {
		return
	}

	ids := make([]uint, 0, len(variants))
	for _, v := range variants {
		ids = append(ids, v.ID)
	}

	stored, err := p.Store.GetVariantsByIds(ctx, ids)
	if err == nil {
		summary.Mirror, err = p.Mirror.IndexVariants(ctx, stored)
	}
	if err != nil {
		summary.MirrorError = err.Error()
		p.log.Warn("search mirror failed", "error", err)
	}
}

func (p *Pipeline) finalize(ctx context.Context, batch *models.LoadBatch, state ingest.State, cause error, summary *BatchSummary) error {
	batch.State = state
	if cause != nil {
		batch.Message = cause.Error()
	}

	if summary != nil {
		raw, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		batch.Summary = raw
	}

	if err := p.Store.FinalizeBatch(ctx, batch); err != nil {
		return err
	}
	p.Metrics.observeBatch(batch)

	if cause != nil {
		return fmt.Errorf("loading %s: %w", batch.FilePath, cause)
	}
	return nil
}

// LoadDirectory runs every VCF in dir in name order; a fatal error on one file
// is reported and the next file proceeds
func (p *Pipeline) LoadDirectory(ctx context.Context, dir string, opts PipelineOptions) (*DirectoryResult, error) {
	files, err := ListVcfFiles(dir)
	if err != nil {
		return nil, err
	}

	result := &DirectoryResult{
		Batches:  []*models.LoadBatch{},
		Failures: map[string]string{},
	}
	for _, f := range files {
		if ctx.Err() != nil {
			p.log.Warn("stopping directory load", "remaining", f)
			break
		}

		batch, err := p.Run(ctx, f, opts)
		if batch != nil {
			result.Batches = append(result.Batches, batch)
		}
		if err != nil {
			p.log.Error("file failed", "file", f, "error", err)
			result.Failures[filepath.Base(f)] = err.Error()
		}
	}
	return result, ctx.Err()
}

// ListVcfFiles returns the *.vcf and *.vcf.gz files directly inside dir
func ListVcfFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", vcf.ErrFileUnreadable, dir, err)
	}

	var files []string
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if e.IsDir() || !(strings.HasSuffix(name, ".vcf") || strings.HasSuffix(name, ".vcf.gz")) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
