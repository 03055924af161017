package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pvv/api/models"
	"pvv/api/models/constants"
	annotationSource "pvv/api/models/constants/annotation-source"
	assemblyId "pvv/api/models/constants/assembly-id"
	esRepo "pvv/api/repositories/elasticsearch"
	"pvv/api/repositories/sqlite"
	"pvv/api/services"
	"pvv/api/services/annotation"
	"pvv/api/utils"
	"pvv/api/utils/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type (
	// Context carries the process-wide settings and singletons shared by
	// every command
	Context struct {
		ConfigFile string
		Debug      bool

		Config   *models.Config
		Log      *logger.Logger
		Registry *prometheus.Registry

		// Transport overrides the outbound HTTP transport; nil in production
		Transport http.RoundTripper
	}

	// Runtime is the wired pipeline with everything it depends on
	Runtime struct {
		Store        *sqlite.Store
		Search       *esRepo.Repository
		Orchestrator *annotation.Orchestrator
		Pipeline     *services.Pipeline
	}
)

// Load reads the layered configuration and builds the logger
func (c *Context) Load() error {
	cfg, err := utils.LoadConfig(c.ConfigFile)
	if err != nil {
		return err
	}
	if c.Debug {
		cfg.Debug = true
	}
	if !assemblyId.IsKnownAssemblyId(string(cfg.Annotation.AssemblyId)) {
		return fmt.Errorf("unsupported assembly id %q", cfg.Annotation.AssemblyId)
	}
	cfg.Annotation.AssemblyId = assemblyId.CastToAssemblyId(string(cfg.Annotation.AssemblyId))

	log, err := logger.New(cfg.LogMode, cfg.Debug)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	c.Config = cfg
	c.Log = log
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
		c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return nil
}

// OpenStore opens the database; unless create is set the schema must exist
func (c *Context) OpenStore(ctx context.Context, create bool) (*sqlite.Store, error) {
	store, err := sqlite.Open(c.Config.Database.Path, c.Log)
	if err != nil {
		return nil, err
	}

	if create {
		err = store.Migrate(ctx)
	} else {
		err = store.Ready(ctx)
		if err != nil {
			err = fmt.Errorf("%w: run init-db first (%s)", err, c.Config.Database.Path)
		}
	}
	if err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// OpenSearch returns nil when the search mirror is disabled
func (c *Context) OpenSearch(ctx context.Context) (*esRepo.Repository, error) {
	if !c.Config.Elasticsearch.Enabled {
		return nil, nil
	}

	client, err := utils.CreateEsConnection(c.Config, c.Transport, c.Log)
	if err != nil {
		return nil, err
	}

	repo := esRepo.NewRepository(client, c.Config.Elasticsearch.Index, c.Log.With("component", "search"))
	if err := repo.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// Clients builds one annotation client per source from the configuration
func (c *Context) Clients(store *sqlite.Store, metrics *annotation.Metrics) []annotation.Client {
	cfg := c.Config
	policy := annotation.RetryPolicyFromConfig(cfg)

	options := func(minDelay time.Duration) annotation.ClientOptions {
		opts := annotation.ClientOptions{
			Policy:   policy,
			MinDelay: minDelay,
			Timeout:  cfg.Annotation.RequestTimeout,
			Metrics:  metrics,
			Log:      c.Log,
		}
		if c.Transport != nil {
			opts.HttpClient = &http.Client{Transport: c.Transport}
		}
		return opts
	}

	clinvarOpts := options(cfg.ClinVar.MinDelay)
	clinvar := annotation.NewClinVarClient(cfg.ClinVar.Url, cfg.Annotation.AssemblyId, clinvarOpts)
	clinvar.ApiKey = cfg.ClinVar.ApiKey
	clinvar.Email = cfg.ClinVar.Email
	clinvar.Tool = cfg.ClinVar.Tool

	hgncOpts := options(cfg.Hgnc.MinDelay)
	hgnc := annotation.NewHgncClient(cfg.Hgnc.Url, store, cfg.Hgnc.CacheTTL, hgncOpts)

	vvOpts := options(cfg.VariantValidator.MinDelay)
	vv := annotation.NewVariantValidatorClient(cfg.VariantValidator.Url, cfg.Annotation.AssemblyId, cfg.VariantValidator.Transcripts, vvOpts)

	return []annotation.Client{vv, clinvar, hgnc}
}

// Concurrency maps each source to its in-flight request limit
func (c *Context) Concurrency() map[constants.AnnotationSource]int {
	return map[constants.AnnotationSource]int{
		annotationSource.ClinicalSignificance: c.Config.ClinVar.Concurrency,
		annotationSource.GeneNomenclature:     c.Config.Hgnc.Concurrency,
		annotationSource.TranscriptInfo:       c.Config.VariantValidator.Concurrency,
	}
}

// Build wires store, search mirror, clients, orchestrator and pipeline
func (c *Context) Build(ctx context.Context) (*Runtime, error) {
	store, err := c.OpenStore(ctx, false)
	if err != nil {
		return nil, err
	}

	search, err := c.OpenSearch(ctx)
	if err != nil {
		// the mirror is optional; loads go on without it
		c.Log.Warn("search mirror disabled", "error", err)
		search = nil
	}

	metrics, err := annotation.NewMetrics(c.Registry)
	if err != nil {
		store.Close()
		return nil, err
	}
	pipelineMetrics, err := services.NewPipelineMetrics(c.Registry)
	if err != nil {
		store.Close()
		return nil, err
	}

	orchestrator := annotation.NewOrchestrator(store, c.Clients(store, metrics), c.Config.Annotation.Workers, c.Concurrency(), metrics, c.Log.With("component", "orchestrator"))

	var mirror services.SearchMirror
	if search != nil {
		mirror = search
	}
	pipeline := services.NewPipeline(store, orchestrator, mirror, c.Config.Annotation.AssemblyId, pipelineMetrics, c.Log.With("component", "pipeline"))

	return &Runtime{
		Store:        store,
		Search:       search,
		Orchestrator: orchestrator,
		Pipeline:     pipeline,
	}, nil
}

func (r *Runtime) Close() error {
	return r.Store.Close()
}
