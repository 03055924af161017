package models

import (
	"time"

	"pvv/api/models/constants"
)

type Config struct {
	Debug   bool   `yaml:"debug" envconfig:"PVV_DEBUG"`
	LogMode string `yaml:"logMode" envconfig:"PVV_LOG_MODE"`

	Api struct {
		Url                            string `yaml:"url" envconfig:"PVV_PUBLIC_URL"`
		Port                           string `yaml:"port" envconfig:"PVV_API_INTERNAL_PORT"`
		VcfPath                        string `yaml:"vcfPath" envconfig:"PVV_API_VCF_PATH"`
		FileProcessingConcurrencyLevel int    `yaml:"fileProcessingConcurrencyLevel" envconfig:"PVV_API_FILE_PROC_CONC_LVL"`
	} `yaml:"api"`

	Database struct {
		Path string `yaml:"path" envconfig:"PVV_DB_PATH"`
	} `yaml:"database"`

	Elasticsearch struct {
		Enabled  bool   `yaml:"enabled" envconfig:"PVV_ES_ENABLED"`
		Url      string `yaml:"url" envconfig:"PVV_ES_URL"`
		Username string `yaml:"username" envconfig:"PVV_ES_USERNAME"`
		Password string `yaml:"password" envconfig:"PVV_ES_PASSWORD"`
		Index    string `yaml:"index" envconfig:"PVV_ES_INDEX"`
	} `yaml:"elasticsearch"`

	Annotation struct {
		AssemblyId       constants.AssemblyId `yaml:"assemblyId" envconfig:"PVV_ASSEMBLY_ID"`
		Workers          int                  `yaml:"workers" envconfig:"PVV_ANNOTATION_WORKERS"`
		RequestTimeout   time.Duration        `yaml:"requestTimeout" envconfig:"PVV_REQUEST_TIMEOUT"`
		MaxAttempts      int                  `yaml:"maxAttempts" envconfig:"PVV_RETRY_MAX_ATTEMPTS"`
		BaseDelay        time.Duration        `yaml:"baseDelay" envconfig:"PVV_RETRY_BASE_DELAY"`
		MaxDelay         time.Duration        `yaml:"maxDelay" envconfig:"PVV_RETRY_MAX_DELAY"`
		RetryOutstanding bool                 `yaml:"retryOutstanding" envconfig:"PVV_RETRY_OUTSTANDING"`
		RefreshInterval  time.Duration        `yaml:"refreshInterval" envconfig:"PVV_REFRESH_INTERVAL"`
	} `yaml:"annotation"`

	ClinVar struct {
		Url         string        `yaml:"url" envconfig:"PVV_CLINVAR_URL"`
		ApiKey      string        `yaml:"apiKey" envconfig:"PVV_CLINVAR_API_KEY"`
		Email       string        `yaml:"email" envconfig:"PVV_CLINVAR_EMAIL"`
		Tool        string        `yaml:"tool" envconfig:"PVV_CLINVAR_TOOL"`
		MinDelay    time.Duration `yaml:"minDelay" envconfig:"PVV_CLINVAR_MIN_DELAY"`
		Concurrency int           `yaml:"concurrency" envconfig:"PVV_CLINVAR_CONCURRENCY"`
	} `yaml:"clinvar"`

	Hgnc struct {
		Url         string        `yaml:"url" envconfig:"PVV_HGNC_URL"`
		MinDelay    time.Duration `yaml:"minDelay" envconfig:"PVV_HGNC_MIN_DELAY"`
		Concurrency int           `yaml:"concurrency" envconfig:"PVV_HGNC_CONCURRENCY"`
		CacheTTL    time.Duration `yaml:"cacheTTL" envconfig:"PVV_HGNC_CACHE_TTL"`
	} `yaml:"hgnc"`

	VariantValidator struct {
		Url         string        `yaml:"url" envconfig:"PVV_VV_URL"`
		Transcripts string        `yaml:"transcripts" envconfig:"PVV_VV_TRANSCRIPTS"`
		MinDelay    time.Duration `yaml:"minDelay" envconfig:"PVV_VV_MIN_DELAY"`
		Concurrency int           `yaml:"concurrency" envconfig:"PVV_VV_CONCURRENCY"`
	} `yaml:"variantValidator"`
}

func DefaultConfig() Config {
	var cfg Config

	cfg.LogMode = "dev"

	cfg.Api.Port = "5000"
	cfg.Api.VcfPath = "data/input"
	cfg.Api.FileProcessingConcurrencyLevel = 1

	cfg.Database.Path = "instance/variants.db"

	cfg.Elasticsearch.Url = "http://localhost:9200"
	cfg.Elasticsearch.Index = "variants"

	cfg.Annotation.AssemblyId = "GRCh38"
	cfg.Annotation.Workers = 4
	cfg.Annotation.RequestTimeout = 30 * time.Second
	cfg.Annotation.MaxAttempts = 3
	cfg.Annotation.BaseDelay = 500 * time.Millisecond
	cfg.Annotation.MaxDelay = 8 * time.Second
	cfg.Annotation.RefreshInterval = 6 * time.Hour

	cfg.ClinVar.Url = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	cfg.ClinVar.Tool = "parkinsons-variant-viewer"
	cfg.ClinVar.MinDelay = 350 * time.Millisecond
	cfg.ClinVar.Concurrency = 2

	cfg.Hgnc.Url = "https://rest.genenames.org"
	cfg.Hgnc.MinDelay = 100 * time.Millisecond
	cfg.Hgnc.Concurrency = 2
	cfg.Hgnc.CacheTTL = 24 * time.Hour

	cfg.VariantValidator.Url = "https://rest.variantvalidator.org"
	cfg.VariantValidator.Transcripts = "mane_select"
	cfg.VariantValidator.MinDelay = 500 * time.Millisecond
	cfg.VariantValidator.Concurrency = 1

	return cfg
}
