package utils

import (
	"path"
	"runtime"
	"testing"
	"time"

	assemblyId "pvv/api/models/constants/assembly-id"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfigPath() string {
	_, filename, _, _ := runtime.Caller(0)
	return path.Join(path.Dir(filename), "testdata", "test.config.yml")
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without file or environment", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, "")
		cfg, err := LoadConfig("")
		require.NoError(t, err)

		assert.Equal(t, "5000", cfg.Api.Port)
		assert.Equal(t, 3, cfg.Annotation.MaxAttempts)
		assert.Equal(t, assemblyId.GRCh38, cfg.Annotation.AssemblyId)
		assert.Equal(t, 350*time.Millisecond, cfg.ClinVar.MinDelay)
		assert.Equal(t, "mane_select", cfg.VariantValidator.Transcripts)
	})

	t.Run("yaml file overrides defaults", func(t *testing.T) {
		cfg, err := LoadConfig(testConfigPath())
		require.NoError(t, err)

		assert.True(t, cfg.Debug)
		assert.Equal(t, "prod", cfg.LogMode)
		assert.Equal(t, "5055", cfg.Api.Port)
		assert.Equal(t, 3, cfg.Api.FileProcessingConcurrencyLevel)
		assert.Equal(t, assemblyId.GRCh37, cfg.Annotation.AssemblyId)
		assert.Equal(t, 5*time.Second, cfg.Annotation.RequestTimeout)
		assert.Equal(t, 100*time.Millisecond, cfg.Annotation.BaseDelay)
		assert.Equal(t, time.Hour, cfg.Hgnc.CacheTTL)
		assert.Equal(t, "refseq_select", cfg.VariantValidator.Transcripts)

		// untouched keys keep their defaults
		assert.Equal(t, 8*time.Second, cfg.Annotation.MaxDelay)
		assert.Equal(t, "https://rest.genenames.org", cfg.Hgnc.Url)
	})

	t.Run("environment overrides yaml", func(t *testing.T) {
		t.Setenv("PVV_API_INTERNAL_PORT", "6000")
		t.Setenv("PVV_RETRY_MAX_ATTEMPTS", "5")
		t.Setenv("PVV_CLINVAR_MIN_DELAY", "1s")

		cfg, err := LoadConfig(testConfigPath())
		require.NoError(t, err)

		assert.Equal(t, "6000", cfg.Api.Port)
		assert.Equal(t, 5, cfg.Annotation.MaxAttempts)
		assert.Equal(t, time.Second, cfg.ClinVar.MinDelay)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadConfig("/does/not/exist.yml")
		assert.Error(t, err)
	})
}
