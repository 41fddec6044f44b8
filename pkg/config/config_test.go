package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "semantic", cfg.Chunking.Strategy)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Embedding.CacheTTL)
	assert.Equal(t, 4, cfg.Ingestion.FanOut)
	assert.Equal(t, 64, cfg.Ingestion.EmbedBatchSize)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsOverlapGESize(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Chunking.Size = 100
	cfg.Chunking.Overlap = 100

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestValidateRejectsBadStrategy(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Chunking.Strategy = "recursive"

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadProvider(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Embedding.Provider = "cohere"

	assert.Error(t, cfg.Validate())
}

func TestLoadYAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_QDRANT_HOST", "qdrant.internal")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
qdrant:
  host: ${TEST_QDRANT_HOST}
  port: 6334
chunking:
  strategy: fixed
  size: 500
  overlap: 50
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, "fixed", cfg.Chunking.Strategy)
	assert.Equal(t, 500, cfg.Chunking.Size)
}

func TestExpandEnvVarsDefault(t *testing.T) {
	os.Unsetenv("DOES_NOT_EXIST_XYZ")
	assert.Equal(t, "fallback", expandEnvVars("${DOES_NOT_EXIST_XYZ:-fallback}"))

	t.Setenv("EXISTS_XYZ", "real")
	assert.Equal(t, "real", expandEnvVars("${EXISTS_XYZ:-fallback}"))
	assert.Equal(t, "real", expandEnvVars("${EXISTS_XYZ}"))
	assert.Equal(t, "real", expandEnvVars("$EXISTS_XYZ"))
	assert.Equal(t, "no refs", expandEnvVars("no refs"))
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DOCVECTOR_DATABASE_URL", "postgres://db/docvector")
	t.Setenv("DOCVECTOR_DATABASE_DRIVER", "postgres")
	t.Setenv("DOCVECTOR_CHUNK_SIZE", "800")
	t.Setenv("DOCVECTOR_CRAWLER_RESPECT_ROBOTS_TXT", "true")
	t.Setenv("DOCVECTOR_SEARCH_MIN_SCORE", "0.25")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://db/docvector", cfg.Database.URL)
	assert.Equal(t, 800, cfg.Chunking.Size)
	assert.True(t, cfg.Crawler.RespectRobotsTxt)
	assert.InDelta(t, 0.25, cfg.Search.MinScore, 1e-9)
}
