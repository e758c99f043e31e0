package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_PipelineParameters_Defaults(t *testing.T) {
	envVars := []string{
		"RAG_TOP_K",
		"RAG_RERANK_K",
		"RAG_TOKEN_BUDGET",
		"RAG_SEARCH_LIMIT",
		"RAG_RRF_K",
		"RAG_STAGE_TIMEOUT",
		"RAG_REQUEST_TIMEOUT",
		"RAG_MAX_RETRIES_RETRIEVAL",
		"RAG_MAX_RETRIES_SYNTHESIS",
	}
	for _, key := range envVars {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	assert.Equal(t, 20, cfg.TopK, "top_k should default to 20")
	assert.Equal(t, 5, cfg.RerankK, "rerank_k should default to 5")
	assert.Equal(t, 3000, cfg.TokenBudget, "token budget should default to 3000")
	assert.Zero(t, cfg.SearchLimit, "search limit is derived from top_k unless set")
	assert.InDelta(t, 60.0, cfg.RRFK, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.StageTimeout)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetriesRetrieval)
	assert.Equal(t, 2, cfg.MaxRetriesSynthesis)
}

func TestLoad_PipelineParameters_FromEnv(t *testing.T) {
	t.Setenv("RAG_TOP_K", "40")
	t.Setenv("RAG_RERANK_K", "8")
	t.Setenv("RAG_TOKEN_BUDGET", "6000")
	t.Setenv("RAG_SEARCH_LIMIT", "90")
	t.Setenv("RAG_RRF_K", "30")
	t.Setenv("RAG_STAGE_TIMEOUT", "10s")
	t.Setenv("SAFETY_SUPPRESS_UNGROUNDED", "true")

	cfg := Load()

	assert.Equal(t, 40, cfg.TopK)
	assert.Equal(t, 8, cfg.RerankK)
	assert.Equal(t, 6000, cfg.TokenBudget)
	assert.Equal(t, 90, cfg.SearchLimit)
	assert.InDelta(t, 30.0, cfg.RRFK, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.StageTimeout)
	assert.True(t, cfg.SuppressUngrounded)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("RAG_TOP_K", "not-a-number")
	t.Setenv("RAG_STAGE_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 20, cfg.TopK)
	assert.Equal(t, 30*time.Second, cfg.StageTimeout)
}

func TestLoad_SecretFromFile(t *testing.T) {
	_ = os.Unsetenv("DB_PASSWORD")
	secretPath := filepath.Join(t.TempDir(), "db_password")
	require.NoError(t, os.WriteFile(secretPath, []byte("s3cret\n"), 0600))
	t.Setenv("DB_PASSWORD_FILE", secretPath)

	cfg := Load()

	assert.Equal(t, "s3cret", cfg.DBPassword, "secret file content should be trimmed")
}

func TestLoad_SecretEnvTakesPrecedenceOverFile(t *testing.T) {
	secretPath := filepath.Join(t.TempDir(), "db_password")
	require.NoError(t, os.WriteFile(secretPath, []byte("from-file"), 0600))
	t.Setenv("DB_PASSWORD_FILE", secretPath)
	t.Setenv("DB_PASSWORD", "from-env")

	cfg := Load()

	assert.Equal(t, "from-env", cfg.DBPassword)
}

func TestLoad_OTelEnabledByEndpoint(t *testing.T) {
	_ = os.Unsetenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg := Load()
	assert.False(t, cfg.OTelEnabled)

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	cfg = Load()
	assert.True(t, cfg.OTelEnabled)
	assert.Equal(t, "collector:4318", cfg.OTelEndpoint)
}

func TestDSN(t *testing.T) {
	t.Setenv("DB_USER", "alice")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_NAME", "rag")

	cfg := Load()

	assert.Equal(t, "postgres://alice:pw@localhost:5433/rag", cfg.DSN())
}
