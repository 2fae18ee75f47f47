package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ModeFixture, cfg.LLMMode)
	assert.Equal(t, ProviderHash, cfg.EmbedProvider)
	assert.Equal(t, 3, cfg.RetrievalTopK)
	assert.True(t, cfg.EnableSafetyGuard)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
}

func TestLoadFileYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "healthrag.yaml")
	yamlDoc := `
app_env: test
enable_rag: false
retrieval_top_k: 7
retrieval_timeout: 750ms
store_backend: surrealdb
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("HEALTHRAG_RETRIEVAL_TOP_K", "9")
	t.Setenv("HEALTHRAG_LOG_LEVEL", "debug")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.False(t, cfg.EnableRAG)
	assert.Equal(t, 9, cfg.RetrievalTopK, "env overrides file")
	assert.Equal(t, 750*time.Millisecond, cfg.RetrievalTimeout)
	assert.Equal(t, StoreSurrealDB, cfg.StoreBackend)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("HEALTHRAG_ENABLE_RAG", "maybe")
	t.Setenv("HEALTHRAG_RETRIEVAL_TIMEOUT", "soon")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.True(t, cfg.EnableRAG)
	assert.Equal(t, 2*time.Second, cfg.RetrievalTimeout)
}

func TestNonPositiveRetrievalTimeoutFallsBack(t *testing.T) {
	for _, v := range []string{"0", "-1s"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("HEALTHRAG_RETRIEVAL_TIMEOUT", v)

			cfg, err := LoadFile("")
			require.NoError(t, err)
			assert.Equal(t, 2*time.Second, cfg.RetrievalTimeout)
		})
	}

	path := filepath.Join(t.TempDir(), "healthrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval_timeout: 0s\n"), 0o644))
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.RetrievalTimeout)
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("stage complete", "stage", "intake")
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "stage complete")
	assert.NotContains(t, stderr.String(), "hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &rec))
	assert.Equal(t, "intake", rec["stage"])
}
