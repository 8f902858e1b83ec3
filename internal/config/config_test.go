package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:11434", cfg.Inference.URL)
	assert.Equal(t, "gemma3:4b", cfg.Inference.Model)
	assert.Equal(t, 10, cfg.Extraction.MaxPages)
	assert.Equal(t, 90*time.Second, cfg.Extraction.PageTimeoutDuration())
	assert.Equal(t, 2, cfg.Extraction.RetryCount)
	assert.True(t, cfg.Extraction.ProcessPerPage)
	assert.Equal(t, 1, cfg.Extraction.InferenceConcurrency)
	assert.Equal(t, time.Second, cfg.Extraction.PageCooldown)
	assert.Equal(t, 5*time.Second, cfg.Extraction.BackoffStep)
	assert.GreaterOrEqual(t, cfg.Extraction.RenderWorkers, 1)
	assert.Equal(t, "info", cfg.LogLevel())
}

func TestLoadLegacyEnvNames(t *testing.T) {
	t.Setenv("OLLAMA_SERVER_URL", "http://gpu-box:11434")
	t.Setenv("OLLAMA_MODEL", "llava:7b")
	t.Setenv("MAX_PAGES", "25")
	t.Setenv("PAGE_TIMEOUT", "120")
	t.Setenv("RETRY_COUNT", "0")
	t.Setenv("PROCESS_PER_PAGE", "false")
	t.Setenv("DEBUG_MODE", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:11434", cfg.Inference.URL)
	assert.Equal(t, "llava:7b", cfg.Inference.Model)
	assert.Equal(t, 25, cfg.Extraction.MaxPages)
	assert.Equal(t, 120*time.Second, cfg.Extraction.PageTimeoutDuration())
	assert.Equal(t, 0, cfg.Extraction.RetryCount)
	assert.False(t, cfg.Extraction.ProcessPerPage)
	assert.Equal(t, "debug", cfg.LogLevel())
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	t.Setenv("OLLAMA_MODEL", "legacy")
	t.Setenv("APP_INFERENCE_MODEL", "preferred")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "preferred", cfg.Inference.Model)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
extraction:
  inference_concurrency: 3
  page_cooldown: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Extraction.InferenceConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Extraction.PageCooldown)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"zero max pages", "MAX_PAGES", "0"},
		{"negative retries", "RETRY_COUNT", "-1"},
		{"zero page timeout", "PAGE_TIMEOUT", "0"},
		{"zero concurrency", "APP_EXTRACTION_INFERENCE_CONCURRENCY", "0"},
		{"bad jpeg quality", "APP_EXTRACTION_JPEG_QUALITY", "101"},
		{"bad port", "PORT", "70000"},
		{"bad log level", "APP_LOG_LEVEL", "verbose"},
		{"bad inference url", "OLLAMA_SERVER_URL", "not a url"},
		{"negative request rate", "APP_SERVER_REQUESTS_PER_SECOND", "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadOptionalMissingFileFallsBack(t *testing.T) {
	cfg, found, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadOptionalReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9091\n"), 0o600))

	cfg, found, err := LoadOptional(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 9091, cfg.Server.Port)
}

func TestLoadOptionalInvalidFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extraction:\n  max_pages: 0\n"), 0o600))

	cfg, found, err := LoadOptional(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "config validation failed")
}
