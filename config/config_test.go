package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"culture-sentinel/internal/domain/entity"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"TELEGRAM_TOKEN", "GOOGLE_API_KEY", "GEMINI_MODEL", "CLEAN_DIR",
		"CONTAMINATED_DIR", "MODEL_DIR", "STORE_PATH", "HTTP_ADDR", "DEBUG"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Analyzer.MaxAttempts)
	require.Equal(t, 30*time.Second, cfg.Analyzer.UploadMaxWait)
	require.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	require.ErrorIs(t, cfg.RequireOracle(), entity.ErrConfiguration)
	require.ErrorIs(t, cfg.RequireTelegram(), entity.ErrConfiguration)
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model_dir: /var/lib/sentinel
dataset:
  clean_dir: /data/clean
store:
  max_experiments: 5
  ttl: 1h
analyzer:
  base_delay: 500ms
  workers: 4
`), 0o644))
	t.Setenv("CLEAN_DIR", "/override/clean")
	t.Setenv("GOOGLE_API_KEY", "key")
	t.Setenv("DEBUG", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/sentinel", cfg.ModelDir)
	require.Equal(t, "/override/clean", cfg.Dataset.CleanDir)
	require.Equal(t, "2_Contaminated_Samples", cfg.Dataset.ContaminatedDir)
	require.Equal(t, 5, cfg.Store.MaxExperiments)
	require.Equal(t, time.Hour, cfg.Store.TTL)
	require.Equal(t, 500*time.Millisecond, cfg.Analyzer.BaseDelay)
	require.Equal(t, 3, cfg.Analyzer.MaxAttempts)
	require.True(t, cfg.Debug)
	require.NoError(t, cfg.RequireOracle())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, entity.ErrConfiguration)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analyzer:\n  max_attempts: 0\n"), 0o644))
	_, err = Load(path)
	require.ErrorIs(t, err, entity.ErrConfiguration)

	t.Setenv("DEBUG", "maybe")
	_, err = Load("")
	require.ErrorIs(t, err, entity.ErrConfiguration)
}
