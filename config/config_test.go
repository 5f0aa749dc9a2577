package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fuelcell/stack"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8501, cfg.HTTP.Port)
	require.Equal(t, "models/scaler.json", cfg.Models.Paths.Scaler)
	require.Equal(t, stack.Defaults(), cfg.Stack)
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 9000
  timeout: 5s
models:
  scaler_path: /srv/models/scaler.json
  cache_size: 0
stack:
  number_of_cells: 30
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.HTTP.Port)
	require.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	require.Equal(t, "/srv/models/scaler.json", cfg.Models.Paths.Scaler)
	require.Equal(t, "models/rf_load_model.json", cfg.Models.Paths.LoadModel)
	require.Zero(t, cfg.Models.CacheSize)
	require.Equal(t, 30, cfg.Stack.NumberOfCells)
	require.Equal(t, 96485.0, cfg.Stack.FaradayConstant)
}

func TestEnvironmentOverridesYAML(t *testing.T) {
	path := writeConfig(t, "http:\n  port: 9000\n")
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MODELS_TARGET_MODEL_PATH", "/tmp/targets.json")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "http://a.example,http://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.HTTP.Port)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "/tmp/targets.json", cfg.Models.Paths.TargetModel)
	require.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.HTTP.AllowedOrigins)
}

func TestLoadRejectsInvalidStack(t *testing.T) {
	path := writeConfig(t, "stack:\n  stack_voltage: 48\n")
	_, err := Load(path)
	require.ErrorIs(t, err, stack.ErrParameterOutOfRange)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
