package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"healthpredict/predictor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv(PortEnv, "")
	path := writeConfig(t, `
artifacts:
  dir: /srv/models
drinking:
  source: inline
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)

	pred := cfg.Predictor()
	assert.Equal(t, "/srv/models", pred.Dir)
	assert.Equal(t, predictor.DrinkingInline, pred.DrinkingSource)
	assert.Equal(t, "rf_smoking_model.json", pred.SmokingFile)
	assert.Equal(t, 256, pred.CacheSize)
}

func TestLoadExplicitZeroCache(t *testing.T) {
	t.Setenv(PortEnv, "")
	cfg, err := Load(writeConfig(t, "prediction:\n  cache_size: 0\nhttp:\n  timeout: 5s\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Prediction.CacheSize)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
}

func TestLoadFromEnvAndPortOverride(t *testing.T) {
	path := writeConfig(t, "http:\n  port: 9000\n")
	t.Setenv(PathEnv, path)
	t.Setenv(PortEnv, "9100")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTP.Port)
}

func TestLoadMissingFiles(t *testing.T) {
	t.Setenv(PortEnv, "")
	t.Setenv(PathEnv, "")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().HTTP.Port, cfg.HTTP.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(PortEnv, "")
	for name, body := range map[string]string{
		"source":  "drinking:\n  source: pickle\n",
		"port":    "http:\n  port: 70000\n",
		"level":   "log:\n  level: loud\n",
		"unknown": "metrics:\n  enabled: true\n",
		"cache":   "prediction:\n  cache_size: -1\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	t.Setenv(PortEnv, "eighty")
	_, err := Load(writeConfig(t, ""))
	assert.Error(t, err)
}
