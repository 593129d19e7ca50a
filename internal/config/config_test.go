package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultProgressStep, cfg.ProgressStep)
	assert.Equal(t, DefaultProgressInterval, cfg.ProgressInterval)
	assert.Equal(t, DefaultProgressCeiling, cfg.ProgressCeiling)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SCRIBE_API_URL", "http://example.test:9000/")
	t.Setenv("SCRIBE_PROGRESS_STEP", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://example.test:9000", cfg.APIURL)
	assert.Equal(t, 5, cfg.ProgressStep)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := "api_url = \"https://gen.example.com\"\nrequest_timeout = \"5s\"\nprogress_ceiling = 80\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://gen.example.com", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 80, cfg.ProgressCeiling)
	assert.Equal(t, DefaultProgressStep, cfg.ProgressStep)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("progress_ceiling = 100\n"), 0o600))

	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "progress_ceiling")
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.APIURL = "https://saved.example.com"
	cfg.RefreshInterval = 3 * time.Second

	require.NoError(t, Save(cfg, path))

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSetAPIURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	require.NoError(t, SetAPIURL(path, "https://api.example.com/"))
	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)

	assert.Error(t, SetAPIURL(path, "ftp://nope"))
}
