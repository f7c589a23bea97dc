package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	withHome(t)

	cfg, err := DefaultConfig()
	require.NoError(t, err)
	cfg.Engine.Parallelism = 4
	cfg.MetricsFile = "~/metrics/fitmatch.prom"
	require.NoError(t, Save(cfg))

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, got.Engine.Parallelism)
	assert.Equal(t, 30*time.Second, got.LockTimeout)
	assert.Equal(t, cfg.StorePath, got.StorePath)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), "metrics", "fitmatch.prom"), got.MetricsFile)
	assert.Len(t, got.Datasets, 3)
}

func TestLoad_NotInitialized(t *testing.T) {
	withHome(t)
	_, err := Load()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestLoad_EnvOverlay(t *testing.T) {
	dir := withHome(t)
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	require.NoError(t, Save(cfg))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FITMATCH_LOG_LEVEL=debug\nFITMATCH_LOG_FORMAT=json\n"), 0o600))
	t.Setenv(EnvLogFormat, "text")
	t.Setenv(EnvStorePath, "~/elsewhere")

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", got.Log.Level)
	assert.Equal(t, "text", got.Log.Format)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), "elsewhere"), got.StorePath)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := withHome(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fitmatch.yaml"), []byte("store_path: [\n"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML")
}

func TestValidate(t *testing.T) {
	withHome(t)
	base := func() *Config {
		cfg, err := DefaultConfig()
		require.NoError(t, err)
		return cfg
	}

	require.NoError(t, base().Validate())

	ok := base()
	ok.Datasets[0].Name = "train_2024-v1.0"
	require.NoError(t, ok.Validate())

	cases := map[string]func(c *Config){
		"missing store path": func(c *Config) { c.StorePath = "" },
		"bad role":           func(c *Config) { c.Datasets[0].Role = "train-ish" },
		"duplicate role":     func(c *Config) { c.Datasets[2].Role = "ideal" },
		"duplicate name":     func(c *Config) { c.Datasets[2].Name = "ideal" },
		"slash in name":      func(c *Config) { c.Datasets[0].Name = "a/b" },
		"space in name":      func(c *Config) { c.Datasets[0].Name = "train data" },
		"colon in name":      func(c *Config) { c.Datasets[1].Name = "ideal:v2" },
		"missing role":       func(c *Config) { c.Datasets = c.Datasets[:2] },
		"bad destination":    func(c *Config) { c.Results.Destination = "staging" },
		"bad log level":      func(c *Config) { c.Log.Level = "loud" },
		"negative workers":   func(c *Config) { c.Engine.Parallelism = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatasetPath(t *testing.T) {
	c := &Config{DataDir: "/data"}
	assert.Equal(t, "/data/train.csv", c.DatasetPath(Dataset{File: "train.csv"}))
	assert.Equal(t, "/abs/ideal.csv", c.DatasetPath(Dataset{File: "/abs/ideal.csv"}))

	c.Datasets = []Dataset{{Name: "t", Role: "test", File: "t.csv"}}
	d, err := c.Dataset("test")
	require.NoError(t, err)
	assert.Equal(t, "t", d.Name)
	_, err = c.Dataset("ideal")
	assert.Error(t, err)
}
