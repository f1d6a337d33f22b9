package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "edusight.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int64(42), cfg.Cluster.Seed)
	assert.Equal(t, 10, cfg.Cluster.NInit)
	assert.Equal(t, 300, cfg.Cluster.MaxIter)
	assert.Equal(t, 0.3, cfg.Cluster.QualityThreshold)
	assert.Equal(t, 1000.0, cfg.Cluster.CHNormalization)
	assert.Equal(t, 1, cfg.Cluster.Concurrency)
	assert.Equal(t, 0.2, cfg.Monitoring.SilhouetteMin)
	assert.Equal(t, 0.3, cfg.Monitoring.CombinedMin)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EDUSIGHT_STORE_DRIVER", "postgres")
	t.Setenv("EDUSIGHT_CLUSTER_CONCURRENCY", "4")
	t.Setenv("EDUSIGHT_MONITORING_SILHOUETTE_MIN", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Cluster.Concurrency)
	assert.Equal(t, 0.25, cfg.Monitoring.SilhouetteMin)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := "store:\n  driver: postgres\n  database_url: postgres://localhost/edusight\ncluster:\n  seed: 7\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/edusight", cfg.Store.DatabaseURL)
	assert.Equal(t, int64(7), cfg.Cluster.Seed)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10, cfg.Cluster.NInit)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [not a map\n"), 0o644))
	t.Chdir(dir)

	_, err := Load()
	require.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	require.Error(t, InitLogger(LogConfig{Level: "verbose", Format: "json"}))
}
