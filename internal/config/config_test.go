package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.SonnetModel)

	assert.Equal(t, 8, cfg.Extractor.LLMTimeoutSecs)
	assert.InDelta(t, 0.9, cfg.Extractor.GroundedConfidenceCap, 0.001)
	assert.InDelta(t, 0.35, cfg.Extractor.UngroundedConfidenceCap, 0.001)

	assert.InDelta(t, 0.65, cfg.Cluster.Threshold, 0.001)
	assert.Equal(t, "0.35,0.35,0.15,0.15", cfg.Cluster.Weights)
	assert.False(t, cfg.Cluster.HasMinEmbedding)
	assert.False(t, cfg.Cluster.HasMinLLM)
	assert.Equal(t, 4, cfg.Cluster.EmbeddingTimeoutSecs)
	assert.Equal(t, 8, cfg.Cluster.LLMJudgeTimeoutSecs)
	assert.Equal(t, 1024, cfg.Cluster.EmbeddingCacheCapacity)

	assert.Equal(t, 60, cfg.Merge.RepeatWindowSecs)
	assert.InDelta(t, 0.05, cfg.Merge.RepeatBoost, 0.001)
	assert.InDelta(t, 0.9, cfg.Merge.RepeatBoostCap, 0.001)
	assert.InDelta(t, 1e-6, cfg.Merge.Epsilon, 1e-9)
	assert.InDelta(t, 0.10, cfg.Merge.ReplaceMarginDelta, 0.001)
	assert.Equal(t, 600, cfg.Merge.ReplaceStaleAfterSecs)

	assert.Equal(t, "", cfg.Analytics.DatabaseURL)
	assert.Equal(t, 2, cfg.Analytics.TimeoutSecs)
	assert.Equal(t, "incident_snapshots", cfg.Analytics.IncidentsTable)
	assert.Equal(t, "timeline_events", cfg.Analytics.TimelineTable)
	assert.Equal(t, "chunk_events", cfg.Analytics.ChunkTable)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
cluster:
  threshold: 0.7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.7, cfg.Cluster.Threshold, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 1024, cfg.Cluster.EmbeddingCacheCapacity)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("INCIDENT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("INCIDENT_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadClusterMinThresholdsSetOnlyWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("INCIDENT_CLUSTER_MIN_EMBEDDING", "0.2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Cluster.HasMinEmbedding)
	assert.InDelta(t, 0.2, cfg.Cluster.MinEmbedding, 0.001)
	assert.False(t, cfg.Cluster.HasMinLLM)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
