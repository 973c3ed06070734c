package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/incident-evidence/internal/config"
	"github.com/sells-group/incident-evidence/internal/extract"
)

func testConfig() *config.Config {
	return &config.Config{
		Cluster: config.ClusterConfig{
			Threshold:              0.65,
			Weights:                "0.35,0.35,0.15,0.15",
			EmbeddingCacheCapacity: 64,
		},
		Merge: config.MergeConfig{
			RepeatWindowSecs: 60,
		},
		Analytics: config.AnalyticsConfig{
			TimeoutSecs: 2,
		},
	}
}

func TestBuildEnv_NoAnthropicKeyUsesDeterministicExtractor(t *testing.T) {
	cfg = testConfig()
	cfg.Anthropic.Key = ""

	e, err := buildEnv(context.Background())
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, extract.KindDeterministic, e.extractorKind)
	assert.IsType(t, extract.Deterministic{}, e.coordinator.Extractor)
}

func TestBuildEnv_AnthropicKeySelectsLLMExtractor(t *testing.T) {
	cfg = testConfig()
	cfg.Anthropic.Key = "sk-test-key"
	cfg.Anthropic.HaikuModel = "claude-haiku-4-5-20251001"

	e, err := buildEnv(context.Background())
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, extract.KindLLM, e.extractorKind)
	llmExtractor, ok := e.coordinator.Extractor.(*extract.LLM)
	require.True(t, ok, "expected *extract.LLM when an Anthropic key is configured")
	assert.Equal(t, "claude-haiku-4-5-20251001", llmExtractor.Model)
	assert.IsType(t, extract.Deterministic{}, llmExtractor.Fallback)
}

func TestBuildEnv_NoDatabaseURLUsesNoopAnalyticsSink(t *testing.T) {
	cfg = testConfig()
	cfg.Analytics.DatabaseURL = ""

	e, err := buildEnv(context.Background())
	require.NoError(t, err)
	defer e.Close()

	assert.Nil(t, e.closeFn)
}

func TestBuildEnv_WiresDeadLetterQueue(t *testing.T) {
	cfg = testConfig()

	e, err := buildEnv(context.Background())
	require.NoError(t, err)
	defer e.Close()

	assert.NotNil(t, e.coordinator.DLQ)
}
