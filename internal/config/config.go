// Package config loads application configuration from file and environment
// and initializes the global structured logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Extractor ExtractorConfig `yaml:"extractor" mapstructure:"extractor"`
	Cluster   ClusterConfig   `yaml:"cluster" mapstructure:"cluster"`
	Merge     MergeConfig     `yaml:"merge" mapstructure:"merge"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnthropicConfig holds Anthropic API settings used by the LLM extractor
// and the clustering judge.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// ExtractorConfig configures the claim extraction pipeline.
type ExtractorConfig struct {
	// LLMTimeoutSecs bounds each LLM extraction call.
	LLMTimeoutSecs int `yaml:"llm_timeout_secs" mapstructure:"llm_timeout_secs"`
	// GroundedConfidenceCap is the confidence ceiling applied when an
	// extracted string is verified present in the source text.
	GroundedConfidenceCap float64 `yaml:"grounded_confidence_cap" mapstructure:"grounded_confidence_cap"`
	// UngroundedConfidenceCap caps confidence when grounding fails.
	UngroundedConfidenceCap float64 `yaml:"ungrounded_confidence_cap" mapstructure:"ungrounded_confidence_cap"`
}

// ClusterConfig configures the clustering engine.
type ClusterConfig struct {
	Threshold              float64 `yaml:"threshold" mapstructure:"threshold"`
	Weights                string  `yaml:"weights" mapstructure:"weights"` // "emb,llm,time,geo"
	MinEmbedding           float64 `yaml:"min_embedding" mapstructure:"min_embedding"`
	HasMinEmbedding        bool    `yaml:"-" mapstructure:"-"`
	MinLLM                 float64 `yaml:"min_llm" mapstructure:"min_llm"`
	HasMinLLM              bool    `yaml:"-" mapstructure:"-"`
	EmbeddingTimeoutSecs   int     `yaml:"embedding_timeout_secs" mapstructure:"embedding_timeout_secs"`
	LLMJudgeTimeoutSecs    int     `yaml:"llm_judge_timeout_secs" mapstructure:"llm_judge_timeout_secs"`
	EmbeddingCacheCapacity int     `yaml:"embedding_cache_capacity" mapstructure:"embedding_cache_capacity"`
}

// MergeConfig configures the Bayesian confidence merge.
type MergeConfig struct {
	RepeatWindowSecs      int     `yaml:"repeat_window_secs" mapstructure:"repeat_window_secs"`
	RepeatBoost           float64 `yaml:"repeat_boost" mapstructure:"repeat_boost"`
	RepeatBoostCap        float64 `yaml:"repeat_boost_cap" mapstructure:"repeat_boost_cap"`
	Epsilon               float64 `yaml:"epsilon" mapstructure:"epsilon"`
	ReplaceMarginDelta     float64 `yaml:"replace_margin_delta" mapstructure:"replace_margin_delta"`
	ReplaceStaleAfterSecs  int     `yaml:"replace_stale_after_secs" mapstructure:"replace_stale_after_secs"`
}

// AnalyticsConfig holds analytics sink credentials. An empty DatabaseURL
// disables the sink (it becomes a no-op).
type AnalyticsConfig struct {
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	IncidentsTable string `yaml:"incidents_table" mapstructure:"incidents_table"`
	TimelineTable  string `yaml:"timeline_table" mapstructure:"timeline_table"`
	ChunkTable     string `yaml:"chunk_table" mapstructure:"chunk_table"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INCIDENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")

	v.SetDefault("extractor.llm_timeout_secs", 8)
	v.SetDefault("extractor.grounded_confidence_cap", 0.9)
	v.SetDefault("extractor.ungrounded_confidence_cap", 0.35)

	v.SetDefault("cluster.threshold", 0.65)
	v.SetDefault("cluster.weights", "0.35,0.35,0.15,0.15")
	v.SetDefault("cluster.embedding_timeout_secs", 4)
	v.SetDefault("cluster.llm_judge_timeout_secs", 8)
	v.SetDefault("cluster.embedding_cache_capacity", 1024)

	v.SetDefault("merge.repeat_window_secs", 60)
	v.SetDefault("merge.repeat_boost", 0.05)
	v.SetDefault("merge.repeat_boost_cap", 0.9)
	v.SetDefault("merge.epsilon", 1e-6)
	v.SetDefault("merge.replace_margin_delta", 0.10)
	v.SetDefault("merge.replace_stale_after_secs", 600)

	v.SetDefault("analytics.timeout_secs", 2)
	v.SetDefault("analytics.incidents_table", "incident_snapshots")
	v.SetDefault("analytics.timeline_table", "timeline_events")
	v.SetDefault("analytics.chunk_table", "chunk_events")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if v.IsSet("cluster.min_embedding") {
		cfg.Cluster.HasMinEmbedding = true
		cfg.Cluster.MinEmbedding = v.GetFloat64("cluster.min_embedding")
	}
	if v.IsSet("cluster.min_llm") {
		cfg.Cluster.HasMinLLM = true
		cfg.Cluster.MinLLM = v.GetFloat64("cluster.min_llm")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
