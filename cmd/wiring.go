package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/incident-evidence/internal/analyticssink"
	"github.com/sells-group/incident-evidence/internal/cluster"
	"github.com/sells-group/incident-evidence/internal/extract"
	"github.com/sells-group/incident-evidence/internal/ingest"
	"github.com/sells-group/incident-evidence/internal/store"
	anthropicpkg "github.com/sells-group/incident-evidence/pkg/anthropic"
)

// env bundles the wired components shared by the serve and ingest commands.
type env struct {
	coordinator   *ingest.Coordinator
	store         store.Store
	extractorKind extract.Kind
	closeFn       func()
}

func buildEnv(ctx context.Context) (*env, error) {
	st := store.NewMemStore()

	extractorKind := extract.KindDeterministic
	var extractor extract.Extractor = extract.Deterministic{}
	var judge cluster.Judge = cluster.NoopJudge{}

	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		extractorKind = extract.KindLLM
		extractor = &extract.LLM{
			Client:   client,
			Model:    cfg.Anthropic.HaikuModel,
			Fallback: extract.Deterministic{},
			Timeout:  time.Duration(cfg.Extractor.LLMTimeoutSecs) * time.Second,
		}
		judge = &cluster.AnthropicJudge{Client: client, Model: cfg.Anthropic.HaikuModel}
		zap.L().Info("llm extractor enabled", zap.String("model", cfg.Anthropic.HaikuModel))
	} else {
		zap.L().Info("no anthropic key configured, using deterministic extractor")
	}

	weights := cluster.ParseWeights(cfg.Cluster.Weights)
	clusterCfg := cluster.Config{
		Threshold:        cfg.Cluster.Threshold,
		Weights:          weights,
		EmbeddingTimeout: time.Duration(cfg.Cluster.EmbeddingTimeoutSecs) * time.Second,
		JudgeTimeout:     time.Duration(cfg.Cluster.LLMJudgeTimeoutSecs) * time.Second,
	}
	if cfg.Cluster.HasMinEmbedding {
		v := cfg.Cluster.MinEmbedding
		clusterCfg.MinEmbedding = &v
	}
	if cfg.Cluster.HasMinLLM {
		v := cfg.Cluster.MinLLM
		clusterCfg.MinLLM = &v
	}

	// No embedding provider wired by default (LLM judge + time/geo still
	// active); CachedEmbedder still wraps NoopEmbedder so a real provider
	// drops in behind the same cache without further wiring changes.
	embeddingCache := cluster.NewEmbeddingCache(cfg.Cluster.EmbeddingCacheCapacity)
	engine := &cluster.Engine{
		Embedder: &cluster.CachedEmbedder{Embedder: cluster.NoopEmbedder{}, Cache: embeddingCache},
		Judge:    judge,
		Config:   clusterCfg,
	}

	var sink analyticssink.Sink = analyticssink.NoopSink{}
	var closeFn func()
	if cfg.Analytics.DatabaseURL != "" {
		pg, err := analyticssink.NewPostgresSink(ctx, cfg.Analytics.DatabaseURL, analyticssink.TableNames{
			Snapshots: cfg.Analytics.IncidentsTable,
			Timeline:  cfg.Analytics.TimelineTable,
			Chunks:    cfg.Analytics.ChunkTable,
		}, time.Duration(cfg.Analytics.TimeoutSecs)*time.Second)
		if err != nil {
			zap.L().Warn("analytics sink disabled: connect failed", zap.Error(err))
		} else {
			sink = pg
			closeFn = pg.Close
			zap.L().Info("analytics sink enabled")
		}
	}

	coordinator := &ingest.Coordinator{
		Store:            st,
		Extractor:        extractor,
		ClusterEngine:    engine,
		Analytics:        sink,
		RepeatWindow:     time.Duration(cfg.Merge.RepeatWindowSecs) * time.Second,
		AnalyticsTimeout: time.Duration(cfg.Analytics.TimeoutSecs) * time.Second,
		DLQ:              ingest.NewDeadLetterQueue(ingest.DefaultDLQCapacity),
	}

	return &env{coordinator: coordinator, store: st, extractorKind: extractorKind, closeFn: closeFn}, nil
}

func (e *env) Close() {
	if e.closeFn != nil {
		e.closeFn()
	}
}
