// Package cluster implements the clustering engine: deciding, for a new
// report, which existing incident it belongs to by blending embedding
// similarity, an LLM same-incident judgment, time proximity, and geo
// proximity.
package cluster

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/incident-evidence/internal/geoscore"
)

// Candidate is one existing incident's state as seen by the clustering
// engine.
type Candidate struct {
	IncidentID  string
	SummaryText string
	LastUpdated time.Time
	Lat, Lng    *float64
}

// Decision is the clustering engine's result for one report.
type Decision struct {
	IncidentID   string
	Score        float64
	IsNew        bool
	EmbeddingSim float64
	LLMScore     float64
}

// Config bundles the clustering engine's tunables.
type Config struct {
	Threshold      float64
	Weights        Weights
	MinEmbedding   *float64
	MinLLM         *float64
	EmbeddingTimeout time.Duration
	JudgeTimeout     time.Duration
}

// Engine assigns reports to incidents.
type Engine struct {
	Embedder Embedder
	Judge    Judge
	Config   Config
}

type scoredCandidate struct {
	candidate    Candidate
	score        float64
	embeddingSim float64
	llmScore     float64
}

// Assign decides which candidate (if any) the report belongs to. An empty
// candidates slice always yields IsNew=true.
func (e *Engine) Assign(ctx context.Context, reportSummary string, now time.Time, reportLat, reportLng *float64, candidates []Candidate) Decision {
	if len(candidates) == 0 {
		return Decision{IsNew: true}
	}

	reportEmbedding, embeddingAvailable := e.embedReport(ctx, reportSummary)

	scored := make([]scoredCandidate, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			scored[i] = e.scoreCandidate(gctx, c, reportSummary, reportEmbedding, embeddingAvailable, now, reportLat, reportLng)
			return nil
		})
	}
	_ = g.Wait() // per-candidate scoring never returns an error; failures degrade to 0 internally

	best, ok := pickBest(scored)
	if !ok {
		return Decision{IsNew: true}
	}

	threshold := e.Config.Threshold
	if threshold <= 0 {
		threshold = 0.65
	}

	if best.score < threshold {
		return Decision{IsNew: true, Score: best.score}
	}
	if e.Config.MinEmbedding != nil && best.embeddingSim < *e.Config.MinEmbedding {
		zap.L().Info("clustering degraded: embedding below CLUSTER_MIN_EMBEDDING", zap.Float64("embedding_sim", best.embeddingSim))
		return Decision{IsNew: true, Score: best.score}
	}
	if e.Config.MinLLM != nil && best.llmScore < *e.Config.MinLLM {
		zap.L().Info("clustering degraded: llm score below CLUSTER_MIN_LLM", zap.Float64("llm_score", best.llmScore))
		return Decision{IsNew: true, Score: best.score}
	}

	return Decision{
		IncidentID:   best.candidate.IncidentID,
		Score:        best.score,
		IsNew:        false,
		EmbeddingSim: best.embeddingSim,
		LLMScore:     best.llmScore,
	}
}

func (e *Engine) embedReport(ctx context.Context, reportSummary string) ([]float64, bool) {
	if e.Embedder == nil {
		return nil, false
	}
	timeout := e.Config.EmbeddingTimeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vec, err := e.Embedder.Embed(cctx, reportSummary)
	if err != nil || vec == nil {
		if err != nil {
			zap.L().Warn("clustering degraded: embedding unavailable", zap.Error(err))
		}
		return nil, false
	}
	return vec, true
}

func (e *Engine) scoreCandidate(ctx context.Context, c Candidate, reportSummary string, reportEmbedding []float64, embeddingAvailable bool, now time.Time, reportLat, reportLng *float64) scoredCandidate {
	w := e.Config.Weights
	if w == (Weights{}) {
		w = DefaultWeights
	}

	var totalWeight float64
	var weightedSum float64
	var embeddingSim float64

	if embeddingAvailable {
		candidateEmbedding, ok := e.embedCandidate(ctx, c.SummaryText)
		if ok {
			embeddingSim = CosineSimilarity(reportEmbedding, candidateEmbedding)
			weightedSum += w.Embedding * embeddingSim
			totalWeight += w.Embedding
		}
	}

	// LLM score falls back to 0 (not renormalized away) when the judge is
	// unavailable, unlike embedding/geo, which exclude
	// the signal entirely.
	llmScore := e.judgeScore(ctx, c.SummaryText, reportSummary)
	weightedSum += w.LLM * llmScore
	totalWeight += w.LLM

	timeScore := TimeProximityScore(now, c.LastUpdated)
	weightedSum += w.Time * timeScore
	totalWeight += w.Time

	if reportLat != nil && reportLng != nil && c.Lat != nil && c.Lng != nil {
		geoScore := geoscore.ScoreLatLng(*reportLat, *reportLng, *c.Lat, *c.Lng)
		weightedSum += w.Geo * geoScore
		totalWeight += w.Geo
	}

	score := 0.0
	if totalWeight > 0 {
		score = weightedSum / totalWeight
	}

	return scoredCandidate{candidate: c, score: score, embeddingSim: embeddingSim, llmScore: llmScore}
}

func (e *Engine) embedCandidate(ctx context.Context, summary string) ([]float64, bool) {
	if e.Embedder == nil {
		return nil, false
	}
	timeout := e.Config.EmbeddingTimeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vec, err := e.Embedder.Embed(cctx, summary)
	if err != nil || vec == nil {
		return nil, false
	}
	return vec, true
}

// judgeScore returns 0 if the judge is unavailable or fails. Unlike
// embedding/geo, this signal is not excluded from renormalization: it
// always counts at its nominal weight.
func (e *Engine) judgeScore(ctx context.Context, incidentSummary, reportSummary string) float64 {
	if e.Judge == nil {
		return 0
	}
	timeout := e.Config.JudgeTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	score, err := e.Judge.SameIncidentScore(cctx, incidentSummary, reportSummary)
	if err != nil {
		return 0
	}
	return score
}

// pickBest applies the tie-break rule: higher combined score; on a tie,
// higher embedding similarity; on a further tie, more recent last_updated.
func pickBest(scored []scoredCandidate) (scoredCandidate, bool) {
	if len(scored) == 0 {
		return scoredCandidate{}, false
	}
	sorted := make([]scoredCandidate, len(scored))
	copy(sorted, scored)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.embeddingSim != b.embeddingSim {
			return a.embeddingSim > b.embeddingSim
		}
		return a.candidate.LastUpdated.After(b.candidate.LastUpdated)
	})
	return sorted[0], true
}
