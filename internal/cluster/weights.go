package cluster

import (
	"strconv"
	"strings"
)

// Weights holds the four signal weights: embedding, llm, time, geo.
type Weights struct {
	Embedding float64
	LLM       float64
	Time      float64
	Geo       float64
}

// DefaultWeights matches the default CLUSTER_WEIGHTS configuration.
var DefaultWeights = Weights{Embedding: 0.35, LLM: 0.35, Time: 0.15, Geo: 0.15}

// ParseWeights parses a "emb,llm,time,geo" string. Falls back to
// DefaultWeights if s is empty, malformed, or the parts don't sum to ~1.0.
func ParseWeights(s string) Weights {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return DefaultWeights
	}
	vals := make([]float64, 4)
	sum := 0.0
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return DefaultWeights
		}
		vals[i] = v
		sum += v
	}
	if sum < 0.99 || sum > 1.01 {
		return DefaultWeights
	}
	return Weights{Embedding: vals[0], LLM: vals[1], Time: vals[2], Geo: vals[3]}
}
