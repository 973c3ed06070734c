// Package extract transforms a transcript chunk into a list of model.Claim
// values. Two interchangeable implementations exist: Deterministic (fixed
// keyword rule set, no external services) and LLM (Anthropic-backed,
// falling back to Deterministic on any parse, transport, or quota error).
package extract

import (
	"context"
	"time"

	"github.com/sells-group/incident-evidence/internal/model"
)

// Extractor transforms raw transcript text into claims.
type Extractor interface {
	Extract(ctx context.Context, text string, now time.Time) ([]model.Claim, error)
}

// Kind reports which extractor is active, for the /health endpoint.
type Kind string

const (
	KindLLM           Kind = "llm"
	KindDeterministic Kind = "deterministic"
)
