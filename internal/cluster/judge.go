package cluster

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/incident-evidence/pkg/anthropic"
)

// Judge decides how likely a new report describes the same incident as an
// existing one, returning a score in [0,1]. Implementations return an
// error (never a panic) on transport failure; callers fall back to 0 per
// same-incident judgment, one of the four weighted clustering signals.
type Judge interface {
	SameIncidentScore(ctx context.Context, incidentSummary, reportSummary string) (float64, error)
}

// NoopJudge always reports unavailable, matching the no-op
// capability default.
type NoopJudge struct{}

func (NoopJudge) SameIncidentScore(ctx context.Context, incidentSummary, reportSummary string) (float64, error) {
	return 0, nil
}

const sameIncidentPrompt = `You are judging whether a NEW emergency report describes the SAME incident as an EXISTING incident summary.

Existing incident summary:
"""
%s
"""

New report summary:
"""
%s
"""

Output a single number in [0, 1]:
- 1.0 = almost certainly the same incident (same place, same type, same time window).
- 0.7-0.9 = likely same (e.g. same building/area, same incident type).
- 0.4-0.6 = unclear (could be same or different).
- 0.1-0.3 = likely different (different location, type, or context).
- 0.0 = clearly different incident.

Respond with ONLY the number, no other text.`

var scorePattern = regexp.MustCompile(`0?\.\d+|\d+\.?\d*`)

// AnthropicJudge implements Judge with a single chat completion.
type AnthropicJudge struct {
	Client anthropic.Client
	Model  string
}

func (j *AnthropicJudge) SameIncidentScore(ctx context.Context, incidentSummary, reportSummary string) (float64, error) {
	if strings.TrimSpace(incidentSummary) == "" || strings.TrimSpace(reportSummary) == "" {
		return 0, nil
	}

	prompt := buildSameIncidentPrompt(incidentSummary, reportSummary)
	temp := 0.1
	resp, err := j.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       j.Model,
		MaxTokens:   16,
		Temperature: &temp,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		zap.L().Warn("clustering degraded: same-incident judge call failed", zap.Error(err))
		return 0, eris.Wrap(err, "cluster: same-incident judge")
	}

	return parseScore(responseText(resp)), nil
}

func buildSameIncidentPrompt(incidentSummary, reportSummary string) string {
	clip := func(s string) string {
		s = strings.TrimSpace(s)
		if len(s) > 2000 {
			s = s[:2000]
		}
		return s
	}
	return fmt.Sprintf(sameIncidentPrompt, clip(incidentSummary), clip(reportSummary))
}

func responseText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		sb.WriteString(block.Text)
	}
	return sb.String()
}

// parseScore extracts the first decimal number in raw and clamps it to
// [0,1]. Returns 0 if no number is found, matching the unavailable
// fallback.
func parseScore(raw string) float64 {
	match := scorePattern.FindString(strings.TrimSpace(raw))
	if match == "" {
		return 0
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
