package extract

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/incident-evidence/internal/model"
	"github.com/sells-group/incident-evidence/pkg/anthropic"
)

const (
	groundedConfidenceCap   = 0.9
	ungroundedConfidenceCap = 0.35
	// defaultLLMTimeout bounds the extraction call per spec.md §5's
	// "LLM 8s" external-call timeout, used when Timeout is unset.
	defaultLLMTimeout = 8 * time.Second
)

const extractPrompt = `You are an evidence extractor for emergency call transcripts. Extract only what is explicitly stated. Do not infer.

Transcript chunk:
"""
%s
"""

Return a JSON object with these optional keys. Only include keys the chunk explicitly states.

- locations: [ { "value": "<place/floor/room>", "confidence": 0.0-1.0 }, ... ]
- incident_type: { "value": "fire|gunshot|medical|assault|gas leak|flood|collapse|accident|break-in|missing|overdose|suicide", "confidence": 0.0-1.0 }
- people_estimate: { "value": "<integer>", "confidence": 0.0-1.0 }
- hazards: [ { "value": "<keyword>", "confidence": 0.0-1.0 }, ... ]

Use lower confidence when the speaker hedges ("I think", "maybe"). Respond with ONLY the JSON object, no markdown fences.`

var jsonBlockRegex = regexp.MustCompile(`(?s)\{.*\}`)

// LLM calls Anthropic with a strict JSON-extraction prompt, grounds every
// extracted string against the source text, and falls back to Deterministic
// on any parse, transport, or quota failure.
type LLM struct {
	Client   anthropic.Client
	Model    string
	Fallback Extractor
	// Timeout bounds each call to Client.CreateMessage. Defaults to
	// defaultLLMTimeout when zero.
	Timeout time.Duration
}

type extractedValue struct {
	Value      json.RawMessage `json:"value"`
	Confidence *float64        `json:"confidence"`
}

type extractResponse struct {
	Locations      []extractedValue `json:"locations"`
	IncidentType   *extractedValue  `json:"incident_type"`
	PeopleEstimate *extractedValue  `json:"people_estimate"`
	Hazards        []extractedValue `json:"hazards"`
}

func (l *LLM) fallback() Extractor {
	if l.Fallback != nil {
		return l.Fallback
	}
	return Deterministic{}
}

func (l *LLM) Extract(ctx context.Context, text string, now time.Time) ([]model.Claim, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := l.Client.CreateMessage(cctx, anthropic.MessageRequest{
		Model:     l.Model,
		MaxTokens: 512,
		Messages:  []anthropic.Message{{Role: "user", Content: sprintfExtract(trimmed)}},
	})
	if err != nil {
		zap.L().Warn("extractor fallback: llm call failed", zap.Error(err))
		return l.fallback().Extract(ctx, text, now)
	}

	raw := responseText(resp)
	parsed, ok := parseExtractResponse(raw)
	if !ok {
		zap.L().Warn("extractor fallback: llm response not valid json", zap.String("raw_preview", preview(raw)))
		return l.fallback().Extract(ctx, text, now)
	}

	return groundClaims(parsed, trimmed, now), nil
}

func sprintfExtract(text string) string {
	return strings.Replace(extractPrompt, "%s", text, 1)
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

func preview(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

func parseExtractResponse(raw string) (extractResponse, bool) {
	candidate := stripCodeFence(raw)
	var resp extractResponse
	if err := json.Unmarshal([]byte(candidate), &resp); err == nil {
		return resp, true
	}
	if m := jsonBlockRegex.FindString(candidate); m != "" {
		if err := json.Unmarshal([]byte(m), &resp); err == nil {
			return resp, true
		}
	}
	return extractResponse{}, false
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func groundClaims(resp extractResponse, sourceText string, now time.Time) []model.Claim {
	var claims []model.Claim

	for _, loc := range resp.Locations {
		v, ok := stringValue(loc.Value)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		claims = append(claims, groundedClaim(model.ClaimLocation, v, confidenceOr(loc.Confidence, 0.6), sourceText, now))
	}

	if resp.IncidentType != nil {
		if v, ok := stringValue(resp.IncidentType.Value); ok && strings.TrimSpace(v) != "" {
			claims = append(claims, groundedClaim(model.ClaimIncidentType, strings.ToLower(v), confidenceOr(resp.IncidentType.Confidence, 0.7), sourceText, now))
		}
	}

	if resp.PeopleEstimate != nil {
		if v, ok := stringValue(resp.PeopleEstimate.Value); ok && strings.TrimSpace(v) != "" {
			claims = append(claims, groundedClaim(model.ClaimPeopleEstimate, v, confidenceOr(resp.PeopleEstimate.Confidence, 0.6), sourceText, now))
		}
	}

	for _, h := range resp.Hazards {
		v, ok := stringValue(h.Value)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		value := strings.ToLower(v)
		if reclassified, reclass := hazardAsIncidentType[value]; reclass {
			claims = append(claims, groundedClaim(model.ClaimIncidentType, reclassified, confidenceOr(h.Confidence, 0.7), sourceText, now))
			continue
		}
		claims = append(claims, groundedClaim(model.ClaimHazard, value, confidenceOr(h.Confidence, 0.5), sourceText, now))
	}

	return claims
}

// groundedClaim caps confidence at ungroundedConfidenceCap unless value can
// be substantively located in sourceText, in which case it is capped at
// groundedConfidenceCap instead, per the hallucination-grounding rule.
func groundedClaim(claimType model.ClaimType, value string, confidence float64, sourceText string, now time.Time) model.Claim {
	cap := ungroundedConfidenceCap
	if isGrounded(sourceText, value) {
		cap = groundedConfidenceCap
	}
	if confidence > cap {
		confidence = cap
	}
	return model.Claim{
		ClaimType:  claimType,
		Value:      value,
		Confidence: confidence,
		SourceText: sourceText,
		Timestamp:  now,
	}
}

var wordRegex = regexp.MustCompile(`\w+`)

// isGrounded reports whether value is substantively present in text: an
// exact substring match, or at least half its tokens overlap with text's.
func isGrounded(text, value string) bool {
	textLower := strings.ToLower(text)
	valueLower := strings.ToLower(strings.TrimSpace(value))
	if valueLower == "" {
		return false
	}
	if strings.Contains(textLower, valueLower) {
		return true
	}
	valueWords := wordRegex.FindAllString(valueLower, -1)
	if len(valueWords) == 0 {
		return false
	}
	textWords := make(map[string]bool)
	for _, w := range wordRegex.FindAllString(textLower, -1) {
		textWords[w] = true
	}
	matched := 0
	for _, w := range valueWords {
		if textWords[w] {
			matched++
		}
	}
	return float64(matched)/float64(len(valueWords)) >= 0.5
}

func confidenceOr(c *float64, fallback float64) float64 {
	if c == nil {
		return fallback
	}
	return *c
}

// stringValue unwraps a JSON value that is a bare string or a number,
// returning it as a string; any other JSON shape is rejected.
func stringValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}
