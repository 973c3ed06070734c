package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/incident-evidence/internal/model"
)

// Deterministic runs a fixed ordered rule set over the chunk text. It never
// calls an external service and never errors.
type Deterministic struct{}

const (
	incidentTypeConfidence   = 0.7
	locationConfidence       = 0.55
	peopleEstimateConfidence = 0.6
	hazardConfidence         = 0.5
	hedgingDampening         = 0.75
)

var hedgingRegex = regexp.MustCompile(`(?i)\b(i think|maybe|perhaps|might be|could be|not sure|unsure)\b`)

// incidentTypePhrases is evaluated in order; the first match wins.
var incidentTypePhrases = []struct {
	re    *regexp.Regexp
	value string
}{
	{regexp.MustCompile(`(?i)\bfire\b`), "fire"},
	{regexp.MustCompile(`(?i)\b(gun\s*shot|gunshot|shooting)\b`), "gunshot"},
	{regexp.MustCompile(`(?i)\b(medical|heart attack)\b`), "medical"},
	{regexp.MustCompile(`(?i)\b(assault|attacked|stabbed)\b`), "assault"},
	{regexp.MustCompile(`(?i)\bgas leak\b`), "gas leak"},
	{regexp.MustCompile(`(?i)\bflood(ing)?\b`), "flood"},
	{regexp.MustCompile(`(?i)\bcollapse(d)?\b`), "collapse"},
	{regexp.MustCompile(`(?i)\baccident\b`), "accident"},
	{regexp.MustCompile(`(?i)\bbreak[- ]?in\b`), "break-in"},
	{regexp.MustCompile(`(?i)\bmissing\b`), "missing"},
	{regexp.MustCompile(`(?i)\boverdose\b`), "overdose"},
	{regexp.MustCompile(`(?i)\bsuicide\b`), "suicide"},
}

var locationRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:on|at|near|in|inside) the ([a-z0-9]+(?:\s+[a-z0-9]+){0,5})`),
	regexp.MustCompile(`(?i)\b((?:first|second|third|fourth|fifth|ground|\d+(?:st|nd|rd|th)) floor)\b`),
	regexp.MustCompile(`\b([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)+)\b`),
}

var peopleWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"several": 3, "multiple": 2,
}

var peopleRegex = regexp.MustCompile(`(?i)\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten|several|multiple)\s+(people|persons|victims|trapped|injured)\b`)

// hazardAsIncidentType funnels hazard-shaped keywords that are really
// incident categories into an incident_type claim instead of a hazard one.
var hazardAsIncidentType = map[string]string{
	"fire": "fire", "smoke": "fire", "gas": "gas leak", "collapse": "collapse", "flood": "flood",
}

var hazardRegex = regexp.MustCompile(`(?i)\b(smoke|fire|gas|collapse|flood|explosion|weapon|suspect)\b`)

func (Deterministic) Extract(ctx context.Context, text string, now time.Time) ([]model.Claim, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	lower := strings.ToLower(trimmed)
	hedged := hedgingRegex.MatchString(lower)

	var claims []model.Claim

	if it, ok := extractIncidentType(lower); ok {
		claims = append(claims, newClaim(model.ClaimIncidentType, it, dampen(incidentTypeConfidence, hedged), trimmed, now))
	}

	for _, loc := range extractLocations(trimmed) {
		claims = append(claims, newClaim(model.ClaimLocation, loc, dampen(locationConfidence, hedged), trimmed, now))
	}

	if value, ok := extractPeopleEstimate(lower); ok {
		claims = append(claims, newClaim(model.ClaimPeopleEstimate, value, dampen(peopleEstimateConfidence, hedged), trimmed, now))
	}

	seenIncidentType := len(claims) > 0 && claims[0].ClaimType == model.ClaimIncidentType
	for _, h := range extractHazards(lower) {
		if reclassified, ok := hazardAsIncidentType[h]; ok {
			if seenIncidentType {
				continue
			}
			claims = append(claims, newClaim(model.ClaimIncidentType, reclassified, dampen(incidentTypeConfidence, hedged), trimmed, now))
			seenIncidentType = true
			continue
		}
		claims = append(claims, newClaim(model.ClaimHazard, h, dampen(hazardConfidence, hedged), trimmed, now))
	}

	return claims, nil
}

func extractIncidentType(lower string) (string, bool) {
	for _, p := range incidentTypePhrases {
		if p.re.MatchString(lower) {
			return p.value, true
		}
	}
	return "", false
}

func extractLocations(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, re := range locationRegexes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			value := strings.TrimSpace(m[1])
			key := strings.ToLower(value)
			if value == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, value)
		}
	}
	return out
}

func extractPeopleEstimate(lower string) (string, bool) {
	m := peopleRegex.FindStringSubmatch(lower)
	if m == nil {
		return "", false
	}
	token := strings.ToLower(m[1])
	if n, err := strconv.Atoi(token); err == nil {
		return strconv.Itoa(n), true
	}
	if n, ok := peopleWords[token]; ok {
		return strconv.Itoa(n), true
	}
	return "", false
}

func extractHazards(lower string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range hazardRegex.FindAllStringSubmatch(lower, -1) {
		word := strings.ToLower(m[1])
		if seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	return out
}

func dampen(confidence float64, hedged bool) float64 {
	if hedged {
		return confidence * hedgingDampening
	}
	return confidence
}

func newClaim(claimType model.ClaimType, value string, confidence float64, sourceText string, now time.Time) model.Claim {
	return model.Claim{
		ClaimType:  claimType,
		Value:      value,
		Confidence: confidence,
		SourceText: sourceText,
		Timestamp:  now,
	}
}
