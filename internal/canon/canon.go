// Package canon computes the canonical merge key for claim values, per
// NFC-normalized, trimmed, lowercased, whitespace-collapsed
// strings, with a small synonym table for incident types and hazards.
package canon

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Synonyms maps a canonicalized-but-not-yet-mapped string to its final
// canonical form. Populated with sensible defaults but is a
// plain map, not a hard-coded switch, so callers can extend or replace it.
var Synonyms = map[string]string{
	"gun shot":     "gunshot",
	"gun shots":    "gunshot",
	"gunshots":     "gunshot",
	"shooting":     "gunshot",
	"heart attack": "medical",
	"break in":     "break-in",
	"breakin":      "break-in",
}

// String canonicalizes a text value: NFC normalize, trim, lowercase,
// collapse internal whitespace, then apply the synonym table. Returns ""
// for input that canonicalizes to nothing usable (e.g. all whitespace).
func String(s string) string {
	normalized := norm.NFC.String(s)
	normalized = strings.ToLower(strings.TrimSpace(normalized))
	normalized = collapseWhitespace(normalized)
	if normalized == "" {
		return ""
	}
	if mapped, ok := Synonyms[normalized]; ok {
		return mapped
	}
	return normalized
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// PeopleEstimate canonicalizes a people count to its nearest non-negative
// integer and returns both the rounded value and its canonical string key.
func PeopleEstimate(n float64) (rounded int, key string) {
	if n < 0 {
		n = 0
	}
	rounded = int(math.Round(n))
	return rounded, fmt.Sprintf("%d", rounded)
}

// RoundedPeopleEstimate parses a people_estimate claim value (as produced by
// either extractor, which may carry a fractional string from an LLM) and
// returns it rounded to the nearest non-negative integer, per §4.1. Values
// that fail to parse as a number are returned unchanged so they still reach
// String's canonicalization and, if truly unusable, get dropped there.
func RoundedPeopleEstimate(value string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return value
	}
	_, key := PeopleEstimate(f)
	return key
}

// Idempotent reports whether canonicalizing s twice yields the same result.
func Idempotent(s string) bool {
	once := String(s)
	twice := String(once)
	return once == twice
}
