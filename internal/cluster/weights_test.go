package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWeights_Valid(t *testing.T) {
	w := ParseWeights("0.4,0.4,0.1,0.1")
	assert.InDelta(t, 0.4, w.Embedding, 0.001)
	assert.InDelta(t, 0.4, w.LLM, 0.001)
	assert.InDelta(t, 0.1, w.Time, 0.001)
	assert.InDelta(t, 0.1, w.Geo, 0.001)
}

func TestParseWeights_EmptyFallsBackToDefault(t *testing.T) {
	w := ParseWeights("")
	assert.Equal(t, DefaultWeights, w)
}

func TestParseWeights_WrongPartCountFallsBackToDefault(t *testing.T) {
	w := ParseWeights("0.5,0.5")
	assert.Equal(t, DefaultWeights, w)
}

func TestParseWeights_DoesNotSumToOneFallsBackToDefault(t *testing.T) {
	w := ParseWeights("0.5,0.5,0.5,0.5")
	assert.Equal(t, DefaultWeights, w)
}

func TestParseWeights_NonNumericFallsBackToDefault(t *testing.T) {
	w := ParseWeights("a,b,c,d")
	assert.Equal(t, DefaultWeights, w)
}
