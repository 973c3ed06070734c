package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeProximityScore_Table(t *testing.T) {
	now := time.Now()
	cases := []struct {
		gap  time.Duration
		want float64
	}{
		{30 * time.Minute, 1.0},
		{time.Hour, 1.0},
		{3 * time.Hour, 0.8},
		{6 * time.Hour, 0.8},
		{12 * time.Hour, 0.6},
		{24 * time.Hour, 0.6},
		{3 * 24 * time.Hour, 0.3},
		{7 * 24 * time.Hour, 0.3},
		{8 * 24 * time.Hour, 0.1},
	}
	for _, tc := range cases {
		got := TimeProximityScore(now, now.Add(-tc.gap))
		assert.InDelta(t, tc.want, got, 0.0001, "gap=%v", tc.gap)
	}
}

func TestTimeProximityScore_FutureLastUpdatedUsesAbsoluteGap(t *testing.T) {
	now := time.Now()
	got := TimeProximityScore(now, now.Add(30*time.Minute))
	assert.InDelta(t, 1.0, got, 0.0001)
}
