package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/incident-evidence/internal/analyticssink"
	"github.com/sells-group/incident-evidence/internal/apperr"
	"github.com/sells-group/incident-evidence/internal/cluster"
	"github.com/sells-group/incident-evidence/internal/extract"
	"github.com/sells-group/incident-evidence/internal/model"
	"github.com/sells-group/incident-evidence/internal/resilience"
	"github.com/sells-group/incident-evidence/internal/store"
)

func newTestCoordinator(extractor extract.Extractor, sink analyticssink.Sink) (*Coordinator, store.Store) {
	s := store.NewMemStore()
	return &Coordinator{
		Store:     s,
		Extractor: extractor,
		ClusterEngine: &cluster.Engine{
			Embedder: cluster.NoopEmbedder{},
			Judge:    cluster.NoopJudge{},
			Config:   cluster.Config{Threshold: 0.65, Weights: cluster.DefaultWeights},
		},
		Analytics: sink,
	}, s
}

func TestIngest_RejectsEmptyText(t *testing.T) {
	c, _ := newTestCoordinator(extract.Deterministic{}, analyticssink.NoopSink{})
	_, err := c.Ingest(context.Background(), Chunk{Text: "   "})
	assert.True(t, apperr.IsInvalidInput(err))
}

func TestIngest_CreatesIncidentAndAppliesClaims(t *testing.T) {
	c, _ := newTestCoordinator(extract.Deterministic{}, analyticssink.NoopSink{})
	result, err := c.Ingest(context.Background(), Chunk{Text: "There's a fire on the third floor.", IncidentID: "incident-A"})
	require.NoError(t, err)
	assert.Equal(t, "incident-A", result.IncidentID)
	assert.False(t, result.Skipped)
	assert.Greater(t, result.ClaimsAdded, 0)
	require.NotNil(t, result.Snapshot.IncidentType)
	assert.Equal(t, "fire", result.Snapshot.IncidentType.Value)
}

func TestIngest_DefaultsToFixedIncidentIDWhenNoneSupplied(t *testing.T) {
	c, _ := newTestCoordinator(extract.Deterministic{}, analyticssink.NoopSink{})
	result, err := c.Ingest(context.Background(), Chunk{Text: "There's a fire."})
	require.NoError(t, err)
	assert.Equal(t, "incident-001", result.IncidentID)
}

func TestIngest_SkipsChunkWithNoIncidentContentDuringAutoCluster(t *testing.T) {
	c, _ := newTestCoordinator(extract.Deterministic{}, analyticssink.NoopSink{})
	result, err := c.Ingest(context.Background(), Chunk{Text: "Hello, can you hear me?", AutoCluster: true})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, result.ClaimsAdded)
}

func TestIngest_DoesNotSkipWhenIncidentIDExplicitlySupplied(t *testing.T) {
	// The skip guard only applies when clustering was requested and the
	// incident is new; with an explicit incident id and AutoCluster off,
	// the chunk is accepted.
	c, _ := newTestCoordinator(extract.Deterministic{}, analyticssink.NoopSink{})
	result, err := c.Ingest(context.Background(), Chunk{Text: "Hello, can you hear me?", IncidentID: "incident-B"})
	require.NoError(t, err)
	assert.False(t, result.Skipped)
}

func TestIngest_SynthesizesDeviceLocationClaim(t *testing.T) {
	c, _ := newTestCoordinator(extract.Deterministic{}, analyticssink.NoopSink{})
	lat, lng := 51.5, -0.12
	result, err := c.Ingest(context.Background(), Chunk{Text: "There's a fire.", IncidentID: "incident-C", DeviceLat: &lat, DeviceLng: &lng})
	require.NoError(t, err)
	require.NotNil(t, result.Snapshot.DeviceLocation)
	assert.InDelta(t, 0.95, result.Snapshot.DeviceLocation.Confidence, 0.001)
	assert.Equal(t, lat, *result.Snapshot.DeviceLocation.Lat)
}

// constantEmbedder gives every text the same vector, standing in for an
// embedding provider that rates the two reports as identical.
type constantEmbedder struct{}

func (constantEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func TestIngest_AutoClusterAssignsRepeatedFireReportToSameIncident(t *testing.T) {
	c, _ := newTestCoordinator(extract.Deterministic{}, analyticssink.NoopSink{})
	// Without an embedding signal the judge's fallback score of 0 caps the
	// combined score below the 0.65 threshold, so an embedder is supplied.
	c.ClusterEngine.Embedder = constantEmbedder{}
	lat, lng := 51.5, -0.12

	first, err := c.Ingest(context.Background(), Chunk{Text: "There's a fire on the third floor.", AutoCluster: true, DeviceLat: &lat, DeviceLng: &lng})
	require.NoError(t, err)
	require.NotNil(t, first.ClusterNew)
	assert.True(t, *first.ClusterNew)

	second, err := c.Ingest(context.Background(), Chunk{Text: "The fire is still on the third floor.", AutoCluster: true, DeviceLat: &lat, DeviceLng: &lng})
	require.NoError(t, err)
	require.NotNil(t, second.ClusterNew)
	assert.False(t, *second.ClusterNew)
	assert.Equal(t, first.IncidentID, second.IncidentID)
}

func TestIngest_InjectsCallerMetadataIntoTimeline(t *testing.T) {
	c, _ := newTestCoordinator(extract.Deterministic{}, analyticssink.NoopSink{})
	result, err := c.Ingest(context.Background(), Chunk{
		Text: "There's a fire.", IncidentID: "incident-D",
		CallerID: "caller-1", CallerInfo: map[string]any{"label": "dispatcher"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Snapshot.Timeline)
	assert.Equal(t, "caller-1", result.Snapshot.Timeline[0].CallerID)
}

type failingSink struct{}

func (failingSink) WriteSnapshot(ctx context.Context, s model.Snapshot) error { return errors.New("db down") }
func (failingSink) WriteTimelineEvent(ctx context.Context, incidentID string, e model.TimelineEvent) error {
	return errors.New("db down")
}
func (failingSink) WriteChunkEvent(ctx context.Context, e analyticssink.ChunkEvent) error {
	return errors.New("db down")
}

func TestIngest_AnalyticsFailureDoesNotFailIngest(t *testing.T) {
	c, _ := newTestCoordinator(extract.Deterministic{}, failingSink{})
	c.AnalyticsTimeout = 50 * time.Millisecond
	result, err := c.Ingest(context.Background(), Chunk{Text: "There's a fire.", IncidentID: "incident-E"})
	require.NoError(t, err)
	assert.Equal(t, "incident-E", result.IncidentID)
}

func TestIngest_AnalyticsFailureRecordsDLQEntry(t *testing.T) {
	c, _ := newTestCoordinator(extract.Deterministic{}, failingSink{})
	c.AnalyticsTimeout = 50 * time.Millisecond
	c.DLQ = NewDeadLetterQueue(10)

	_, err := c.Ingest(context.Background(), Chunk{Text: "There's a fire.", IncidentID: "incident-F"})
	require.NoError(t, err)

	entries := c.DLQ.List(resilience.DLQFilter{})
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, "incident-F", e.IncidentID)
		assert.Equal(t, "permanent", e.ErrorType)
	}
}
