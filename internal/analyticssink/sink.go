// Package analyticssink dispatches incident state to a durable warehouse for
// offline querying. Dispatch is always best-effort: the caller logs a sink
// failure at Warn, and it never blocks or fails an ingest response.
package analyticssink

import (
	"context"

	"github.com/sells-group/incident-evidence/internal/model"
)

// ChunkEvent records one processed transcript chunk, independent of whether
// it produced any claims.
type ChunkEvent struct {
	IncidentID   string
	ChunkPreview string
	ClusterScore float64
	ClusterNew   bool
	DeviceLat    *float64
	DeviceLng    *float64
	CallerID     string
}

// Sink receives incident snapshots, individual timeline events, and chunk
// events as they occur. Implementations must not block the caller for long;
// NewPostgresSink wraps writes in a circuit breaker for that reason.
type Sink interface {
	WriteSnapshot(ctx context.Context, snapshot model.Snapshot) error
	WriteTimelineEvent(ctx context.Context, incidentID string, event model.TimelineEvent) error
	WriteChunkEvent(ctx context.Context, event ChunkEvent) error
}

// NoopSink discards everything. It is the default when no analytics
// database URL is configured.
type NoopSink struct{}

func (NoopSink) WriteSnapshot(ctx context.Context, snapshot model.Snapshot) error   { return nil }
func (NoopSink) WriteTimelineEvent(ctx context.Context, incidentID string, event model.TimelineEvent) error {
	return nil
}
func (NoopSink) WriteChunkEvent(ctx context.Context, event ChunkEvent) error { return nil }
