package analyticssink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/incident-evidence/internal/model"
	"github.com/sells-group/incident-evidence/internal/resilience"
)

// TableNames overrides the default warehouse table names.
type TableNames struct {
	Snapshots string
	Timeline  string
	Chunks    string
}

func (t TableNames) withDefaults() TableNames {
	if t.Snapshots == "" {
		t.Snapshots = "incident_snapshots"
	}
	if t.Timeline == "" {
		t.Timeline = "timeline_events"
	}
	if t.Chunks == "" {
		t.Chunks = "chunk_events"
	}
	return t
}

// PostgresSink writes incident state to a Postgres warehouse for offline
// querying. Every write goes through a circuit breaker: once the warehouse
// is unreachable, writes fail fast instead of piling up behind a dead
// connection pool.
type PostgresSink struct {
	pool    *pgxpool.Pool
	tables  TableNames
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	closeFn func()
}

// NewPostgresSink opens a connection pool against connString and ensures the
// warehouse tables exist.
func NewPostgresSink(ctx context.Context, connString string, tables TableNames, timeout time.Duration) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "analyticssink: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "analyticssink: ping")
	}

	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	sink := &PostgresSink{
		pool:    pool,
		tables:  tables.withDefaults(),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		timeout: timeout,
		closeFn: pool.Close,
	}

	if err := sink.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return sink, nil
}

func (s *PostgresSink) migrate(ctx context.Context) error {
	migration := `
CREATE TABLE IF NOT EXISTS ` + s.tables.Snapshots + ` (
	incident_id   TEXT PRIMARY KEY,
	last_updated  TIMESTAMPTZ NOT NULL,
	snapshot_json JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_` + s.tables.Snapshots + `_last_updated ON ` + s.tables.Snapshots + `(last_updated);

CREATE TABLE IF NOT EXISTS ` + s.tables.Timeline + ` (
	id          TEXT PRIMARY KEY,
	incident_id TEXT NOT NULL,
	event_time  TIMESTAMPTZ NOT NULL,
	claim_type  TEXT NOT NULL,
	value       TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	source_text TEXT,
	caller_id   TEXT
);

CREATE INDEX IF NOT EXISTS idx_` + s.tables.Timeline + `_incident_id ON ` + s.tables.Timeline + `(incident_id);

CREATE TABLE IF NOT EXISTS ` + s.tables.Chunks + ` (
	id             TEXT PRIMARY KEY,
	incident_id    TEXT NOT NULL,
	chunk_preview  TEXT NOT NULL,
	cluster_score  DOUBLE PRECISION NOT NULL,
	cluster_new    BOOLEAN NOT NULL,
	device_lat     DOUBLE PRECISION,
	device_lng     DOUBLE PRECISION,
	caller_id      TEXT,
	ingested_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_` + s.tables.Chunks + `_incident_id ON ` + s.tables.Chunks + `(incident_id);
`
	_, err := s.pool.Exec(ctx, migration)
	return eris.Wrap(err, "analyticssink: migrate")
}

// Close releases the connection pool.
func (s *PostgresSink) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

func (s *PostgresSink) WriteSnapshot(ctx context.Context, snapshot model.Snapshot) error {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return eris.Wrap(err, "analyticssink: marshal snapshot")
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.breaker.Execute(cctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO `+s.tables.Snapshots+` (incident_id, last_updated, snapshot_json)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (incident_id) DO UPDATE SET last_updated = $2, snapshot_json = $3`,
			snapshot.IncidentID, snapshot.LastUpdated, snapshotJSON,
		)
		return eris.Wrapf(err, "analyticssink: write snapshot %s", snapshot.IncidentID)
	})
}

func (s *PostgresSink) WriteTimelineEvent(ctx context.Context, incidentID string, event model.TimelineEvent) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.breaker.Execute(cctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO `+s.tables.Timeline+` (id, incident_id, event_time, claim_type, value, confidence, source_text, caller_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New().String(), incidentID, event.Time, string(event.ClaimType), event.Value, event.Confidence, event.SourceText, event.CallerID,
		)
		return eris.Wrapf(err, "analyticssink: write timeline event %s", incidentID)
	})
}

func (s *PostgresSink) WriteChunkEvent(ctx context.Context, event ChunkEvent) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.breaker.Execute(cctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO `+s.tables.Chunks+` (id, incident_id, chunk_preview, cluster_score, cluster_new, device_lat, device_lng, caller_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New().String(), event.IncidentID, event.ChunkPreview, event.ClusterScore, event.ClusterNew, event.DeviceLat, event.DeviceLng, event.CallerID,
		)
		return eris.Wrapf(err, "analyticssink: write chunk event %s", event.IncidentID)
	})
}
