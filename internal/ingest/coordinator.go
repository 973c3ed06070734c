// Package ingest implements the single ingestion operation the HTTP API and
// CLI both call: take one transcript chunk, run clustering and extraction,
// apply the result to an incident, and dispatch to analytics best-effort.
package ingest

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/incident-evidence/internal/analyticssink"
	"github.com/sells-group/incident-evidence/internal/apperr"
	"github.com/sells-group/incident-evidence/internal/cluster"
	"github.com/sells-group/incident-evidence/internal/extract"
	"github.com/sells-group/incident-evidence/internal/model"
	"github.com/sells-group/incident-evidence/internal/store"
)

const deviceLocationConfidence = 0.95

// Chunk is one inbound transcript fragment.
type Chunk struct {
	Text        string
	IncidentID  string
	AutoCluster bool
	CallerID    string
	CallerInfo  map[string]any
	DeviceLat   *float64
	DeviceLng   *float64
	OccurredAt  time.Time
}

// Result is what the coordinator hands back to its caller (HTTP handler or
// CLI command).
type Result struct {
	IncidentID   string
	Snapshot     model.Snapshot
	ClaimsAdded  int
	ClusterScore *float64
	ClusterNew   *bool
	Skipped      bool
}

// Coordinator wires the store, extractor, clustering engine, and analytics
// sink together into the ingest operation.
type Coordinator struct {
	Store            store.Store
	Extractor        extract.Extractor
	ClusterEngine    *cluster.Engine
	Analytics        analyticssink.Sink
	RepeatWindow     time.Duration
	AnalyticsTimeout time.Duration
	// DLQ records analytics dispatch failures for later inspection or
	// replay. Optional: nil disables recording, failures are still just
	// logged.
	DLQ *DeadLetterQueue
}

// Ingest runs the full sequence: validate, resolve/cluster the incident,
// extract claims, guard against empty chatter, synthesize device location,
// apply, and dispatch to analytics. The clock is chunk.OccurredAt (time.Now()
// when that is zero), so callers can pin it in tests.
func (c *Coordinator) Ingest(ctx context.Context, chunk Chunk) (Result, error) {
	text := strings.TrimSpace(chunk.Text)
	if text == "" {
		return Result{}, apperr.InvalidInput("text is required and cannot be empty")
	}

	now := chunk.OccurredAt
	if now.IsZero() {
		now = time.Now()
	}

	incidentID, isNew, clusterScore, clusterNew, err := c.resolveIncident(ctx, chunk, text, now)
	if err != nil {
		return Result{}, err
	}

	claims, err := c.Extractor.Extract(ctx, chunk.Text, now)
	if err != nil {
		zap.L().Warn("ingest: extraction failed", zap.Error(err), zap.String("incident_id", incidentID))
		claims = nil
	}

	if isNew && chunk.AutoCluster && !hasActionableClaim(claims) {
		zap.L().Info("ingest: skipping chunk with no incident content", zap.String("incident_id", incidentID))
		result := Result{IncidentID: incidentID, Skipped: true}
		if clusterScore != nil {
			result.ClusterScore = clusterScore
		}
		if clusterNew != nil {
			result.ClusterNew = clusterNew
		}
		timeout := c.AnalyticsTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		bctx, cancel := context.WithTimeout(ctx, timeout)
		c.dispatchChunkEvent(bctx, incidentID, text, clusterScore, clusterNew, chunk)
		cancel()
		return result, nil
	}

	if chunk.DeviceLat != nil && chunk.DeviceLng != nil {
		claims = append(claims, model.Claim{
			ClaimType:  model.ClaimDeviceLocation,
			Value:      deviceLocationValue(*chunk.DeviceLat, *chunk.DeviceLng),
			Confidence: deviceLocationConfidence,
			SourceText: "device-reported location",
			Timestamp:  now,
			Lat:        chunk.DeviceLat,
			Lng:        chunk.DeviceLng,
		})
	}

	if chunk.CallerID != "" || chunk.CallerInfo != nil {
		for i := range claims {
			if chunk.CallerID != "" {
				claims[i].CallerID = chunk.CallerID
			}
			if chunk.CallerInfo != nil {
				claims[i].CallerInfo = chunk.CallerInfo
			}
		}
	}

	inc, err := c.Store.Get(ctx, incidentID)
	if err != nil {
		return Result{}, err
	}

	added, err := inc.Apply(claims, now)
	if err != nil {
		return Result{}, err
	}
	snapshot := inc.Snapshot()

	result := Result{
		IncidentID:  incidentID,
		Snapshot:    snapshot,
		ClaimsAdded: added,
	}
	if clusterScore != nil {
		result.ClusterScore = clusterScore
	}
	if clusterNew != nil {
		result.ClusterNew = clusterNew
	}

	c.dispatchAnalytics(ctx, snapshot, claims, text, clusterScore, clusterNew, chunk)

	return result, nil
}

// resolveIncident implements ingest step 2: either cluster the report onto
// an existing (or new) incident, or resolve the caller-supplied id.
func (c *Coordinator) resolveIncident(ctx context.Context, chunk Chunk, text string, now time.Time) (incidentID string, isNew bool, clusterScore *float64, clusterNew *bool, err error) {
	if chunk.AutoCluster && chunk.IncidentID == "" {
		quickClaims, qerr := c.Extractor.Extract(ctx, chunk.Text, now)
		if qerr != nil {
			quickClaims = nil
		}
		reportSummary := quickSummary(quickClaims, text, chunk.DeviceLat, chunk.DeviceLng)

		existing, lerr := c.Store.List(ctx)
		if lerr != nil {
			return "", false, nil, nil, lerr
		}
		candidates := make([]cluster.Candidate, 0, len(existing))
		for _, inc := range existing {
			snap := inc.Snapshot()
			candidates = append(candidates, cluster.Candidate{
				IncidentID:  snap.IncidentID,
				SummaryText: snap.SummaryText(),
				LastUpdated: snap.LastUpdated,
				Lat:         deviceLat(snap),
				Lng:         deviceLng(snap),
			})
		}

		decision := c.ClusterEngine.Assign(ctx, reportSummary, now, chunk.DeviceLat, chunk.DeviceLng, candidates)
		score := decision.Score
		isNewDecision := decision.IsNew

		if isNewDecision {
			inc, cerr := c.Store.Create(ctx, c.RepeatWindow)
			if cerr != nil {
				return "", false, nil, nil, cerr
			}
			return inc.IncidentID, true, &score, &isNewDecision, nil
		}
		return decision.IncidentID, false, &score, &isNewDecision, nil
	}

	incidentID = chunk.IncidentID
	if incidentID == "" {
		incidentID = "incident-001"
	}
	_, created, gerr := c.Store.GetOrCreate(ctx, incidentID, c.RepeatWindow)
	if gerr != nil {
		return "", false, nil, nil, gerr
	}
	return incidentID, created, nil, nil, nil
}

func hasActionableClaim(claims []model.Claim) bool {
	for _, c := range claims {
		switch c.ClaimType {
		case model.ClaimIncidentType, model.ClaimLocation, model.ClaimHazard:
			return true
		}
	}
	return false
}

func deviceLocationValue(lat, lng float64) string {
	return "device location"
}

func deviceLat(s model.Snapshot) *float64 {
	if s.DeviceLocation != nil {
		return s.DeviceLocation.Lat
	}
	return nil
}

func deviceLng(s model.Snapshot) *float64 {
	if s.DeviceLocation != nil {
		return s.DeviceLocation.Lng
	}
	return nil
}

// quickSummary composes the same kind of summary text as model.Snapshot's
// SummaryText, from a quick extraction pass over the raw chunk, so a brand
// new report can be compared against existing incident summaries before
// any incident exists for it.
func quickSummary(claims []model.Claim, chunkPreview string, lat, lng *float64) string {
	var sb strings.Builder
	for _, c := range claims {
		switch c.ClaimType {
		case model.ClaimIncidentType, model.ClaimLocation, model.ClaimHazard:
			sb.WriteString(c.Value)
			sb.WriteString(". ")
		}
	}
	if sb.Len() == 0 {
		preview := chunkPreview
		if len(preview) > 200 {
			preview = preview[:200]
		}
		sb.WriteString(preview)
	}
	if lat != nil && lng != nil {
		sb.WriteString("device location. ")
	}
	return sb.String()
}

// dispatchAnalytics writes best-effort: every call is bounded by
// AnalyticsTimeout (default 2s) and its error is logged, never returned, so
// a dead warehouse never fails or delays the caller's response beyond that
// bound.
func (c *Coordinator) dispatchAnalytics(ctx context.Context, snapshot model.Snapshot, claims []model.Claim, text string, clusterScore *float64, clusterNew *bool, chunk Chunk) {
	if c.Analytics == nil {
		return
	}
	timeout := c.AnalyticsTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.Analytics.WriteSnapshot(bctx, snapshot); err != nil {
		c.recordAnalyticsFailure(snapshot.IncidentID, text, "write_snapshot", err)
	}
	for _, claim := range claims {
		event := model.TimelineEvent{
			Time: claim.Timestamp, ClaimType: claim.ClaimType, Value: claim.Value,
			Confidence: claim.Confidence, SourceText: claim.SourceText, CallerID: claim.CallerID,
		}
		if err := c.Analytics.WriteTimelineEvent(bctx, snapshot.IncidentID, event); err != nil {
			c.recordAnalyticsFailure(snapshot.IncidentID, text, "write_timeline_event", err)
		}
	}
	c.dispatchChunkEvent(bctx, snapshot.IncidentID, text, clusterScore, clusterNew, chunk)
}

func (c *Coordinator) dispatchChunkEvent(ctx context.Context, incidentID, text string, clusterScore *float64, clusterNew *bool, chunk Chunk) {
	if c.Analytics == nil {
		return
	}
	preview := text
	if len(preview) > 200 {
		preview = preview[:200]
	}
	event := analyticssink.ChunkEvent{
		IncidentID:   incidentID,
		ChunkPreview: preview,
		DeviceLat:    chunk.DeviceLat,
		DeviceLng:    chunk.DeviceLng,
		CallerID:     chunk.CallerID,
	}
	if clusterScore != nil {
		event.ClusterScore = *clusterScore
	}
	if clusterNew != nil {
		event.ClusterNew = *clusterNew
	}
	if err := c.Analytics.WriteChunkEvent(ctx, event); err != nil {
		c.recordAnalyticsFailure(incidentID, text, "write_chunk_event", err)
	}
}

// recordAnalyticsFailure logs an analytics dispatch failure at Warn (an
// AnalyticsFailure per spec.md §7: internal, never surfaced to the caller)
// and, if a DLQ is configured, records it for later inspection or replay.
func (c *Coordinator) recordAnalyticsFailure(incidentID, chunkText, phase string, err error) {
	zap.L().Warn("analytics dispatch failed", zap.Error(err), zap.String("incident_id", incidentID), zap.String("phase", phase))
	if c.DLQ == nil {
		return
	}
	preview := chunkText
	if len(preview) > 200 {
		preview = preview[:200]
	}
	c.DLQ.Add(incidentID, preview, phase, err)
}
