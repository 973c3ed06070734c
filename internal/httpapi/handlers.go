package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/incident-evidence/internal/apperr"
	"github.com/sells-group/incident-evidence/internal/ingest"
	"github.com/sells-group/incident-evidence/internal/model"
)

const demoLocationConfidence = 0.5

type chunkRequest struct {
	Text        string         `json:"text"`
	IncidentID  string         `json:"incident_id"`
	AutoCluster bool           `json:"auto_cluster"`
	CallerID    string         `json:"caller_id"`
	CallerInfo  map[string]any `json:"caller_info"`
	DeviceLat   *float64       `json:"device_lat"`
	DeviceLng   *float64       `json:"device_lng"`
	OccurredAt  *time.Time     `json:"occurred_at"`
}

type chunkResponse struct {
	IncidentID   string         `json:"incident_id"`
	Summary      model.Snapshot `json:"summary"`
	ClaimsAdded  int            `json:"claims_added"`
	ClusterScore *float64       `json:"cluster_score,omitempty"`
	ClusterNew   *bool          `json:"cluster_new,omitempty"`
	Skipped      bool           `json:"skipped,omitempty"`
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.InvalidInput("malformed request body"))
		return
	}

	chunk := ingest.Chunk{
		Text:        req.Text,
		IncidentID:  req.IncidentID,
		AutoCluster: req.AutoCluster,
		CallerID:    req.CallerID,
		CallerInfo:  req.CallerInfo,
		DeviceLat:   req.DeviceLat,
		DeviceLng:   req.DeviceLng,
	}
	if req.OccurredAt != nil {
		chunk.OccurredAt = *req.OccurredAt
	}

	result, err := s.Coordinator.Ingest(r.Context(), chunk)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chunkResponse{
		IncidentID:   result.IncidentID,
		Summary:      result.Snapshot,
		ClaimsAdded:  result.ClaimsAdded,
		ClusterScore: result.ClusterScore,
		ClusterNew:   result.ClusterNew,
		Skipped:      result.Skipped,
	})
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := s.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc.Snapshot())
}

func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	inc, err := s.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc.Snapshot().Timeline)
}

type incidentSummary struct {
	IncidentID string          `json:"incident_id"`
	Summary    *model.Snapshot `json:"summary,omitempty"`
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	withSummaries := r.URL.Query().Get("summaries") == "true"

	incidents, err := s.Store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]incidentSummary, 0, len(incidents))
	for _, inc := range incidents {
		snap := inc.Snapshot()
		entry := incidentSummary{IncidentID: snap.IncidentID}
		if withSummaries {
			entry.Summary = &snap
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"extractor": string(s.ExtractorKind),
	})
}

type demoLocationEntry struct {
	Value string  `json:"value"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// handleDemoLocations seeds an incident with deterministic, low-confidence
// location claims carrying coordinates, for exercising the map UI without a
// real transcript. It runs through the same Apply path as extracted claims.
func (s *Server) handleDemoLocations(w http.ResponseWriter, r *http.Request) {
	incidentID := r.PathValue("id")
	inc, err := s.Store.Get(r.Context(), incidentID)
	if err != nil {
		writeError(w, err)
		return
	}

	var entries []demoLocationEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeError(w, apperr.InvalidInput("malformed request body"))
		return
	}

	now := time.Now()
	claims := make([]model.Claim, 0, len(entries))
	for _, e := range entries {
		value := e.Value
		if value == "" {
			value = "Demo location"
		}
		lat, lng := e.Lat, e.Lng
		claims = append(claims, model.Claim{
			ClaimType:  model.ClaimLocation,
			Value:      value,
			Confidence: demoLocationConfidence,
			SourceText: "[demo] simulated location",
			Timestamp:  now,
			Lat:        &lat,
			Lng:        &lng,
		})
	}

	if _, err := inc.Apply(claims, now); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inc.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("httpapi: failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.IsInvalidInput(err):
		status = http.StatusBadRequest
	case apperr.IsUnknownIncident(err):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
