// Package httpapi exposes the ingestion coordinator and incident store over
// HTTP: POST /chunk to ingest, GET routes to read incident state.
package httpapi

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/sells-group/incident-evidence/internal/extract"
	"github.com/sells-group/incident-evidence/internal/ingest"
	"github.com/sells-group/incident-evidence/internal/store"
)

// Server bundles the dependencies the HTTP handlers need.
type Server struct {
	Coordinator   *ingest.Coordinator
	Store         store.Store
	ExtractorKind extract.Kind
}

// Handler builds the routed, CORS-wrapped http.Handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chunk", s.handleChunk)
	mux.HandleFunc("GET /incident/{id}", s.handleGetIncident)
	mux.HandleFunc("GET /incident/{id}/timeline", s.handleGetTimeline)
	mux.HandleFunc("POST /incident/{id}/demo-locations", s.handleDemoLocations)
	mux.HandleFunc("GET /incidents", s.handleListIncidents)
	mux.HandleFunc("GET /health", s.handleHealth)

	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})(mux)
}
