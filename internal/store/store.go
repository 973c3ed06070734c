// Package store holds the process-wide table of live incidents. Incidents
// are never persisted here; this is working memory for the lifetime of
// the process, and durable history goes through internal/analyticssink.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/incident-evidence/internal/apperr"
	"github.com/sells-group/incident-evidence/internal/model"
)

// Store defines the persistence operations the ingestion coordinator and
// HTTP layer need against the live incident table.
type Store interface {
	Create(ctx context.Context, repeatWindow time.Duration) (*model.Incident, error)
	Get(ctx context.Context, incidentID string) (*model.Incident, error)
	GetOrCreate(ctx context.Context, incidentID string, repeatWindow time.Duration) (inc *model.Incident, created bool, err error)
	List(ctx context.Context) ([]*model.Incident, error)
}

// MemStore is an in-process Store. Create and List take the store-wide
// lock; each incident's own mutation is serialized by model.Incident
// itself, never by this lock, so a slow Apply on one incident never
// blocks reads of another.
type MemStore struct {
	mu        sync.RWMutex
	incidents map[string]*model.Incident
}

// NewMemStore constructs an empty incident table.
func NewMemStore() *MemStore {
	return &MemStore{incidents: make(map[string]*model.Incident)}
}

// Create allocates a new incident with a fresh opaque id.
func (s *MemStore) Create(ctx context.Context, repeatWindow time.Duration) (*model.Incident, error) {
	id := newIncidentID()

	s.mu.Lock()
	defer s.mu.Unlock()
	inc := model.NewIncident(id, repeatWindow)
	s.incidents[id] = inc
	return inc, nil
}

// Get returns the incident with the given id, or apperr.UnknownIncident.
func (s *MemStore) Get(ctx context.Context, incidentID string) (*model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[incidentID]
	if !ok {
		return nil, apperr.UnknownIncident(incidentID)
	}
	return inc, nil
}

// GetOrCreate returns the incident with the given id, creating it with that
// exact id if absent. created reports whether a new incident was allocated.
func (s *MemStore) GetOrCreate(ctx context.Context, incidentID string, repeatWindow time.Duration) (*model.Incident, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inc, ok := s.incidents[incidentID]; ok {
		return inc, false, nil
	}
	inc := model.NewIncident(incidentID, repeatWindow)
	s.incidents[incidentID] = inc
	return inc, true, nil
}

// List returns every incident, most recently updated first.
func (s *MemStore) List(ctx context.Context) ([]*model.Incident, error) {
	s.mu.RLock()
	incidents := make([]*model.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		incidents = append(incidents, inc)
	}
	s.mu.RUnlock()

	sort.Slice(incidents, func(i, j int) bool {
		si, sj := incidents[i].Snapshot(), incidents[j].Snapshot()
		return si.LastUpdated.After(sj.LastUpdated)
	})
	return incidents, nil
}

func newIncidentID() string {
	return "incident-" + uuid.New().String()[:12]
}
