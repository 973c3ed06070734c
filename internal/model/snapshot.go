package model

import "time"

// Snapshot is the serializable view of an incident's current summary plus
// timeline, returned by the ingestion coordinator and the HTTP GET routes.
type Snapshot struct {
	IncidentID     string                    `json:"incident_id"`
	Locations      []LocationValue           `json:"locations"`
	IncidentType   *ConfidenceValue          `json:"incident_type,omitempty"`
	PeopleEstimate *ConfidenceValue          `json:"people_estimate,omitempty"`
	Hazards        []ConfidenceValue         `json:"hazards"`
	DeviceLocation *LocationValue            `json:"device_location,omitempty"`
	Timeline       []TimelineEvent           `json:"timeline"`
	LastUpdated    time.Time                 `json:"last_updated"`
	Callers        map[string]map[string]any `json:"callers,omitempty"`
}

// Snapshot returns a consistent, independently-owned copy of the incident's
// current state. Callers must not hold the incident lock across a network
// call, so Snapshot is taken, then the lock released, before any I/O.
func (inc *Incident) Snapshot() Snapshot {
	inc.mu.Lock()
	defer inc.mu.Unlock()

	locations := make([]LocationValue, len(inc.Locations))
	copy(locations, inc.Locations)

	hazards := make([]ConfidenceValue, len(inc.Hazards))
	copy(hazards, inc.Hazards)

	timeline := make([]TimelineEvent, len(inc.Timeline))
	copy(timeline, inc.Timeline)

	callers := make(map[string]map[string]any, len(inc.Callers))
	for k, v := range inc.Callers {
		callers[k] = v
	}

	copyValue := func(c *ConfidenceValue) *ConfidenceValue {
		if c == nil {
			return nil
		}
		v := *c
		return &v
	}
	var deviceLocation *LocationValue
	if inc.DeviceLocation != nil {
		v := *inc.DeviceLocation
		deviceLocation = &v
	}

	return Snapshot{
		IncidentID:     inc.IncidentID,
		Locations:      locations,
		IncidentType:   copyValue(inc.IncidentType),
		PeopleEstimate: copyValue(inc.PeopleEstimate),
		Hazards:        hazards,
		DeviceLocation: deviceLocation,
		Timeline:       timeline,
		LastUpdated:    inc.LastUpdated,
		Callers:        callers,
	}
}

// SummaryText composes the text the clustering engine embeds and hands to
// the same-incident judge: incident_type, locations, hazards, device geo.
func (s Snapshot) SummaryText() string {
	text := ""
	if s.IncidentType != nil {
		text += s.IncidentType.Value + ". "
	}
	for _, l := range s.Locations {
		text += l.Value + ". "
	}
	for _, h := range s.Hazards {
		text += h.Value + ". "
	}
	if s.DeviceLocation != nil {
		text += s.DeviceLocation.Value + ". "
	}
	return text
}
