// Package model defines the incident-evidence data model: ConfidenceValue,
// LocationValue, Claim, TimelineEvent, and the Incident aggregate that
// applies claims under a per-incident lock.
package model

import "time"

// ClaimType enumerates the fixed schema of extractable incident attributes.
type ClaimType string

const (
	ClaimLocation       ClaimType = "location"
	ClaimIncidentType   ClaimType = "incident_type"
	ClaimPeopleEstimate ClaimType = "people_estimate"
	ClaimHazard         ClaimType = "hazard"
	ClaimDeviceLocation ClaimType = "device_location"
)

// ConfidenceValue is the base value type carried by every claim: a value,
// a confidence in [0,1], the text it was extracted from, and when it was
// observed.
type ConfidenceValue struct {
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	SourceText string    `json:"source_text,omitempty"`
	Time       time.Time `json:"time"`
}

// LocationValue extends ConfidenceValue with optional WGS84 coordinates and
// a flag distinguishing a device-reported fix from a text-extracted place.
type LocationValue struct {
	ConfidenceValue
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	DeviceSource bool     `json:"device_source"`
}

// HasCoords reports whether both latitude and longitude are set.
func (l LocationValue) HasCoords() bool {
	return l.Lat != nil && l.Lng != nil
}

// Claim is a single extracted assertion about an incident, ready to be
// applied to the aggregate.
type Claim struct {
	ClaimType  ClaimType
	Value      string // canonical-ready raw value; numeric claims encode as decimal strings
	Confidence float64
	SourceText string
	Timestamp  time.Time
	Lat        *float64
	Lng        *float64
	CallerID   string
	CallerInfo map[string]any
}

// TimelineEvent records one applied claim in receive order. The timeline is
// an audit trail: every applied claim produces exactly one event, even if
// it did not raise the stored confidence; a dropped invalid claim produces
// none.
type TimelineEvent struct {
	Time       time.Time      `json:"time"`
	ClaimType  ClaimType      `json:"claim_type"`
	Value      string         `json:"value"`
	Confidence float64        `json:"confidence"`
	SourceText string         `json:"source_text"`
	CallerID   string         `json:"caller_id,omitempty"`
	CallerInfo map[string]any `json:"caller_info,omitempty"`
}
