package model

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/incident-evidence/internal/apperr"
	"github.com/sells-group/incident-evidence/internal/canon"
	"github.com/sells-group/incident-evidence/internal/merge"
)

// Incident is the per-incident aggregate: current summary per attribute,
// the append-only timeline, device geolocation, and caller metadata. All
// mutation goes through Apply, which is serialized by mu.
type Incident struct {
	mu sync.Mutex

	IncidentID     string
	Locations      []LocationValue
	locationByKey  map[string]int       // canonical value -> index into Locations
	locationAt     map[string]time.Time // canonical value -> last-seen time, for repeat boost
	IncidentType   *ConfidenceValue
	incidentTypeAt map[string]time.Time // canonical key -> last-seen time, for repeat boost
	PeopleEstimate *ConfidenceValue
	peopleAt       map[string]time.Time
	Hazards        []ConfidenceValue
	hazardByKey    map[string]int
	hazardAt       map[string]time.Time
	DeviceLocation *LocationValue
	deviceAt       map[string]time.Time // single slot "device" -> last-seen time
	Timeline       []TimelineEvent
	LastUpdated    time.Time
	Callers        map[string]map[string]any

	repeatWindow time.Duration
}

// NewIncident constructs an empty Incident ready to accept claims.
func NewIncident(id string, repeatWindow time.Duration) *Incident {
	if repeatWindow <= 0 {
		repeatWindow = merge.RepeatWindow
	}
	return &Incident{
		IncidentID:     id,
		locationByKey:  make(map[string]int),
		locationAt:     make(map[string]time.Time),
		incidentTypeAt: make(map[string]time.Time),
		peopleAt:       make(map[string]time.Time),
		hazardByKey:    make(map[string]int),
		hazardAt:       make(map[string]time.Time),
		deviceAt:       make(map[string]time.Time),
		Callers:        make(map[string]map[string]any),
		repeatWindow:   repeatWindow,
	}
}

// Apply applies a batch of claims atomically under the incident lock.
// Returns the number of timeline events appended.
func (inc *Incident) Apply(claims []Claim, now time.Time) (added int, err error) {
	inc.mu.Lock()
	defer inc.mu.Unlock()

	for _, claim := range claims {
		if inc.applyOne(claim, now) {
			added++
		}
	}

	latest := now
	for _, c := range claims {
		if c.Timestamp.After(latest) {
			latest = c.Timestamp
		}
	}
	if latest.After(inc.LastUpdated) {
		inc.LastUpdated = latest
	}

	return added, nil
}

// applyOne applies a single claim. It returns false, recording nothing, when
// the claim is dropped: confidence outside [0,1], a value with no canonical
// form, or an unknown claim type.
func (inc *Incident) applyOne(claim Claim, now time.Time) bool {
	if claim.Confidence < 0 || claim.Confidence > 1 {
		err := apperr.InvalidClaim("confidence", fmt.Errorf("confidence %v out of [0,1]", claim.Confidence))
		zap.L().Warn("dropping claim", zap.Error(err), zap.String("incident_id", inc.IncidentID), zap.String("claim_type", string(claim.ClaimType)))
		return false
	}

	if claim.ClaimType == ClaimPeopleEstimate {
		claim.Value = canon.RoundedPeopleEstimate(claim.Value)
	}
	if claim.ClaimType != ClaimDeviceLocation && canon.String(claim.Value) == "" {
		err := apperr.InvalidClaim("value", fmt.Errorf("value %q has no canonical form", claim.Value))
		zap.L().Warn("dropping claim", zap.Error(err), zap.String("incident_id", inc.IncidentID), zap.String("claim_type", string(claim.ClaimType)))
		return false
	}

	switch claim.ClaimType {
	case ClaimLocation:
		inc.applyLocation(claim, now)
	case ClaimIncidentType:
		inc.applySingleValued(claim, now, &inc.IncidentType, inc.incidentTypeAt)
	case ClaimPeopleEstimate:
		inc.applySingleValued(claim, now, &inc.PeopleEstimate, inc.peopleAt)
	case ClaimHazard:
		inc.applyHazard(claim, now)
	case ClaimDeviceLocation:
		inc.applyDeviceLocation(claim, now)
	default:
		return false
	}

	inc.appendTimeline(claim, now)

	if claim.CallerID != "" {
		if _, seen := inc.Callers[claim.CallerID]; !seen {
			inc.Callers[claim.CallerID] = claim.CallerInfo
		}
	}

	return true
}

func (inc *Incident) appendTimeline(claim Claim, now time.Time) {
	ts := claim.Timestamp
	if ts.IsZero() {
		ts = now
	}
	inc.Timeline = append(inc.Timeline, TimelineEvent{
		Time:       ts,
		ClaimType:  claim.ClaimType,
		Value:      claim.Value,
		Confidence: claim.Confidence,
		SourceText: claim.SourceText,
		CallerID:   claim.CallerID,
		CallerInfo: claim.CallerInfo,
	})
}

func (inc *Incident) applyLocation(claim Claim, now time.Time) {
	key := canon.String(claim.Value)
	if key == "" {
		return
	}

	observation := merge.BoostIfRepeated(claim.Confidence, inc.locationAt[key], claim.Timestamp, inc.repeatWindow)

	if idx, ok := inc.locationByKey[key]; ok {
		existing := &inc.Locations[idx]
		existing.Confidence = merge.Bayesian(existing.Confidence, observation)
		existing.Time = ts(claim, now)
		existing.SourceText = claim.SourceText
		if claim.Lat != nil && claim.Lng != nil {
			existing.Lat, existing.Lng = claim.Lat, claim.Lng
		}
	} else {
		lv := LocationValue{
			ConfidenceValue: ConfidenceValue{
				Value:      key,
				Confidence: merge.Clamp(observation),
				SourceText: claim.SourceText,
				Time:       ts(claim, now),
			},
			Lat: claim.Lat,
			Lng: claim.Lng,
		}
		inc.Locations = append(inc.Locations, lv)
		inc.locationByKey[key] = len(inc.Locations) - 1
	}

	inc.locationAt[key] = ts(claim, now)
}

func (inc *Incident) applyHazard(claim Claim, now time.Time) {
	key := canon.String(claim.Value)
	if key == "" {
		return
	}

	observation := merge.BoostIfRepeated(claim.Confidence, inc.hazardAt[key], claim.Timestamp, inc.repeatWindow)

	if idx, ok := inc.hazardByKey[key]; ok {
		existing := &inc.Hazards[idx]
		existing.Confidence = merge.Bayesian(existing.Confidence, observation)
		existing.Time = ts(claim, now)
		existing.SourceText = claim.SourceText
	} else {
		cv := ConfidenceValue{
			Value:      key,
			Confidence: merge.Clamp(observation),
			SourceText: claim.SourceText,
			Time:       ts(claim, now),
		}
		inc.Hazards = append(inc.Hazards, cv)
		inc.hazardByKey[key] = len(inc.Hazards) - 1
	}

	inc.hazardAt[key] = ts(claim, now)
}

// applySingleValued implements the incident_type / people_estimate merge
// rule: per-canonical-key Bayesian accumulation, with cross-key replacement
// gated by the margin/staleness replacement rule.
func (inc *Incident) applySingleValued(claim Claim, now time.Time, slot **ConfidenceValue, lastSeenByKey map[string]time.Time) {
	key := canon.String(claim.Value)
	if key == "" {
		return
	}

	observation := merge.BoostIfRepeated(claim.Confidence, lastSeenByKey[key], claim.Timestamp, inc.repeatWindow)
	lastSeenByKey[key] = ts(claim, now)

	current := *slot
	if current == nil {
		*slot = &ConfidenceValue{
			Value:      key,
			Confidence: merge.Clamp(observation),
			SourceText: claim.SourceText,
			Time:       ts(claim, now),
		}
		return
	}

	if current.Value == key {
		current.Confidence = merge.Bayesian(current.Confidence, observation)
		current.Time = ts(claim, now)
		current.SourceText = claim.SourceText
		return
	}

	// Different canonical value: the challenger's own confidence (after its
	// own repeat boost) competes for the slot under the replacement rule.
	challengerConfidence := merge.Clamp(observation)
	if merge.ShouldReplace(current.Confidence, current.Time, challengerConfidence, ts(claim, now)) {
		*slot = &ConfidenceValue{
			Value:      key,
			Confidence: challengerConfidence,
			SourceText: claim.SourceText,
			Time:       ts(claim, now),
		}
	}
	// Otherwise the incumbent is kept; the claim still appended a timeline
	// event above (audit trail), it just did not win the slot.
}

func (inc *Incident) applyDeviceLocation(claim Claim, now time.Time) {
	key := "device"
	observation := merge.BoostIfRepeated(claim.Confidence, inc.deviceAt[key], claim.Timestamp, inc.repeatWindow)
	inc.deviceAt[key] = ts(claim, now)

	if inc.DeviceLocation == nil {
		inc.DeviceLocation = &LocationValue{
			ConfidenceValue: ConfidenceValue{
				Value:      claim.Value,
				Confidence: merge.Clamp(observation),
				SourceText: claim.SourceText,
				Time:       ts(claim, now),
			},
			Lat:          claim.Lat,
			Lng:          claim.Lng,
			DeviceSource: true,
		}
		return
	}

	challengerConfidence := merge.Clamp(observation)
	if merge.ShouldReplace(inc.DeviceLocation.Confidence, inc.DeviceLocation.Time, challengerConfidence, ts(claim, now)) {
		inc.DeviceLocation = &LocationValue{
			ConfidenceValue: ConfidenceValue{
				Value:      claim.Value,
				Confidence: challengerConfidence,
				SourceText: claim.SourceText,
				Time:       ts(claim, now),
			},
			Lat:          claim.Lat,
			Lng:          claim.Lng,
			DeviceSource: true,
		}
	} else {
		inc.DeviceLocation.Confidence = merge.Bayesian(inc.DeviceLocation.Confidence, observation)
		inc.DeviceLocation.Time = ts(claim, now)
		if claim.Lat != nil && claim.Lng != nil {
			inc.DeviceLocation.Lat, inc.DeviceLocation.Lng = claim.Lat, claim.Lng
		}
	}
}

func ts(claim Claim, now time.Time) time.Time {
	if claim.Timestamp.IsZero() {
		return now
	}
	return claim.Timestamp
}
