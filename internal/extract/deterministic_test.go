package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/incident-evidence/internal/model"
)

func TestDeterministic_FireOnThirdFloor(t *testing.T) {
	claims, err := Deterministic{}.Extract(context.Background(), "There's a fire on the third floor.", time.Now())
	require.NoError(t, err)

	var incidentType *model.Claim
	for i := range claims {
		if claims[i].ClaimType == model.ClaimIncidentType {
			incidentType = &claims[i]
		}
	}
	require.NotNil(t, incidentType)
	assert.Equal(t, "fire", incidentType.Value)
	assert.InDelta(t, 0.7, incidentType.Confidence, 0.001)
}

func TestDeterministic_GunshotIsDistinctFromAssault(t *testing.T) {
	claims, err := Deterministic{}.Extract(context.Background(), "We heard a gunshot outside.", time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, claims)
	assert.Equal(t, "gunshot", claims[0].Value)
}

func TestDeterministic_PeopleEstimateWordMapping(t *testing.T) {
	claims, err := Deterministic{}.Extract(context.Background(), "Several people trapped inside.", time.Now())
	require.NoError(t, err)

	var people *model.Claim
	for i := range claims {
		if claims[i].ClaimType == model.ClaimPeopleEstimate {
			people = &claims[i]
		}
	}
	require.NotNil(t, people)
	assert.Equal(t, "3", people.Value)
	assert.InDelta(t, 0.6, people.Confidence, 0.001)
}

func TestDeterministic_MultipleMapsToTwo(t *testing.T) {
	claims, err := Deterministic{}.Extract(context.Background(), "Multiple people injured.", time.Now())
	require.NoError(t, err)

	var people *model.Claim
	for i := range claims {
		if claims[i].ClaimType == model.ClaimPeopleEstimate {
			people = &claims[i]
		}
	}
	require.NotNil(t, people)
	assert.Equal(t, "2", people.Value)
}

func TestDeterministic_HazardKeywords(t *testing.T) {
	claims, err := Deterministic{}.Extract(context.Background(), "There's a weapon and a suspect nearby.", time.Now())
	require.NoError(t, err)

	hazardValues := map[string]bool{}
	for _, c := range claims {
		if c.ClaimType == model.ClaimHazard {
			hazardValues[c.Value] = true
			assert.InDelta(t, 0.5, c.Confidence, 0.001)
		}
	}
	assert.True(t, hazardValues["weapon"])
	assert.True(t, hazardValues["suspect"])
}

func TestDeterministic_HazardShapedIncidentCategoryReclassifiedNotDuplicated(t *testing.T) {
	claims, err := Deterministic{}.Extract(context.Background(), "Smoke is coming from the building.", time.Now())
	require.NoError(t, err)

	var incidentTypes, hazards int
	for _, c := range claims {
		switch c.ClaimType {
		case model.ClaimIncidentType:
			incidentTypes++
			assert.Equal(t, "fire", c.Value)
		case model.ClaimHazard:
			hazards++
		}
	}
	assert.Equal(t, 1, incidentTypes)
	assert.Equal(t, 0, hazards)
}

func TestDeterministic_HedgingDampensConfidence(t *testing.T) {
	claims, err := Deterministic{}.Extract(context.Background(), "I think there's a fire somewhere.", time.Now())
	require.NoError(t, err)

	var incidentType *model.Claim
	for i := range claims {
		if claims[i].ClaimType == model.ClaimIncidentType {
			incidentType = &claims[i]
		}
	}
	require.NotNil(t, incidentType)
	assert.InDelta(t, 0.7*0.75, incidentType.Confidence, 0.001)
}

func TestDeterministic_EmptyTextReturnsNoClaims(t *testing.T) {
	claims, err := Deterministic{}.Extract(context.Background(), "   ", time.Now())
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestDeterministic_SkippedChunkHasNoIncidentContent(t *testing.T) {
	claims, err := Deterministic{}.Extract(context.Background(), "Hello, can you hear me?", time.Now())
	require.NoError(t, err)

	for _, c := range claims {
		assert.NotContains(t, []model.ClaimType{model.ClaimIncidentType, model.ClaimLocation, model.ClaimHazard}, c.ClaimType)
	}
}

func TestDeterministic_LocationFromOrdinalFloor(t *testing.T) {
	claims, err := Deterministic{}.Extract(context.Background(), "They are stuck on the second floor.", time.Now())
	require.NoError(t, err)

	var found bool
	for _, c := range claims {
		if c.ClaimType == model.ClaimLocation {
			found = true
			assert.InDelta(t, 0.55, c.Confidence, 0.001)
		}
	}
	assert.True(t, found)
}
