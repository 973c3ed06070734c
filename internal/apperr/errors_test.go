package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidInput_IsDetected(t *testing.T) {
	err := InvalidInput("text must not be empty")
	assert.True(t, IsInvalidInput(err))
	assert.False(t, IsUnknownIncident(err))
	assert.False(t, IsInvalidClaim(err))
}

func TestUnknownIncident_IsDetected(t *testing.T) {
	err := UnknownIncident("incident-deadbeef0000")
	assert.True(t, IsUnknownIncident(err))
	assert.Contains(t, err.Error(), "incident-deadbeef0000")
}

func TestInvalidClaim_IsDetected(t *testing.T) {
	err := InvalidClaim("people_estimate", errors.New("negative count"))
	assert.True(t, IsInvalidClaim(err))
	assert.Contains(t, err.Error(), "people_estimate")
	assert.Contains(t, err.Error(), "negative count")
}

func TestWrappedErrorsAreStillDetected(t *testing.T) {
	base := InvalidInput("bad request")
	plainWrap := errors.New("handler: " + base.Error())
	assert.False(t, IsInvalidInput(plainWrap), "plain string wrap loses type, sanity check")

	chainWrap := fmt.Errorf("handler: %w", base)
	assert.True(t, IsInvalidInput(chainWrap))
}
