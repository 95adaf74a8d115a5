package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"crimewatch/backend/internal/errs"

	"github.com/stretchr/testify/assert"
)

func TestCodeRoundTrip(t *testing.T) {
	for _, sentinel := range []error{errs.ErrEmptyPayload, errs.ErrUploadFailed, errs.ErrInFlight, errs.ErrNotFound} {
		wrapped := fmt.Errorf("send: %w", sentinel)
		assert.Equal(t, sentinel, errs.FromCode(errs.Code(wrapped)))
	}
	assert.Equal(t, "internal", errs.Code(errors.New("boom")))
	assert.Nil(t, errs.FromCode("internal"))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, errs.IsValidation(fmt.Errorf("x: %w", errs.ErrLocationUnavailable)))
	assert.True(t, errs.IsValidation(errs.ErrEmptyPayload))
	assert.False(t, errs.IsValidation(errs.ErrDispatchFailed))
}
