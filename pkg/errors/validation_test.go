package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationErrorUnwrapsSentinel(t *testing.T) {
	sentinel := errors.New("value out of range")
	err := NewValidationError("maxEvents", -1, sentinel)

	require.ErrorIs(t, err, sentinel)
	require.True(t, IsValidationError(err))

	wrapped := NewValidationError("stage", "memory", err)
	require.ErrorIs(t, wrapped, sentinel)

	ve := GetValidationError(wrapped)
	require.NotNil(t, ve)
	require.Equal(t, "stage", ve.Field)
}
