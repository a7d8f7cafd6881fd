package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Description string   `validate:"required"`
	MaxTokens   int      `validate:"omitempty,gt=0"`
	Budget      *float64 `validate:"omitempty,gt=0"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{Description: "hello", MaxTokens: 10})
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{})
		require.Error(t, err)

		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "validation failed", validationErr.Message)
		assert.Contains(t, validationErr.Fields["Description"], "required")
	})

	t.Run("gt violation", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{Description: "hello", MaxTokens: -1})
		require.Error(t, err)

		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Contains(t, validationErr.Fields["MaxTokens"], "greater than")
	})

	t.Run("field details mirror fields", func(t *testing.T) {
		err := ValidateStruct(&sampleRequest{})

		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))

		details := validationErr.FieldDetails()
		assert.Len(t, details, len(validationErr.Fields))
		assert.Equal(t, validationErr.Fields["Description"], details["Description"])
	})
}
