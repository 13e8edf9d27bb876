package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsUnwrap(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"not found", NotFound("user", "42"), ErrNotFound},
		{"validation", ValidationFailed("email", "bad email"), ErrValidation},
		{"conflict", Conflict("taken"), ErrConflict},
		{"forbidden", Forbidden("premium only"), ErrForbidden},
		{"unauthorized", Unauthorized("invalid credentials"), ErrUnauthorized},
		{"upstream", Upstream("model failed", errors.New("boom")), ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
		})
	}
}

func TestUpstreamKeepsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := Upstream("Failed to generate thumbnails. Please try again.", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to generate thumbnails. Please try again.", err.Error())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "user not found with id 7", Message(fmt.Errorf("x: %w", NotFound("user", "7")), "fallback"))
	assert.Equal(t, "fallback", Message(errors.New("raw"), "fallback"))
}
