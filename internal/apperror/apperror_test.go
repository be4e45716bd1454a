package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{BadRequest("x"), http.StatusBadRequest},
		{Unauthorized("x"), http.StatusUnauthorized},
		{NotFound("x"), http.StatusNotFound},
		{Conflict("x"), http.StatusConflict},
		{Internal("x", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.StatusCode(), tt.err.Message)
	}
}

func TestFrom_WrappedAppError(t *testing.T) {
	base := Conflict("User already exists")
	wrapped := fmt.Errorf("create user: %w", base)

	got := From(wrapped)
	require.Same(t, base, got)
	assert.True(t, Is(wrapped, KindConflict))
	assert.False(t, Is(wrapped, KindNotFound))
}

func TestFrom_ForeignError(t *testing.T) {
	cause := errors.New("connection reset")

	got := From(cause)
	assert.Equal(t, KindInternal, got.Kind)
	assert.Equal(t, "Internal server error", got.Message)
	assert.ErrorIs(t, got, cause)
}

func TestError_MessageIncludesCause(t *testing.T) {
	err := Internal("Error generating tokens", errors.New("boom"))
	assert.Equal(t, "Error generating tokens: boom", err.Error())
	assert.Equal(t, "Invalid credentials", Unauthorized("Invalid credentials").Error())
}
