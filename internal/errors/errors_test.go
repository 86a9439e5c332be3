package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeTokenExpired, http.StatusUnauthorized},
		{CodeInvalidToken, http.StatusUnauthorized},
		{CodeInvalidCredentials, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeValidation, http.StatusBadRequest},
		{CodeTooManyRequests, http.StatusTooManyRequests},
		{CodeUpstream, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Forbidden("not the owner")
	wrapped := fmt.Errorf("update article: %w", err)

	assert.True(t, Is(wrapped, ErrForbidden))
	assert.False(t, Is(wrapped, ErrNotFound))
}

func TestUpstreamHidesCause(t *testing.T) {
	err := Upstream(fmt.Errorf("dial tcp: connection refused"), "media host unavailable")

	assert.Equal(t, "internal server error", err.Public())
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, CodeUpstream, CodeOf(err))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("boom")))
	assert.Equal(t, CodeValidation, CodeOf(Validationf("title %s", "required")))
}
