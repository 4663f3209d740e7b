package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError_Structured(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusBadRequest, apperrors.ErrInvalidInput},
		{http.StatusConflict, apperrors.ErrConflict},
		{http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{http.StatusForbidden, apperrors.ErrForbidden},
		{http.StatusGone, apperrors.ErrGone},
		{http.StatusServiceUnavailable, apperrors.ErrServiceUnavail},
	}
	for _, tt := range tests {
		err := ParseResponseError(response(tt.status, `{"error":{"code":"X","message":"boom"}}`), "user-service")
		assert.True(t, errors.Is(err, tt.sentinel), "status %d: %v", tt.status, err)
	}
}

func TestParseResponseError_Unstructured(t *testing.T) {
	err := ParseResponseError(response(http.StatusBadGateway, "<html>bad gateway</html>"), "user-service")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user-service returned status 502")
}

func TestParseResponseError_OtherStatusKeepsCode(t *testing.T) {
	err := ParseResponseError(response(http.StatusTeapot, `{"error":{"code":"TEAPOT","message":"short and stout"}}`), "svc")
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "TEAPOT", appErr.Code)
	assert.Equal(t, http.StatusTeapot, appErr.Status)
}

func TestDecodeData(t *testing.T) {
	var groups []string
	err := DecodeData(response(http.StatusOK, `{"data":["vip","staff"]}`), "user-service", &groups)
	require.NoError(t, err)
	assert.Equal(t, []string{"vip", "staff"}, groups)
}

func TestDecodeData_MissingData(t *testing.T) {
	var groups []string
	err := DecodeData(response(http.StatusOK, `{}`), "user-service", &groups)
	assert.Error(t, err)
}

func TestDecodeData_ErrorStatus(t *testing.T) {
	var groups []string
	err := DecodeData(response(http.StatusNotFound, `{"error":{"code":"NOT_FOUND","message":"user"}}`), "user-service", &groups)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
