package render

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
)

func TestRender_ErrorStatus(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "weak password shows rule",
			err:             fmt.Errorf("can't register. Err: %w", fmt.Errorf("%w: %s", apperrors.ErrWeakPassword, "too short")),
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "password does not satisfy policy: too short",
		},
		{
			name:            "account has no email",
			err:             apperrors.ErrAccountHasNoEmail,
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "account has no email",
		},
		{
			name:            "invalid credential",
			err:             fmt.Errorf("wrapped: %w", apperrors.ErrInvalidCredential),
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "Invalid credentials",
		},
		{
			name:            "unknown account on login is credential error",
			err:             fmt.Errorf("%w: %w", apperrors.ErrCredential, apperrors.ErrAccountNotFound),
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "Invalid credentials",
		},
		{
			name:            "token expired",
			err:             apperrors.ErrTokenExpired,
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "Unauthorized",
		},
		{
			name:            "code mismatch",
			err:             apperrors.ErrCodeMismatch,
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid verification code",
		},
		{
			name:            "account exists",
			err:             fmt.Errorf("can't register account. Err: %w", apperrors.ErrAccountExists),
			expectedStatus:  http.StatusConflict,
			expectedMessage: "account already exists",
		},
		{
			name:            "account not found",
			err:             apperrors.ErrAccountNotFound,
			expectedStatus:  http.StatusNotFound,
			expectedMessage: "account not found",
		},
		{
			name:            "storage unavailable",
			err:             fmt.Errorf("db error: %w: %w", apperrors.ErrStorageUnavailable, errors.New("dial tcp: refused")),
			expectedStatus:  http.StatusServiceUnavailable,
			expectedMessage: "Service temporarily unavailable",
		},
		{
			name:            "notification failed",
			err:             fmt.Errorf("%w: %w", apperrors.ErrNotificationFailed, errors.New("smtp 554")),
			expectedStatus:  http.StatusBadGateway,
			expectedMessage: "Failed to send notification",
		},
		{
			name:            "unknown error",
			err:             errors.New("sql: secret internals"),
			expectedStatus:  http.StatusInternalServerError,
			expectedMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := ErrorStatus(tt.err)

			assert.Equal(t, tt.expectedStatus, status)
			assert.Equal(t, tt.expectedMessage, message)
		})
	}
}

func TestRender_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		Error(w, apperrors.ErrAccountExists)
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.JSONEq(t, `{"error": "service_error", "message": "account already exists"}`, string(body))
}
