package render

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
)

// Order matters: first matching category wins
var errorStatuses = []struct {
	kind    error
	status  int
	message string
}{
	{apperrors.ErrValidation, http.StatusBadRequest, ""},
	{apperrors.ErrCredential, http.StatusUnauthorized, "Invalid credentials"},
	{apperrors.ErrToken, http.StatusUnauthorized, "Unauthorized"},
	{apperrors.ErrCode, http.StatusBadRequest, "Invalid verification code"},
	{apperrors.ErrConflict, http.StatusConflict, ""},
	{apperrors.ErrNotFound, http.StatusNotFound, ""},
	{apperrors.ErrStorageUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
	{apperrors.ErrNotificationFailed, http.StatusBadGateway, "Failed to send notification"},
}

// Status code and safe message for service error
// Empty message in table means category sentinel message is safe to show
func ErrorStatus(err error) (int, string) {
	for _, e := range errorStatuses {
		if !errors.Is(err, e.kind) {
			continue
		}

		if e.message != "" {
			return e.status, e.message
		}
		return e.status, exposedMessage(err, e.kind)
	}

	return http.StatusInternalServerError, "Internal server error"
}

// Message of the most specific apperrors sentinel, never the wrapped chain with internals
func exposedMessage(err error, kind error) string {
	// Policy failure reason follows sentinel message and is safe to show
	if errors.Is(err, apperrors.ErrWeakPassword) {
		msg := err.Error()
		if i := strings.Index(msg, apperrors.ErrWeakPassword.Error()); i >= 0 {
			return msg[i:]
		}
		return apperrors.ErrWeakPassword.Error()
	}

	for _, known := range []error{apperrors.ErrAccountHasNoEmail, apperrors.ErrAccountExists, apperrors.ErrAccountNotFound} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return kind.Error()
}

// Render service error with status matching error category
func Error(w http.ResponseWriter, err error) {
	status, message := ErrorStatus(err)
	ServiceError(w, message, status)
}
