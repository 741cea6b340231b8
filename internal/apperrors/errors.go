package apperrors

import (
	"errors"
)

// Error categories
// Every specific error below unwraps to exactly one of them, so callers may match either level:
// errors.Is(err, ErrTokenExpired) or errors.Is(err, ErrToken)
var (
	ErrValidation         = errors.New("validation error")
	ErrCredential         = errors.New("credential error")
	ErrToken              = errors.New("token error")
	ErrCode               = errors.New("verification code error")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotificationFailed = errors.New("notification failed")
)

var (
	ErrWeakPassword      = newError(ErrValidation, "password does not satisfy policy")
	ErrAccountHasNoEmail = newError(ErrValidation, "account has no email")

	ErrInvalidCredential    = newError(ErrCredential, "invalid credentials")
	ErrOldPasswordIncorrect = newError(ErrCredential, "old password is incorrect")

	ErrTokenExpired     = newError(ErrToken, "token is expired")
	ErrTokenMalformed   = newError(ErrToken, "token is malformed")
	ErrTokenTypeInvalid = newError(ErrToken, "token type is invalid")
	ErrTokenRevoked     = newError(ErrToken, "token is revoked")

	ErrCodeNotFound = newError(ErrCode, "verification code not found")
	ErrCodeMismatch = newError(ErrCode, "verification code mismatch")
	ErrCodeExpired  = newError(ErrCode, "verification code expired")

	ErrAccountExists = newError(ErrConflict, "account already exists")

	ErrAccountNotFound = newError(ErrNotFound, "account not found")
)

type appError struct {
	kind error
	msg  string
}

func newError(kind error, msg string) error {
	return &appError{kind: kind, msg: msg}
}

func (e *appError) Error() string {
	return e.msg
}

func (e *appError) Unwrap() error {
	return e.kind
}
