package models

import (
	"time"

	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// Decoded and verified token payload
type Claims struct {
	TokenID   string
	AccountID uuid.UUID
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Token invalidated before its natural expiry
// May be garbage collected once ExpiresAt is passed
type RevokedToken struct {
	TokenID   string
	AccountID uuid.UUID
	Type      TokenType
	RevokedAt time.Time
	ExpiresAt time.Time
}
