package models

import (
	"time"

	"github.com/google/uuid"
)

type AccountKind string

const (
	KindUser     AccountKind = "user"
	KindCustomer AccountKind = "customer"
)

func (k AccountKind) Valid() bool {
	return k == KindUser || k == KindCustomer
}

type Account struct {
	ID           uuid.UUID
	Kind         AccountKind
	Username     string
	Email        string // empty if account has no email
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
