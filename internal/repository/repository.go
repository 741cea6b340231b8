package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/models"
)

type Storage interface {
	Account() AccountRepo
	Revoked() RevokedTokenRepo

	// Run fn in transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

// Account repository interface, both users and customers share it
// Any connection level failure must be returned as apperrors.ErrStorageUnavailable
type AccountRepo interface {
	// Create account
	// If account with same kind and username (or email) exists must return apperrors.ErrAccountExists
	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)

	// Get account by it's id or by username-or-email
	// If account not found must return apperrors.ErrAccountNotFound
	GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	GetAccountByIdentifier(ctx context.Context, kind models.AccountKind, identifier string) (models.Account, error)

	// Update mutable fields: username, email, password hash, activation flag
	// If account not found must return apperrors.ErrAccountNotFound
	UpdateAccount(ctx context.Context, account models.Account) (models.Account, error)

	// If account not found must return apperrors.ErrAccountNotFound
	DeleteAccount(ctx context.Context, id uuid.UUID) error

	ListAccounts(ctx context.Context, kind models.AccountKind) ([]models.Account, error)
}

// Revocation set
type RevokedTokenRepo interface {
	// Add token to revocation set
	// Has to be atomic: if the token is revoked already must return apperrors.ErrTokenRevoked
	Revoke(ctx context.Context, token models.RevokedToken) error

	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// Remove entries that expired before the moment, return count of removed entries
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
