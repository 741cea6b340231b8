package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/models"
)

type AccountRepo struct {
	DB DBTX
}

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (id, kind, username, email, password_hash, is_active)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
RETURNING id, kind, username, COALESCE(email, ''), password_hash, is_active, created_at, updated_at
`

func (r *AccountRepo) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createAccount, a.ID, a.Kind, a.Username, a.Email, a.PasswordHash, a.IsActive)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case isUniqueViolation(err):
		return account, apperrors.ErrAccountExists
	default:
		return account, dbError(err)
	}
}

const getAccountByID = `-- name: GetAccountByID
SELECT id, kind, username, COALESCE(email, ''), password_hash, is_active, created_at, updated_at
FROM accounts
WHERE id = $1
`

func (r *AccountRepo) GetAccountByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByID, id)
	return collectAccount(rows)
}

// Username match wins if one account's username equals another's email
const getAccountByIdentifier = `-- name: GetAccountByIdentifier
SELECT id, kind, username, COALESCE(email, ''), password_hash, is_active, created_at, updated_at
FROM accounts
WHERE kind = $1 AND (username = $2 OR email = $2)
ORDER BY username = $2 DESC
LIMIT 1
`

func (r *AccountRepo) GetAccountByIdentifier(ctx context.Context, kind models.AccountKind, identifier string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByIdentifier, kind, identifier)
	return collectAccount(rows)
}

const updateAccount = `-- name: UpdateAccount
UPDATE accounts
SET username = $2, email = NULLIF($3, ''), password_hash = $4, is_active = $5, updated_at = now()
WHERE id = $1
RETURNING id, kind, username, COALESCE(email, ''), password_hash, is_active, created_at, updated_at
`

func (r *AccountRepo) UpdateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, updateAccount, a.ID, a.Username, a.Email, a.PasswordHash, a.IsActive)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, fmt.Errorf("repo error: %w", apperrors.ErrAccountNotFound)
	case isUniqueViolation(err):
		return account, apperrors.ErrAccountExists
	default:
		return account, dbError(err)
	}
}

const deleteAccount = `-- name: DeleteAccount
DELETE FROM accounts
WHERE id = $1
`

func (r *AccountRepo) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteAccount, id)
	switch {
	case err != nil:
		return dbError(err)
	case tag.RowsAffected() == 0:
		return fmt.Errorf("repo error: %w", apperrors.ErrAccountNotFound)
	default:
		return nil
	}
}

const listAccounts = `-- name: ListAccounts
SELECT id, kind, username, COALESCE(email, ''), password_hash, is_active, created_at, updated_at
FROM accounts
WHERE kind = $1
ORDER BY created_at, username
`

func (r *AccountRepo) ListAccounts(ctx context.Context, kind models.AccountKind) ([]models.Account, error) {
	rows, _ := r.DB.Query(ctx, listAccounts, kind)
	accounts, err := pgx.CollectRows(rows, rowToAccount)
	if err != nil {
		return nil, dbError(err)
	}

	return accounts, nil
}

func collectAccount(rows pgx.Rows) (models.Account, error) {
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, fmt.Errorf("repo error: %w", apperrors.ErrAccountNotFound)
	default:
		return account, dbError(err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Kind, &a.Username, &a.Email, &a.PasswordHash, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
