package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/models"
)

type RevokedTokenRepo struct {
	DB DBTX
}

const revokeToken = `-- name: RevokeToken
INSERT INTO revoked_tokens (token_id, account_id, token_type, revoked_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (token_id) DO NOTHING
RETURNING token_id
`

// Revoke token. Only the first call wins, next ones get apperrors.ErrTokenRevoked
func (r *RevokedTokenRepo) Revoke(ctx context.Context, t models.RevokedToken) error {
	rows, _ := r.DB.Query(ctx, revokeToken, t.TokenID, t.AccountID, t.Type, t.RevokedAt, t.ExpiresAt)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[string])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows): // conflict, nothing inserted
		return fmt.Errorf("repo error: %w", apperrors.ErrTokenRevoked)
	default:
		return dbError(err)
	}
}

const isTokenRevoked = `-- name: IsTokenRevoked
SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)
`

func (r *RevokedTokenRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	rows, _ := r.DB.Query(ctx, isTokenRevoked, tokenID)
	revoked, err := pgx.CollectOneRow(rows, pgx.RowTo[bool])
	if err != nil {
		return false, dbError(err)
	}

	return revoked, nil
}

const deleteExpiredTokens = `-- name: DeleteExpiredTokens
DELETE FROM revoked_tokens
WHERE expires_at < $1
`

func (r *RevokedTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredTokens, before)
	if err != nil {
		return 0, dbError(err)
	}

	return tag.RowsAffected(), nil
}
