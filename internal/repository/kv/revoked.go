package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/kvstore"
	"github.com/nkiryanov/gopherauth/internal/models"
)

const revokedPrefix = "revoked:"

// Revocation set kept in kvstore
// Entries live until token expiration, so DeleteExpired has nothing to do
type RevokedTokenRepo struct {
	Store kvstore.Store
	Now   func() time.Time
}

func NewRevokedTokenRepo(store kvstore.Store, now func() time.Time) *RevokedTokenRepo {
	if now == nil {
		now = time.Now
	}
	return &RevokedTokenRepo{Store: store, Now: now}
}

func (r *RevokedTokenRepo) Revoke(ctx context.Context, t models.RevokedToken) error {
	ttl := t.ExpiresAt.Sub(r.Now())
	if ttl <= 0 {
		// Token is dead anyway; keep entry shortly to report repeated revocation
		ttl = time.Second
	}

	value, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("kv error: %w", err)
	}

	ok, err := r.Store.SetNX(ctx, revokedPrefix+t.TokenID, string(value), ttl)
	switch {
	case err != nil:
		return fmt.Errorf("kv error: %w", err)
	case !ok:
		return fmt.Errorf("repo error: %w", apperrors.ErrTokenRevoked)
	default:
		return nil
	}
}

func (r *RevokedTokenRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, err := r.Store.Get(ctx, revokedPrefix+tokenID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, kvstore.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("kv error: %w", err)
	}
}

func (r *RevokedTokenRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
