// Package kvstore describes key-value storage with per-key expiration.
// Verification codes, issued token registry and (optionally) revocation set live here.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	// Set value, overwrite existing one. ttl <= 0 means no expiration
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Set value only if key is absent. Report whether value was set
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)

	// Must return ErrNotFound if key absent or expired
	Get(ctx context.Context, key string) (string, error)

	// Atomically get and delete value
	// Must return ErrNotFound if key absent or expired
	GetDel(ctx context.Context, key string) (string, error)

	// Delete key, no error if key absent
	Delete(ctx context.Context, key string) error
}
