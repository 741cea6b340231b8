package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/kvstore"
)

// kvstore.Store backed by redis
// Every key is prefixed so several stores may share one database
type Store struct {
	client goredis.Cmdable
	prefix string
}

func New(client goredis.Cmdable, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Connect to redis and check it responds
func Connect(ctx context.Context, addr string, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// redis ttl 0 means no expiration, negative values are rejected by server
func expiration(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}

func (s *Store) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	err := s.client.Set(ctx, s.key(key), value, expiration(ttl)).Err()
	return wrap(err)
}

func (s *Store) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), value, expiration(ttl)).Result()
	return ok, wrap(err)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	return value, wrap(err)
}

func (s *Store) GetDel(ctx context.Context, key string) (string, error) {
	value, err := s.client.GetDel(ctx, s.key(key)).Result()
	return value, wrap(err)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.Del(ctx, s.key(key)).Err()
	return wrap(err)
}

func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.Nil):
		return kvstore.ErrNotFound
	default:
		return fmt.Errorf("redis error: %w: %w", apperrors.ErrStorageUnavailable, err)
	}
}

var _ kvstore.Store = (*Store)(nil)
