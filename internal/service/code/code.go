// Package code issues and checks short-lived numeric codes used to confirm email ownership
package code

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/kvstore"
	"github.com/nkiryanov/gopherauth/internal/models"
)

const (
	defaultTTL = 10 * time.Minute
	codeDigits = 6
	keyPrefix  = "code:"
)

// Return new random code
type Generator func() (string, error)

// Uniformly distributed 6-digit code from crypto/rand
func RandomDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

type Config struct {
	// Code lifetime
	TTL time.Duration

	// How long the expired code is kept to report ErrCodeExpired instead of ErrCodeNotFound
	// Equal to TTL if zero
	ExpiredGrace time.Duration

	Generate Generator
	Now      func() time.Time
}

type Service struct {
	store    kvstore.Store
	ttl      time.Duration
	grace    time.Duration
	generate Generator
	now      func() time.Time
}

func NewService(cfg Config, store kvstore.Store) *Service {
	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.ExpiredGrace == 0 {
		cfg.ExpiredGrace = cfg.TTL
	}
	if cfg.Generate == nil {
		cfg.Generate = RandomDigits
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		store:    store,
		ttl:      cfg.TTL,
		grace:    cfg.ExpiredGrace,
		generate: cfg.Generate,
		now:      cfg.Now,
	}
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue code for identity, previous one is overwritten
func (s *Service) Generate(ctx context.Context, identity string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("error while generating code. Err: %w", err)
	}

	value, err := json.Marshal(models.VerificationCode{
		Identity:  identity,
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("error while encoding code. Err: %w", err)
	}

	if err := s.store.Set(ctx, keyPrefix+identity, string(value), s.ttl+s.grace); err != nil {
		return "", fmt.Errorf("error while saving code. Err: %w", err)
	}

	return code, nil
}

// Check code for identity
// Stored code is consumed on every attempt, successful or not
func (s *Service) Validate(ctx context.Context, identity string, code string) error {
	value, err := s.store.GetDel(ctx, keyPrefix+identity)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		return apperrors.ErrCodeNotFound
	case err != nil:
		return fmt.Errorf("error while reading code. Err: %w", err)
	}

	var stored models.VerificationCode
	if err := json.Unmarshal([]byte(value), &stored); err != nil {
		return fmt.Errorf("error while decoding code. Err: %w", err)
	}

	switch {
	case !s.now().Before(stored.ExpiresAt):
		return apperrors.ErrCodeExpired
	case subtle.ConstantTimeCompare([]byte(stored.Code), []byte(code)) != 1:
		return apperrors.ErrCodeMismatch
	default:
		return nil
	}
}
