// Package password validates password strength and hashes passwords
package password

import (
	"crypto/rand"
	"fmt"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
)

// Interface to create or compare password hashes
type Hasher interface {
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks and return apperrors.ErrInvalidCredential on mismatch
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Allowed password length; defaults are used if zero
	MinLength int
	MaxLength int

	// Require lower, upper, digit and special characters
	Strict bool

	// bcrypt cost; default if zero
	Cost int
}

// Build policy from config
func NewPolicy(cfg Config) Policy {
	if cfg.MinLength == 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = DefaultMaxLength
	}

	policy := Policy(LengthPolicy{Min: cfg.MinLength, Max: cfg.MaxLength})
	if cfg.Strict {
		policy = All(policy, CharClassPolicy{})
	}
	return policy
}

type Service struct {
	policy Policy
	hasher Hasher
}

// Both arguments are optional: default length policy and bcrypt hasher are used
func NewService(policy Policy, hasher Hasher) *Service {
	if policy == nil {
		policy = NewPolicy(Config{})
	}
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	return &Service{policy: policy, hasher: hasher}
}

// Return apperrors.ErrWeakPassword with violated rule if password is weak
func (s *Service) ValidateStrength(password string) error {
	if err := s.policy.Validate(password); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrWeakPassword, err.Error())
	}
	return nil
}

func (s *Service) Hash(password string) (string, error) {
	if err := s.ValidateStrength(password); err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("error while hashing password. Err: %w", err)
	}
	return hash, nil
}

// Return apperrors.ErrInvalidCredential if password does not match
func (s *Service) Verify(password string, hash string) error {
	return s.hasher.Compare(hash, password)
}

// Hash of a random secret, policy is not applied
// Compare against it to spend the same time as for a real account
func (s *Service) DummyHash() (string, error) {
	hash, err := s.hasher.Hash(rand.Text())
	if err != nil {
		return "", fmt.Errorf("error while hashing dummy password. Err: %w", err)
	}
	return hash, nil
}
