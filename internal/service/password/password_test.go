package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
)

func TestPolicy(t *testing.T) {
	t.Run("length", func(t *testing.T) {
		p := NewPolicy(Config{})

		tests := []struct {
			name     string
			password string
			ok       bool
		}{
			{"empty", "", false},
			{"too short", "1234567", false},
			{"min", "12345678", true},
			{"max", strings.Repeat("a", 64), true},
			{"too long", strings.Repeat("a", 65), false},
			{"runes not bytes", strings.Repeat("я", 64), true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := p.Validate(tt.password)
				require.Equal(t, tt.ok, err == nil, "unexpected result: %v", err)
			})
		}
	})

	t.Run("strict", func(t *testing.T) {
		p := NewPolicy(Config{Strict: true})

		tests := []struct {
			name     string
			password string
			errText  string
		}{
			{"ok", "Passw0rd!", ""},
			{"no lower", "PASSW0RD!", "lowercase"},
			{"no upper", "passw0rd!", "uppercase"},
			{"no digit", "Password!", "digit"},
			{"no special", "Passw0rdd", "one of"},
			{"short but strong", "Pa0!", "at least 8"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := p.Validate(tt.password)
				if tt.errText == "" {
					require.NoError(t, err)
					return
				}
				require.ErrorContains(t, err, tt.errText)
			})
		}
	})

	t.Run("custom bounds", func(t *testing.T) {
		p := NewPolicy(Config{MinLength: 4, MaxLength: 6})

		require.NoError(t, p.Validate("1234"))
		require.Error(t, p.Validate("1234567"))
	})
}

func TestService(t *testing.T) {
	t.Parallel()

	s := NewService(NewPolicy(Config{}), BcryptHasher{Cost: bcrypt.MinCost})

	t.Run("hash weak password fails", func(t *testing.T) {
		for _, pwd := range []string{"short", strings.Repeat("x", 65)} {
			_, err := s.Hash(pwd)

			require.ErrorIs(t, err, apperrors.ErrWeakPassword)
			require.ErrorIs(t, err, apperrors.ErrValidation)
		}
	})

	t.Run("verify hashed ok", func(t *testing.T) {
		hash, err := s.Hash("Passw0rd!")
		require.NoError(t, err)
		require.NotEqual(t, "Passw0rd!", hash, "plain text must never be stored")

		require.NoError(t, s.Verify("Passw0rd!", hash))
	})

	t.Run("verify other password fails", func(t *testing.T) {
		hash, err := s.Hash("Passw0rd!")
		require.NoError(t, err)

		for _, other := range []string{"Passw0rd", "passw0rd!", "Passw0rd!!", ""} {
			err := s.Verify(other, hash)

			require.ErrorIs(t, err, apperrors.ErrInvalidCredential)
			require.ErrorIs(t, err, apperrors.ErrCredential)
		}
	})

	t.Run("validate strength", func(t *testing.T) {
		require.NoError(t, s.ValidateStrength("long-enough"))

		err := s.ValidateStrength("short")
		require.ErrorIs(t, err, apperrors.ErrWeakPassword)
		require.ErrorContains(t, err, "at least 8")
	})

	t.Run("dummy hash ignores policy", func(t *testing.T) {
		s := NewService(NewPolicy(Config{MinLength: 8, MaxLength: 12}), BcryptHasher{Cost: bcrypt.MinCost})

		hash, err := s.DummyHash()
		require.NoError(t, err)

		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err, "must be a real bcrypt hash")
		require.Equal(t, bcrypt.MinCost, cost)
		require.ErrorIs(t, s.Verify("Passw0rd!", hash), apperrors.ErrInvalidCredential)
	})

	t.Run("defaults", func(t *testing.T) {
		s := NewService(nil, nil)

		require.Equal(t, BcryptHasher{}, s.hasher)
		require.Error(t, s.ValidateStrength("1234567"))
	})
}
