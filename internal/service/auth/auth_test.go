package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/kvstore/memory"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/repository/postgres"
	"github.com/nkiryanov/gopherauth/internal/service/account"
	"github.com/nkiryanov/gopherauth/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/gopherauth/internal/service/code"
	"github.com/nkiryanov/gopherauth/internal/service/notify"
	"github.com/nkiryanov/gopherauth/internal/service/password"
	"github.com/nkiryanov/gopherauth/internal/testutil"
)

func Test_Auth(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	passwords := password.NewService(password.NewPolicy(password.Config{}), password.BcryptHasher{Cost: bcrypt.MinCost})

	type setup struct {
		s        *AuthService
		accounts *account.AccountService
		clock    *testutil.Clock
	}

	// Begin new db transaction and create new AuthService for kind
	// Rollback transaction when test stops
	withTx := func(t *testing.T, kind models.AccountKind, fn func(s setup)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			clock := testutil.NewClock(time.Now())
			store := memory.New(memory.WithClock(clock.Now))
			storage := postgres.NewStorage(tx)
			log := logger.NewNoOpLogger()

			accounts, err := account.NewService(kind, storage, passwords, code.NewService(code.Config{}, store), notify.LogSender{Logger: log}, log)
			require.NoError(t, err)

			tokens, err := tokenmanager.New(
				tokenmanager.Config{SecretKey: "test-secret-key", AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour, Now: clock.Now},
				storage.Revoked(),
				store,
				accounts,
			)
			require.NoError(t, err, "token manager should be created without errors")

			s, err := NewService(Config{}, tokens, accounts, log)
			require.NoError(t, err, "auth service could't be started")

			fn(setup{s: s, accounts: accounts, clock: clock})
		})
	}

	bearer := func(value string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r.Header.Set("Authorization", "Bearer "+value)
		return r
	}

	t.Run("new auth service defaults", func(t *testing.T) {
		s, err := NewService(Config{}, &tokenmanager.TokenManager{}, &account.AccountService{}, logger.NewNoOpLogger())
		require.NoError(t, err, "auth service should be created without errors")

		require.Equal(t, defaultAccessHeaderName, s.accessHeaderName, "default access header name should be set")
		require.Equal(t, defaultAccessAuthScheme, s.accessAuthScheme, "default access auth")
		require.Equal(t, defaultRefreshCookieName, s.refreshCookieName, "default refresh cookie name should be set")
	})

	t.Run("new auth service nil deps fail", func(t *testing.T) {
		_, err := NewService(Config{}, nil, nil, nil)
		require.Error(t, err)
	})

	t.Run("Register", func(t *testing.T) {
		t.Run("new account ok", func(t *testing.T) {
			withTx(t, models.KindUser, func(s setup) {
				pair, err := s.s.Register(t.Context(), "nkiryanov", "nk@example.com", "Passw0rd!")

				require.NoError(t, err, "registering new account should be ok")
				require.NotEmpty(t, pair.Access.Value, "access token should not be empty")
				require.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")

				got, err := s.s.GetAccountFromRequest(t.Context(), bearer(pair.Access.Value))
				require.NoError(t, err)
				require.Equal(t, "nkiryanov", got.Username)
				require.False(t, got.IsActive, "registering does not activate account")
			})
		})

		t.Run("fail if account exists", func(t *testing.T) {
			withTx(t, models.KindUser, func(s setup) {
				_, err := s.s.Register(t.Context(), "nkiryanov", "", "Passw0rd!")
				require.NoError(t, err, "no error has should happen if account not exists")

				_, err = s.s.Register(t.Context(), "nkiryanov", "", "other-Passw0rd")

				require.ErrorIs(t, err, apperrors.ErrAccountExists)
			})
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("existing account ok", func(t *testing.T) {
			withTx(t, models.KindUser, func(s setup) {
				_, err := s.s.Register(t.Context(), "nkiryanov", "", "Passw0rd!")
				require.NoError(t, err)

				pair, err := s.s.Login(t.Context(), "nkiryanov", "Passw0rd!")

				require.NoError(t, err)
				require.NotEmpty(t, pair.Access.Value, "access token should not be empty")
				require.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")

				got, err := s.s.GetAccountFromRequest(t.Context(), bearer(pair.Access.Value))
				require.NoError(t, err)
				require.True(t, got.IsActive, "login has to activate account")
			})
		})

		tests := []struct {
			name        string
			login       string
			password    string
			expectedErr error
		}{
			{
				name:        "login fail if wrong password",
				login:       "nkiryanov",
				password:    "wrong-password",
				expectedErr: apperrors.ErrInvalidCredential,
			},
			{
				name:        "login fail if account not exists",
				login:       "not-existed-account",
				password:    "Passw0rd!",
				expectedErr: apperrors.ErrAccountNotFound,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withTx(t, models.KindUser, func(s setup) {
					_, err := s.s.Register(t.Context(), "nkiryanov", "", "Passw0rd!")
					require.NoError(t, err)

					_, err = s.s.Login(t.Context(), tt.login, tt.password)

					require.ErrorIs(t, err, tt.expectedErr)
					require.ErrorIs(t, err, apperrors.ErrCredential)
				})
			})
		}
	})

	t.Run("RefreshPair", func(t *testing.T) {
		t.Run("refresh once ok", func(t *testing.T) {
			withTx(t, models.KindUser, func(s setup) {
				initialPair, err := s.s.Register(t.Context(), "nkiryanov", "", "Passw0rd!")
				require.NoError(t, err)

				newPair, err := s.s.RefreshPair(t.Context(), initialPair.Refresh.Value)

				require.NoError(t, err)
				require.NotEqual(t, initialPair.Access.Value, newPair.Access.Value, "new access token should be different")
				require.NotEqual(t, initialPair.Refresh.Value, newPair.Refresh.Value, "new refresh token should be different")
			})
		})

		t.Run("fail if used once", func(t *testing.T) {
			withTx(t, models.KindUser, func(s setup) {
				initialPair, err := s.s.Register(t.Context(), "nkiryanov", "", "Passw0rd!")
				require.NoError(t, err)

				_, err = s.s.RefreshPair(t.Context(), initialPair.Refresh.Value)
				require.NoError(t, err)

				_, err = s.s.RefreshPair(t.Context(), initialPair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrTokenRevoked, "should return error if token already used")
			})
		})

		t.Run("fail if expired", func(t *testing.T) {
			withTx(t, models.KindUser, func(s setup) {
				initialPair, err := s.s.Register(t.Context(), "nkiryanov", "", "Passw0rd!")
				require.NoError(t, err)

				s.clock.Advance(25 * time.Hour)

				_, err = s.s.RefreshPair(t.Context(), initialPair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrTokenExpired, "should return error if token expired")
			})
		})
	})

	t.Run("RefreshAccess revokes previous access", func(t *testing.T) {
		withTx(t, models.KindUser, func(s setup) {
			pair, err := s.s.Register(t.Context(), "nkiryanov", "", "Passw0rd!")
			require.NoError(t, err)

			access, err := s.s.RefreshAccess(t.Context(), pair.Refresh.Value)
			require.NoError(t, err)

			_, err = s.s.GetAccountFromRequest(t.Context(), bearer(pair.Access.Value))
			require.ErrorIs(t, err, apperrors.ErrTokenRevoked)
			_, err = s.s.GetAccountFromRequest(t.Context(), bearer(access.Value))
			require.NoError(t, err)
		})
	})

	t.Run("Logout", func(t *testing.T) {
		withTx(t, models.KindUser, func(s setup) {
			pair, err := s.s.Register(t.Context(), "nkiryanov", "", "Passw0rd!")
			require.NoError(t, err)

			require.NoError(t, s.s.Logout(t.Context(), pair.Access.Value, pair.Refresh.Value))
			require.NoError(t, s.s.Logout(t.Context(), pair.Access.Value, pair.Refresh.Value), "logout is idempotent")

			_, err = s.s.GetAccountFromRequest(t.Context(), bearer(pair.Access.Value))
			require.ErrorIs(t, err, apperrors.ErrTokenRevoked)
			_, err = s.s.RefreshPair(t.Context(), pair.Refresh.Value)
			require.ErrorIs(t, err, apperrors.ErrTokenRevoked)

			err = s.s.Logout(t.Context(), "garbage", "")
			require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
		})
	})

	t.Run("GetAccountFromRequest", func(t *testing.T) {
		t.Run("no header", func(t *testing.T) {
			withTx(t, models.KindUser, func(s setup) {
				_, err := s.s.GetAccountFromRequest(t.Context(), httptest.NewRequest(http.MethodGet, "/me", nil))
				require.ErrorIs(t, err, apperrors.ErrToken)
			})
		})

		t.Run("wrong scheme", func(t *testing.T) {
			withTx(t, models.KindUser, func(s setup) {
				pair, err := s.s.Register(t.Context(), "nkiryanov", "", "Passw0rd!")
				require.NoError(t, err)

				r := httptest.NewRequest(http.MethodGet, "/me", nil)
				r.Header.Set("Authorization", "Basic "+pair.Access.Value)

				_, err = s.s.GetAccountFromRequest(t.Context(), r)
				require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
			})
		})

		t.Run("refresh token as access fail", func(t *testing.T) {
			withTx(t, models.KindUser, func(s setup) {
				pair, err := s.s.Register(t.Context(), "nkiryanov", "", "Passw0rd!")
				require.NoError(t, err)

				_, err = s.s.GetAccountFromRequest(t.Context(), bearer(pair.Refresh.Value))
				require.ErrorIs(t, err, apperrors.ErrTokenTypeInvalid)
			})
		})

		t.Run("deleted account fail", func(t *testing.T) {
			withTx(t, models.KindUser, func(s setup) {
				pair, err := s.s.Register(t.Context(), "nkiryanov", "", "Passw0rd!")
				require.NoError(t, err)
				got, err := s.s.GetAccountFromRequest(t.Context(), bearer(pair.Access.Value))
				require.NoError(t, err)
				require.NoError(t, s.accounts.DeleteAccount(t.Context(), got.ID))

				_, err = s.s.GetAccountFromRequest(t.Context(), bearer(pair.Access.Value))
				require.ErrorIs(t, err, apperrors.ErrToken)
			})
		})
	})

	t.Run("SetTokenPairToResponse", func(t *testing.T) {
		withTx(t, models.KindCustomer, func(s setup) {
			pair, err := s.s.Register(t.Context(), "carol", "", "Passw0rd!")
			require.NoError(t, err)

			w := httptest.NewRecorder()
			s.s.SetTokenPairToResponse(w, pair)

			res := w.Result()
			defer func() { _ = res.Body.Close() }()
			assert.Equal(t, "Bearer "+pair.Access.Value, res.Header.Get("Authorization"))

			cookies := res.Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, "refreshtoken", cookies[0].Name)
			assert.Equal(t, pair.Refresh.Value, cookies[0].Value)
			assert.True(t, cookies[0].HttpOnly, "refresh cookie has to be HttpOnly")
			assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
			assert.InDelta(t, (24 * time.Hour).Seconds(), cookies[0].MaxAge, 2, "max age should be refresh TTL")

			// Cookie is read back by GetRefreshString
			r := httptest.NewRequest(http.MethodPost, "/refresh", nil)
			r.AddCookie(cookies[0])
			refresh, err := s.s.GetRefreshString(r)
			require.NoError(t, err)
			assert.Equal(t, pair.Refresh.Value, refresh)
		})
	})

	t.Run("GetRefreshString", func(t *testing.T) {
		s, err := NewService(Config{}, &tokenmanager.TokenManager{}, &account.AccountService{}, logger.NewNoOpLogger())
		require.NoError(t, err)

		t.Run("from body", func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(`{"refresh": "token-value"}`))

			refresh, err := s.GetRefreshString(r)

			require.NoError(t, err)
			assert.Equal(t, "token-value", refresh)
		})

		t.Run("missing", func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/refresh", nil)

			_, err := s.GetRefreshString(r)

			require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
		})

		t.Run("invalid body", func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader(`not json`))

			_, err := s.GetRefreshString(r)

			require.ErrorIs(t, err, apperrors.ErrTokenMalformed)
		})
	})
}
