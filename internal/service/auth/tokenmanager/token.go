package tokenmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/kvstore"
	"github.com/nkiryanov/gopherauth/internal/models"
	"github.com/nkiryanov/gopherauth/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour

	issuedKeyPrefix = "issued:"
)

// JWT payload: {sub, type, exp, iat, jti}
type tokenClaims struct {
	jwt.RegisteredClaims
	Type models.TokenType `json:"type"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm: HS256, HS384 or HS512
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// time.Now if not set
	Now func() time.Time
}

type accountGetter interface {
	// Has to return apperrors.ErrAccountNotFound if account not exists
	GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error)
}

type TokenManager struct {
	key []byte
	alg jwt.SigningMethod

	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time

	// Revocation set
	revoked repository.RevokedTokenRepo

	// Latest issued access token per account
	issued kvstore.Store

	accounts accountGetter
}

func New(cfg Config, revoked repository.RevokedTokenRepo, issued kvstore.Store, accounts accountGetter) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("signing method %q is not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		key:        []byte(cfg.SecretKey),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
		revoked:    revoked,
		issued:     issued,
		accounts:   accounts,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *TokenManager) IssueAccess(ctx context.Context, accountID uuid.UUID) (models.IssuedToken, error) {
	return m.issue(ctx, accountID, models.TokenTypeAccess, m.accessTTL)
}

func (m *TokenManager) IssueRefresh(ctx context.Context, accountID uuid.UUID) (models.IssuedToken, error) {
	return m.issue(ctx, accountID, models.TokenTypeRefresh, m.refreshTTL)
}

func (m *TokenManager) IssuePair(ctx context.Context, accountID uuid.UUID) (models.TokenPair, error) {
	var pair models.TokenPair

	access, err := m.IssueAccess(ctx, accountID)
	if err != nil {
		return pair, err
	}
	refresh, err := m.IssueRefresh(ctx, accountID)
	if err != nil {
		return pair, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) issue(ctx context.Context, accountID uuid.UUID, typ models.TokenType, ttl time.Duration) (models.IssuedToken, error) {
	var issued models.IssuedToken
	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	claims := models.Claims{
		TokenID:   uuid.NewString(),
		AccountID: accountID,
		Type:      typ,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}

	token := jwt.NewWithClaims(m.alg, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.TokenID,
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type: typ,
	})
	value, err := token.SignedString(m.key)
	if err != nil {
		return issued, fmt.Errorf("error while signing %s token. Err: %w", typ, err)
	}

	// Remember the latest access token, so it may be revoked on refresh
	if typ == models.TokenTypeAccess {
		entry, err := json.Marshal(claims)
		if err != nil {
			return issued, fmt.Errorf("error while encoding issued token. Err: %w", err)
		}
		err = m.issued.Set(ctx, issuedKey(typ, accountID), string(entry), ttl)
		if err != nil {
			return issued, fmt.Errorf("error while saving issued token. Err: %w", err)
		}
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

func issuedKey(typ models.TokenType, accountID uuid.UUID) string {
	return issuedKeyPrefix + string(typ) + ":" + accountID.String()
}

// Verify signature, expiration and claims shape. Revocation is not checked
func (m *TokenManager) parse(value string) (models.Claims, error) {
	var claims models.Claims
	tc := &tokenClaims{}

	_, err := jwt.ParseWithClaims(
		value,
		tc,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	default:
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	}

	accountID, err := uuid.Parse(tc.Subject)
	if err != nil || tc.ID == "" {
		return claims, fmt.Errorf("%w: subject or id claim is invalid", apperrors.ErrTokenMalformed)
	}
	if !tc.Type.Valid() {
		return claims, fmt.Errorf("%w: %q", apperrors.ErrTokenTypeInvalid, tc.Type)
	}

	claims = models.Claims{
		TokenID:   tc.ID,
		AccountID: accountID,
		Type:      tc.Type,
		ExpiresAt: tc.ExpiresAt.Time,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	return claims, nil
}

// Decode valid, not revoked token of any type
func (m *TokenManager) Decode(ctx context.Context, value string) (models.Claims, error) {
	claims, err := m.parse(value)
	if err != nil {
		return claims, err
	}

	revoked, err := m.revoked.IsRevoked(ctx, claims.TokenID)
	switch {
	case err != nil:
		return claims, fmt.Errorf("error while checking token revocation. Err: %w", err)
	case revoked:
		return claims, apperrors.ErrTokenRevoked
	default:
		return claims, nil
	}
}

func (m *TokenManager) DecodeAccess(ctx context.Context, value string) (models.Claims, error) {
	return m.decodeType(ctx, value, models.TokenTypeAccess)
}

func (m *TokenManager) DecodeRefresh(ctx context.Context, value string) (models.Claims, error) {
	return m.decodeType(ctx, value, models.TokenTypeRefresh)
}

func (m *TokenManager) decodeType(ctx context.Context, value string, typ models.TokenType) (models.Claims, error) {
	claims, err := m.Decode(ctx, value)
	if err != nil {
		return claims, err
	}
	if claims.Type != typ {
		return claims, fmt.Errorf("%w: expected %s, got %s", apperrors.ErrTokenTypeInvalid, typ, claims.Type)
	}
	return claims, nil
}

// Add token to revocation set
// Idempotent: revoking revoked or already expired token is ok
func (m *TokenManager) Revoke(ctx context.Context, value string) error {
	claims, err := m.parse(value)
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		return nil
	case err != nil:
		return err
	}

	err = m.revoke(ctx, claims)
	if errors.Is(err, apperrors.ErrTokenRevoked) {
		return nil
	}
	return err
}

// Return apperrors.ErrTokenRevoked if token was revoked already
func (m *TokenManager) revoke(ctx context.Context, claims models.Claims) error {
	err := m.revoked.Revoke(ctx, models.RevokedToken{
		TokenID:   claims.TokenID,
		AccountID: claims.AccountID,
		Type:      claims.Type,
		RevokedAt: m.now(),
		ExpiresAt: claims.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("error while revoking token. Err: %w", err)
	}
	return nil
}

// Revoke latest issued token of the type, if it still alive
func (m *TokenManager) revokeLatest(ctx context.Context, accountID uuid.UUID, typ models.TokenType) error {
	value, err := m.issued.Get(ctx, issuedKey(typ, accountID))
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("error while reading issued token. Err: %w", err)
	}

	var claims models.Claims
	if err := json.Unmarshal([]byte(value), &claims); err != nil {
		return fmt.Errorf("error while decoding issued token. Err: %w", err)
	}

	err = m.revoke(ctx, claims)
	if errors.Is(err, apperrors.ErrTokenRevoked) {
		return nil
	}
	return err
}

// Validate refresh token and make sure account still exists
func (m *TokenManager) useRefresh(ctx context.Context, refresh string) (models.Claims, error) {
	claims, err := m.DecodeRefresh(ctx, refresh)
	if err != nil {
		return claims, err
	}

	_, err = m.accounts.GetAccount(ctx, claims.AccountID)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		// Token of deleted account is as good as forged one
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	case err != nil:
		return claims, fmt.Errorf("error while getting token account. Err: %w", err)
	}
	return claims, nil
}

// Issue new access token, the previous access token of the account is revoked
func (m *TokenManager) RefreshAccess(ctx context.Context, refresh string) (models.IssuedToken, error) {
	claims, err := m.useRefresh(ctx, refresh)
	if err != nil {
		return models.IssuedToken{}, err
	}

	if err := m.revokeLatest(ctx, claims.AccountID, models.TokenTypeAccess); err != nil {
		return models.IssuedToken{}, err
	}

	return m.IssueAccess(ctx, claims.AccountID)
}

// Rotate refresh token: the presented one is revoked and can't be replayed
func (m *TokenManager) RefreshRefresh(ctx context.Context, refresh string) (models.IssuedToken, error) {
	claims, err := m.useRefresh(ctx, refresh)
	if err != nil {
		return models.IssuedToken{}, err
	}

	// Concurrent rotation of the same token: only one caller wins
	if err := m.revoke(ctx, claims); err != nil {
		return models.IssuedToken{}, err
	}

	return m.IssueRefresh(ctx, claims.AccountID)
}

// Rotate refresh token and issue new access one
func (m *TokenManager) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	claims, err := m.useRefresh(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := m.revoke(ctx, claims); err != nil {
		return models.TokenPair{}, err
	}
	if err := m.revokeLatest(ctx, claims.AccountID, models.TokenTypeAccess); err != nil {
		return models.TokenPair{}, err
	}

	return m.IssuePair(ctx, claims.AccountID)
}
