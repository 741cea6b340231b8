package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refreshtoken"
)

// Largest body GetRefreshString reads when there is no cookie
const maxRefreshBodySize = 4 << 10

type Config struct {
	// Header to return access token, "Authorization" by default
	AccessHeaderName string

	// Scheme of access header value, "Bearer" by default
	AccessAuthScheme string

	// HttpOnly cookie to return refresh token, "refreshtoken" by default
	RefreshCookieName string

	// Path refresh cookie is sent to, empty means current path
	RefreshCookiePath string

	// Mark refresh cookie Secure
	SecureCookie bool
}

type tokenManager interface {
	IssuePair(ctx context.Context, accountID uuid.UUID) (models.TokenPair, error)
	DecodeAccess(ctx context.Context, value string) (models.Claims, error)
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)
	RefreshAccess(ctx context.Context, refresh string) (models.IssuedToken, error)
	Revoke(ctx context.Context, value string) error
}

type accountService interface {
	Register(ctx context.Context, username string, email string, password string) (models.Account, error)
	Authenticate(ctx context.Context, identifier string, password string) (models.Account, error)
	MarkActive(ctx context.Context, account models.Account) (models.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error)
}

// Login and sessions of one account kind
type AuthService struct {
	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string
	refreshCookiePath string
	secureCookie      bool

	tokens   tokenManager
	accounts accountService
	logger   logger.Logger
}

func NewService(cfg Config, tokens tokenManager, accounts accountService, logger logger.Logger) (*AuthService, error) {
	if tokens == nil || accounts == nil || logger == nil {
		return nil, errors.New("tokens, accounts and logger must not be nil")
	}

	s := &AuthService{
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		refreshCookiePath: cfg.RefreshCookiePath,
		secureCookie:      cfg.SecureCookie,
		tokens:            tokens,
		accounts:          accounts,
		logger:            logger,
	}

	if s.accessHeaderName == "" {
		s.accessHeaderName = defaultAccessHeaderName
	}
	if s.accessAuthScheme == "" {
		s.accessAuthScheme = defaultAccessAuthScheme
	}
	if s.refreshCookieName == "" {
		s.refreshCookieName = defaultRefreshCookieName
	}

	return s, nil
}

// Register account and issue its first token pair
func (s *AuthService) Register(ctx context.Context, username string, email string, password string) (models.TokenPair, error) {
	account, err := s.accounts.Register(ctx, username, email, password)
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(ctx, account.ID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	return pair, nil
}

// Check credentials, issue token pair and mark account active
func (s *AuthService) Login(ctx context.Context, identifier string, password string) (models.TokenPair, error) {
	account, err := s.accounts.Authenticate(ctx, identifier, password)
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(ctx, account.ID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be issued. Err: %w", err)
	}

	if _, err := s.accounts.MarkActive(ctx, account); err != nil {
		return models.TokenPair{}, err
	}

	s.logger.Debug("Account logged in", "account_id", account.ID)
	return pair, nil
}

// Rotate both tokens, refresh token is single use
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	return s.tokens.RefreshPair(ctx, refresh)
}

// New access token; previous one is revoked, refresh token stays valid
func (s *AuthService) RefreshAccess(ctx context.Context, refresh string) (models.IssuedToken, error) {
	return s.tokens.RefreshAccess(ctx, refresh)
}

// Revoke session tokens; empty values are skipped
func (s *AuthService) Logout(ctx context.Context, access string, refresh string) error {
	var errs []error
	for _, value := range []string{access, refresh} {
		if value == "" {
			continue
		}
		if err := s.tokens.Revoke(ctx, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Decode access token from request and load its account
func (s *AuthService) GetAccountFromRequest(ctx context.Context, r *http.Request) (models.Account, error) {
	access, err := s.GetAccessString(r)
	if err != nil {
		return models.Account{}, err
	}

	claims, err := s.tokens.DecodeAccess(ctx, access)
	if err != nil {
		return models.Account{}, err
	}

	account, err := s.accounts.GetAccount(ctx, claims.AccountID)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		// Token of deleted account or of other account kind
		return models.Account{}, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	case err != nil:
		return models.Account{}, err
	}

	return account, nil
}

// Read access token from header, e.g. "Authorization: Bearer <token>"
func (s *AuthService) GetAccessString(r *http.Request) (string, error) {
	header := r.Header.Get(s.accessHeaderName)
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, s.accessAuthScheme) || value == "" {
		return "", fmt.Errorf("%w: access token not found in request", apperrors.ErrTokenMalformed)
	}
	return strings.TrimSpace(value), nil
}

// Set access token to header and refresh token to HttpOnly cookie
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)

	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     s.refreshCookiePath,
		Expires:  pair.Refresh.ExpiresAt,
		MaxAge:   max(int(time.Until(pair.Refresh.ExpiresAt).Seconds()), 1),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

// Expire refresh cookie
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    "",
		Path:     s.refreshCookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

// Read refresh token from cookie, fallback to JSON body {"refresh": "<token>"}
func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(s.refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	var body struct {
		Refresh string `json:"refresh"`
	}
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, maxRefreshBodySize)).Decode(&body)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: can't read refresh token from body. Err: %w", apperrors.ErrTokenMalformed, err)
		}
	}

	if body.Refresh == "" {
		return "", fmt.Errorf("%w: refresh token not found in request", apperrors.ErrTokenMalformed)
	}
	return body.Refresh, nil
}
