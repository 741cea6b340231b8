package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/gopherauth/internal/handlers/middleware"
	"github.com/nkiryanov/gopherauth/internal/handlers/render"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// Services of one account kind
type Services struct {
	Auth     authService
	Accounts accountService
}

func NewRouter(users Services, customers Services, logger logger.Logger) http.Handler {
	root := http.NewServeMux()
	root.Handle("/api/users/", http.StripPrefix("/api/users", accountRoutes(users, logger.With("kind", string(models.KindUser)))))
	root.Handle("/api/customers/", http.StripPrefix("/api/customers", accountRoutes(customers, logger.With("kind", string(models.KindCustomer)))))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

func accountRoutes(s Services, logger logger.Logger) http.Handler {
	withAuth := middleware.AuthMiddleware(s.Auth)

	mux := http.NewServeMux()

	mux.Handle("POST /register", handleRegister(s.Auth, logger))
	mux.Handle("POST /login", handleLogin(s.Auth, logger))
	mux.Handle("POST /refresh", handleTokenRefresh(s.Auth, logger))
	mux.Handle("POST /logout", handleLogout(s.Auth, logger))
	mux.Handle("GET /me", withAuth(handleMe()))

	mux.Handle("POST /password/change", withAuth(handlePasswordChange(s.Accounts, logger)))
	mux.Handle("POST /password/forgot", handlePasswordForgot(s.Accounts, logger))
	mux.Handle("POST /password/reset", handlePasswordReset(s.Accounts, logger))

	return mux
}

// Render service error, unexpected ones are logged
func writeError(w http.ResponseWriter, logger logger.Logger, msg string, err error) {
	status, _ := render.ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, "error", err)
	} else {
		logger.Debug(msg, "error", err)
	}
	render.Error(w, err)
}

type authService interface {
	// Register account and issue token pair
	// Has to return apperrors.ErrAccountExists if username or email is taken
	Register(ctx context.Context, username string, email string, password string) (models.TokenPair, error)

	// Login with username or email
	// Has to return apperrors.ErrCredential kind of error if credentials are wrong
	Login(ctx context.Context, identifier string, password string) (models.TokenPair, error)

	// Rotate tokens using refresh token
	// Has to return apperrors.ErrToken kind of error if token is expired, revoked or malformed
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	// Revoke tokens, empty ones are skipped
	Logout(ctx context.Context, access string, refresh string) error

	// Set auth tokens (access, refresh) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)

	// Expire refresh cookie
	ClearTokens(w http.ResponseWriter)

	// Get tokens from request
	GetRefreshString(r *http.Request) (string, error)
	GetAccessString(r *http.Request) (string, error)

	// Get request and return account if it authenticated or error
	GetAccountFromRequest(ctx context.Context, r *http.Request) (models.Account, error)
}

type accountService interface {
	ValidatePassword(password string) error
	ChangePassword(ctx context.Context, identifier string, oldPassword string, newPassword string) error
	RequestReset(ctx context.Context, identifier string) error
	VerifyCode(ctx context.Context, identifier string, code string) (models.Account, error)
	SetNewPassword(ctx context.Context, account models.Account, newPassword string) error
}
