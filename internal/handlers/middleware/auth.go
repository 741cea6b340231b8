package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/gopherauth/internal/handlers/accountctx"
	"github.com/nkiryanov/gopherauth/internal/handlers/render"
	"github.com/nkiryanov/gopherauth/internal/models"
)

type authService interface {
	GetAccountFromRequest(ctx context.Context, r *http.Request) (models.Account, error)
}

// Put authenticated account to request context or respond 401
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := as.GetAccountFromRequest(r.Context(), r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := accountctx.New(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
