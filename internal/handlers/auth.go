package handlers

import (
	"net/http"

	"github.com/nkiryanov/gopherauth/internal/handlers/render"
	"github.com/nkiryanov/gopherauth/internal/logger"
)

type messageResponse struct {
	Message string `json:"message"`
}

func handleRegister(auth authService, logger logger.Logger) http.Handler {
	type request struct {
		Login    string `json:"login" validate:"required,min=2,max=50,username"`
		Email    string `json:"email" validate:"omitempty,email,max=254"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := auth.Register(r.Context(), data.Login, data.Email, data.Password)
		if err != nil {
			writeError(w, logger, "Failed to register account", err)
			return
		}

		auth.SetTokenPairToResponse(w, pair)
		render.JSON(w, messageResponse{Message: "Account registered successfully"})
	})
}

func handleLogin(auth authService, logger logger.Logger) http.Handler {
	type request struct {
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := auth.Login(r.Context(), data.Login, data.Password)
		if err != nil {
			writeError(w, logger, "Failed to login", err)
			return
		}

		auth.SetTokenPairToResponse(w, pair)
		render.JSON(w, messageResponse{Message: "Logged in successfully"})
	})
}

func handleTokenRefresh(auth authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := auth.GetRefreshString(r)
		if err != nil {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, err := auth.RefreshPair(r.Context(), refresh)
		if err != nil {
			writeError(w, logger, "Failed to refresh tokens", err)
			return
		}

		auth.SetTokenPairToResponse(w, pair)
		render.JSON(w, messageResponse{Message: "Tokens refreshed successfully"})
	})
}

// Both tokens are optional, logout without them just clears the cookie
func handleLogout(auth authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		access, _ := auth.GetAccessString(r)
		refresh, _ := auth.GetRefreshString(r)

		if err := auth.Logout(r.Context(), access, refresh); err != nil {
			writeError(w, logger, "Failed to logout", err)
			return
		}

		auth.ClearTokens(w)
		render.JSON(w, messageResponse{Message: "Logged out successfully"})
	})
}
