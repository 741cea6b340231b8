package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/gopherauth/internal/handlers/accountctx"
	"github.com/nkiryanov/gopherauth/internal/handlers/render"
	"github.com/nkiryanov/gopherauth/internal/logger"
)

func handleMe() http.Handler {
	type response struct {
		ID        uuid.UUID `json:"id"`
		Kind      string    `json:"kind"`
		Username  string    `json:"username"`
		Email     string    `json:"email,omitempty"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, _ := accountctx.FromContext(r.Context())
		render.JSON(w, response{
			ID:        account.ID,
			Kind:      string(account.Kind),
			Username:  account.Username,
			Email:     account.Email,
			IsActive:  account.IsActive,
			CreatedAt: account.CreatedAt,
		})
	})
}

func handlePasswordChange(accounts accountService, logger logger.Logger) http.Handler {
	type request struct {
		OldPassword string `json:"old_password" validate:"required"`
		NewPassword string `json:"new_password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = accounts.ChangePassword(r.Context(), account.Username, data.OldPassword, data.NewPassword)
		if err != nil {
			writeError(w, logger, "Failed to change password", err)
			return
		}

		render.JSON(w, messageResponse{Message: "Password changed successfully"})
	})
}

func handlePasswordForgot(accounts accountService, logger logger.Logger) http.Handler {
	type request struct {
		Login string `json:"login" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if err := accounts.RequestReset(r.Context(), data.Login); err != nil {
			writeError(w, logger, "Failed to request password reset", err)
			return
		}

		render.JSONWithStatus(w, messageResponse{Message: "Verification code sent"}, http.StatusAccepted)
	})
}

func handlePasswordReset(accounts accountService, logger logger.Logger) http.Handler {
	type request struct {
		Login    string `json:"login" validate:"required"`
		Code     string `json:"code" validate:"required,len=6,numeric"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		// Code is single use, check password before spending it
		if err := accounts.ValidatePassword(data.Password); err != nil {
			writeError(w, logger, "Weak new password", err)
			return
		}

		account, err := accounts.VerifyCode(r.Context(), data.Login, data.Code)
		if err != nil {
			writeError(w, logger, "Failed to verify code", err)
			return
		}

		if err := accounts.SetNewPassword(r.Context(), account, data.Password); err != nil {
			writeError(w, logger, "Failed to set new password", err)
			return
		}

		render.JSON(w, messageResponse{Message: "Password reset successfully"})
	})
}
