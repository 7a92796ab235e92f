package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/piacobelli14/PSYCHE-API/internal/domain"
	"github.com/piacobelli14/PSYCHE-API/internal/service"
)

// AuthHandler serves the clinician credential surface: login, registration
// and the password-reset flow.
type AuthHandler struct {
	auth   *service.AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readBodyJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	ok, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Error("login verification failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Error connecting to the database. Please try again later.")
		return
	}
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "These login credentials are incorrect. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *AuthHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Username  string `json:"username"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Password  string `json:"password"`
		Image     string `json:"image"`
	}
	if err := readBodyJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Username == "" || req.FirstName == "" || req.LastName == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Missing required registration info.")
		return
	}

	err := h.auth.Register(r.Context(), &domain.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Image:     req.Image,
	}, req.Password)
	if err != nil {
		if err == domain.ErrConflict {
			writeMessage(w, http.StatusConflict, "Email or username is already in use.")
			return
		}
		h.logger.Error("user registration failed",
			zap.String("username", req.Username),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readBodyJSON(r, &req); err != nil || req.Email == "" {
		writeMessage(w, http.StatusBadRequest, "email is required")
		return
	}

	issue, err := h.auth.RequestPasswordReset(r.Context(), req.Email)
	if err == domain.ErrNotFound {
		writeMessage(w, http.StatusUnauthorized, "Email not found.")
		return
	}
	if err != nil {
		h.logger.Error("password reset request failed", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "Password reset code sent.",
		"resetCode":       issue.Code,
		"resetExpiration": issue.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		NewPassword string `json:"newPassword"`
	}
	if err := readBodyJSON(r, &req); err != nil || req.Email == "" || req.NewPassword == "" {
		writeMessage(w, http.StatusBadRequest, "email and newPassword are required")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), req.Email, req.NewPassword); err != nil {
		h.logger.Error("password change failed", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}
