package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/jfelder/stockroom/internal/auth"
	"github.com/jfelder/stockroom/internal/store"
)

const minPasswordLength = 8

type AuthHandler struct {
	userStore  *store.UserStore
	tokenStore *store.TokenStore
	logger     *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ts *store.TokenStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:  us,
		tokenStore: ts,
		logger:     logger,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON body."})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	fe := fieldErrors{}
	if req.Name == "" {
		fe.add("name", "The name field is required.")
	}
	if len(req.Name) > 255 {
		fe.add("name", "The name may not be greater than 255 characters.")
	}
	if req.Email == "" {
		fe.add("email", "The email field is required.")
	} else if !strings.Contains(req.Email, "@") {
		fe.add("email", "The email must be a valid email address.")
	}
	if req.Password == "" {
		fe.add("password", "The password field is required.")
	} else if len(req.Password) < minPasswordLength {
		fe.add("password", "The password must be at least 8 characters.")
	}
	if len(fe) > 0 {
		writeValidationErrors(w, fe)
		return
	}

	existing, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal error."})
		return
	}
	if existing != nil {
		fe.add("email", "The email has already been taken.")
		writeValidationErrors(w, fe)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal error."})
		return
	}

	if _, err := h.userStore.Create(req.Name, req.Email, string(hash)); err != nil {
		h.logger.Error("create user", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal error."})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid JSON body."})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	fe := fieldErrors{}
	if req.Email == "" {
		fe.add("email", "The email field is required.")
	}
	if req.Password == "" {
		fe.add("password", "The password field is required.")
	}
	if len(fe) > 0 {
		writeValidationErrors(w, fe)
		return
	}

	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal error."})
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid login details"})
		return
	}

	token, err := h.tokenStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal error."})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  true,
		"message": "User logged in successfully",
		"token":   token.Token,
		"user":    user,
	})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.userStore.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("profile lookup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal error."})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  true,
		"message": "User profile fetched successfully",
		"data":    user,
	})
}

// Logout revokes the token presented on this request. Other tokens the user
// holds (other devices) stay valid.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.tokenStore.Delete(auth.TokenID(r.Context())); err != nil {
		h.logger.Error("delete token", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  true,
		"message": "User logged out successfully",
	})
}
