package handlers

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/feedwall-be/internal/apperr"
	"github.com/isdelr/feedwall-be/internal/auth"
	"github.com/isdelr/feedwall-be/internal/services"
)

// UserHandler handles signup and login.
type UserHandler struct {
	service services.UserServiceProvider
	tokens  *auth.TokenService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider, tokens *auth.TokenService) *UserHandler {
	return &UserHandler{service: service, tokens: tokens}
}

// SignupPayload defines the structure for signup requests.
type SignupPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles new user registration.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload SignupPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}

	if err := validateSignup(payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.CreateUser(payload.Email, payload.Password, payload.Name)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed to register user")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created!",
		"userId":  user.ID,
	})
}

// Login handles user authentication and token issuance.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apperr.Validation("Invalid request body"))
		return
	}

	user, err := h.service.AuthenticateUser(payload.Email, payload.Password)
	if err != nil {
		log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
		writeError(w, apperr.Unauthenticated("Invalid credentials"))
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to issue token")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":  token,
		"userId": user.ID,
	})
}

// validateSignup applies the signup field rules: a parseable email address,
// password of at least 5 characters, name of at least 3.
func validateSignup(p SignupPayload) error {
	var fields []string
	if _, err := mail.ParseAddress(strings.TrimSpace(p.Email)); err != nil {
		fields = append(fields, "email")
	}
	if len(strings.TrimSpace(p.Password)) < 5 {
		fields = append(fields, "password")
	}
	if len(strings.TrimSpace(p.Name)) < 3 {
		fields = append(fields, "name")
	}
	if len(fields) > 0 {
		return apperr.Validation("Validation failed.", fields...)
	}
	return nil
}
