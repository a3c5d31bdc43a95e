package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vrsandeep/pagesum-go/internal/auth"
	"github.com/vrsandeep/pagesum-go/internal/models"
	"github.com/vrsandeep/pagesum-go/internal/store"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if !decodeJSON(w, r, &payload) {
		return
	}
	payload.Username = strings.TrimSpace(payload.Username)
	if payload.Username == "" || payload.Password == "" {
		RespondWithError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}
	token, err := auth.NewToken()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to create token")
		return
	}
	user, err := s.store.CreateUser(payload.Username, hash, token)
	if errors.Is(err, store.ErrUsernameTaken) {
		RespondWithError(w, http.StatusConflict, "Username already exists")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create user")
		RespondWithError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	RespondWithJSON(w, http.StatusOK, authResponse{
		Message:  "Registered Successfully",
		Username: user.Username,
		Token:    user.Token,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if !decodeJSON(w, r, &payload) {
		return
	}

	user, err := s.store.GetUserByUsername(payload.Username)
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Wrong credentials entered")
		return
	}
	if !auth.CheckPasswordHash(payload.Password, user.PasswordHash) {
		RespondWithError(w, http.StatusUnauthorized, "Wrong credentials entered")
		return
	}

	RespondWithJSON(w, http.StatusOK, authResponse{
		Message:  "Login successful",
		Username: user.Username,
		Token:    user.Token,
	})
}

// userForToken resolves the token carried in a backend request body.
func (s *Server) userForToken(w http.ResponseWriter, token string) (*models.User, bool) {
	user, err := s.store.GetUserByToken(token)
	if errors.Is(err, store.ErrUserNotFound) {
		RespondWithError(w, http.StatusUnauthorized, "Invalid token")
		return nil, false
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to look up token")
		RespondWithError(w, http.StatusInternalServerError, "Failed to look up user")
		return nil, false
	}
	return user, true
}
