package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jason-s-yu/sipstreak/internal/auth"
	"github.com/jason-s-yu/sipstreak/internal/friends"
	"github.com/jason-s-yu/sipstreak/internal/middleware"
	"github.com/jason-s-yu/sipstreak/internal/models"
)

const minPasswordLength = 8

type createUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// CreateUserHandler registers an account and returns its public profile.
func (s *APIServer) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	email := models.NormalizeEmail(req.Email)
	if !strings.Contains(email, "@") {
		http.Error(w, "invalid email", http.StatusBadRequest)
		return
	}
	if len(req.Password) < minPasswordLength {
		http.Error(w, "password too short", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.Logger.WithError(err).Error("failed to hash password")
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}

	user := models.User{
		Email:       email,
		Password:    hash,
		DisplayName: strings.TrimSpace(req.DisplayName),
		AvatarURL:   strings.TrimSpace(req.AvatarURL),
	}
	if err := s.Users.CreateUser(r.Context(), &user); err != nil {
		if errors.Is(err, friends.ErrDuplicate) {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		s.Logger.WithError(err).Error("failed to create user")
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, user.Profile())
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler handles user login requests. It expects a JSON payload with email and password,
// and returns a JSON response with an authentication token if the login is successful.
//
// Request payload:
//
//	{
//	  "email": "someone@example.com",
//	  "password": "password"
//	}
//
// Response payload:
//
//	{
//	  "token": "{jwt}"
//	}
//
// The token is also sent via the Cookie header.
func (s *APIServer) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	user, err := s.Users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, friends.ErrNotFound) {
			s.Logger.WithError(err).Error("failed to load user for login")
		}
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}
	match, err := auth.ComparePasswordAndHash(req.Password, user.Password)
	if err != nil || !match {
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	token, err := s.Sessions.CreateJWT(user.ID)
	if err != nil {
		s.Logger.WithError(err).Error("failed to create jwt")
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookie,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   int(s.Sessions.TTL.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// MeHandler returns the caller's own profile.
func (s *APIServer) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	user, err := s.Users.GetUserByID(r.Context(), userID)
	if errors.Is(err, friends.ErrNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.Logger.WithError(err).Error("failed to load user")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}
