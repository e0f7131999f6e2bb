// internal/handlers/api_server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jason-s-yu/sipstreak/internal/auth"
	"github.com/jason-s-yu/sipstreak/internal/friends"
	"github.com/jason-s-yu/sipstreak/internal/metrics"
	"github.com/jason-s-yu/sipstreak/internal/middleware"
	"github.com/jason-s-yu/sipstreak/internal/models"
	"github.com/jason-s-yu/sipstreak/internal/notify"
	"github.com/sirupsen/logrus"
)

// UserStore is the profile store behind the account endpoints.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// APIServer holds everything the HTTP surface needs. Every friend route
// delegates to Engine; handlers only translate HTTP to engine calls.
type APIServer struct {
	Engine   *friends.Engine
	Users    UserStore
	Sessions *auth.Sessions
	Bus      *notify.Bus
	Limiter  *middleware.RateLimiter
	Logger   *logrus.Logger

	// OriginPatterns is passed to websocket.Accept.
	OriginPatterns []string
}

// Routes builds the router.
func (s *APIServer) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.LogMiddleware(s.Logger))

	// public endpoints
	r.HandleFunc("/user/create", s.CreateUserHandler).Methods(http.MethodPost)
	r.HandleFunc("/user/login", s.LoginHandler).Methods(http.MethodPost)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(middleware.RequireIdentity(s.Sessions, s.Logger))

	authed.HandleFunc("/user/me", s.MeHandler).Methods(http.MethodGet)

	// friend endpoints
	send := http.Handler(http.HandlerFunc(s.SendFriendRequestHandler))
	if s.Limiter != nil {
		send = s.Limiter.Handler(send)
	}
	authed.Handle("/friends/requests", send).Methods(http.MethodPost)
	authed.HandleFunc("/friends/requests", s.ListFriendRequestsHandler).Methods(http.MethodGet)
	authed.HandleFunc("/friends/requests/{id}/respond", s.RespondFriendRequestHandler).Methods(http.MethodPost)
	authed.HandleFunc("/friends/requests/{id}", s.CancelFriendRequestHandler).Methods(http.MethodDelete)
	authed.HandleFunc("/friends", s.ListFriendsHandler).Methods(http.MethodGet)
	authed.HandleFunc("/friends/status/{userID}", s.RelationshipHandler).Methods(http.MethodGet)
	authed.HandleFunc("/friends/ws", s.FriendEventsWSHandler).Methods(http.MethodGet)
	authed.HandleFunc("/friends/{id}", s.RemoveFriendHandler).Methods(http.MethodDelete)

	return r
}
