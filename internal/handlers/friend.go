// internal/handlers/friend.go
package handlers

import (
	"encoding/json"
	"net/http"
)

// SendFriendRequestHandler proposes a friendship to the account owning an email.
//
// Request payload: { "email": "someone@example.com" }
// Every validation outcome is a 200 with { "success": bool, "message": string };
// only unexpected failures produce an error status.
func (s *APIServer) SendFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	res, err := s.Engine.Propose(r.Context(), userID, req.Email)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListFriendRequestsHandler returns the caller's pending requests, incoming
// and outgoing, with the counterpart's profile.
func (s *APIServer) ListFriendRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	views, err := s.Engine.Requests(r.Context(), userID)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Error("failed to list friend requests")
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// RespondFriendRequestHandler accepts or rejects a request addressed to the caller.
//
// Request payload: { "accept": true }
// 409 means the request does not exist, is not addressed to the caller, or
// was already resolved; clients should re-fetch.
func (s *APIServer) RespondFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	requestID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Accept *bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Accept == nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if _, err := s.Engine.Respond(r.Context(), requestID, userID, *req.Accept); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelFriendRequestHandler withdraws a pending request the caller sent.
func (s *APIServer) CancelFriendRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	requestID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.Engine.Cancel(r.Context(), requestID, userID); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFriendsHandler returns the caller's friendships with each friend's profile.
func (s *APIServer) ListFriendsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	views, err := s.Engine.Friends(r.Context(), userID)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Error("failed to list friends")
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// RemoveFriendHandler removes the friendship whose caller-side row is {id}.
// Repeating the call after success is a no-op.
func (s *APIServer) RemoveFriendHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	friendshipID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.Engine.Remove(r.Context(), userID, friendshipID); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RelationshipHandler reports how the caller relates to {userID}.
func (s *APIServer) RelationshipHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	otherID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	rel, err := s.Engine.Relationship(r.Context(), userID, otherID)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Error("failed to look up relationship")
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}
