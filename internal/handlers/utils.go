package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jason-s-yu/sipstreak/internal/auth"
	"github.com/jason-s-yu/sipstreak/internal/friends"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// identity returns the verified caller. Routes without RequireIdentity never
// call it; a miss here is a wiring bug, answered with 401.
func identity(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
	}
	return id, ok
}

// pathUUID parses the named mux variable, answering 400 when malformed.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// writeEngineError maps engine errors to status codes. Store failures are
// already logged by the engine and surface as a generic 500.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, friends.ErrRequestUnavailable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, friends.ErrNotAuthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
