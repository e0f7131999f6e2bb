package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/models"
)

// RelationshipState describes how two accounts relate from one side.
type RelationshipState string

const (
	RelationNone     RelationshipState = "none"
	RelationSelf     RelationshipState = "self"
	RelationFriends  RelationshipState = "friends"
	RelationOutgoing RelationshipState = "outgoing" // caller sent a pending request
	RelationIncoming RelationshipState = "incoming" // caller received a pending request
)

// Relationship reports the state between userID and otherID.
type Relationship struct {
	State     RelationshipState `json:"state"`
	RequestID *uuid.UUID        `json:"request_id,omitempty"`
}

// Requests lists the pending requests involving userID with the
// counterpart's public profile.
func (e *Engine) Requests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	views, err := e.store.ListRequests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	if views == nil {
		views = []models.FriendRequestView{}
	}
	return views, nil
}

// Friends lists userID's friendships with each friend's public profile.
func (e *Engine) Friends(ctx context.Context, userID uuid.UUID) ([]models.FriendView, error) {
	views, err := e.store.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	if views == nil {
		views = []models.FriendView{}
	}
	return views, nil
}

// Relationship looks up the current relation between two accounts.
func (e *Engine) Relationship(ctx context.Context, userID, otherID uuid.UUID) (Relationship, error) {
	if userID == otherID {
		return Relationship{State: RelationSelf}, nil
	}

	friends, err := e.store.FriendshipExists(ctx, userID, otherID)
	if err != nil {
		return Relationship{}, fmt.Errorf("check friendship: %w", err)
	}
	if friends {
		return Relationship{State: RelationFriends}, nil
	}

	req, err := e.store.FindPendingRequest(ctx, userID, otherID)
	if errors.Is(err, ErrNotFound) {
		return Relationship{State: RelationNone}, nil
	}
	if err != nil {
		return Relationship{}, fmt.Errorf("find pending request: %w", err)
	}

	state := RelationIncoming
	if req.SenderID == userID {
		state = RelationOutgoing
	}
	return Relationship{State: state, RequestID: &req.ID}, nil
}
