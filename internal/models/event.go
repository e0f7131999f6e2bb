package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a change to a request or friendship row.
type EventType string

const (
	EventRequestCreated    EventType = "friend_request.created"
	EventRequestAccepted   EventType = "friend_request.accepted"
	EventRequestRejected   EventType = "friend_request.rejected"
	EventRequestCancelled  EventType = "friend_request.cancelled"
	EventFriendshipRemoved EventType = "friendship.removed"
)

// Event is the change notification delivered to both participants. It only
// says what changed; consumers re-fetch the lists to reconcile.
type Event struct {
	Type         EventType   `json:"type"`
	RequestID    *uuid.UUID  `json:"request_id,omitempty"`
	FriendshipID *uuid.UUID  `json:"friendship_id,omitempty"`
	Recipients   []uuid.UUID `json:"recipients"`
	Timestamp    time.Time   `json:"timestamp"`
}
