package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a FriendRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transition exists out of s.
func (s RequestStatus) Terminal() bool {
	return s == RequestAccepted || s == RequestRejected
}

// FriendRequest is a directed proposal from SenderID to ReceiverID.
type FriendRequest struct {
	ID         uuid.UUID     `json:"id"`
	SenderID   uuid.UUID     `json:"sender_id"`
	ReceiverID uuid.UUID     `json:"receiver_id"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Counterpart returns the other participant of the request as seen by userID.
func (r *FriendRequest) Counterpart(userID uuid.UUID) uuid.UUID {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}

// Friendship is one direction of a symmetric friendship pair. A row (A, B)
// exists iff a row (B, A) exists.
type Friendship struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	FriendID  uuid.UUID `json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendRequestView annotates a request with the counterpart's public profile.
type FriendRequestView struct {
	FriendRequest
	Direction   string  `json:"direction"` // "incoming" or "outgoing"
	Counterpart Profile `json:"counterpart"`
}

// FriendView annotates the caller's side of a friendship with the friend's profile.
type FriendView struct {
	Friendship
	Friend Profile `json:"friend"`
}

// CanonicalPair orders two ids so that an unordered pair has one key.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	for i := range a {
		if a[i] < b[i] {
			return a, b
		}
		if a[i] > b[i] {
			return b, a
		}
	}
	return a, b
}
