package friends

import "errors"

var (
	// ErrRequestUnavailable covers a request that does not exist, is not
	// addressed to the caller, or was already resolved. The cases are not
	// told apart so non-participants learn nothing about request ids.
	ErrRequestUnavailable = errors.New("friend request not found or already resolved")

	// ErrNotAuthorized is returned when the caller does not own the
	// friendship row it tries to remove.
	ErrNotAuthorized = errors.New("not authorized to modify this friendship")

	// ErrAsymmetricPair aborts a transition whose friendship pair failed
	// verification.
	ErrAsymmetricPair = errors.New("friendship pair is not symmetric")
)

// Messages carried by ProposeResult.
const (
	MessageSent          = "friend request sent"
	ReasonNoSuchUser     = "no such user"
	ReasonSelf           = "cannot friend self"
	ReasonAlreadyFriends = "already friends"
	ReasonPending        = "request already pending"
)
