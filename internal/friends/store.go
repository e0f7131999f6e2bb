package friends

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/models"
)

var (
	// ErrNotFound is returned by a Store when a keyed lookup or a conditional
	// write matched no row.
	ErrNotFound = errors.New("friends: no matching row")

	// ErrDuplicate is returned by a Store when an insert violates a uniqueness
	// constraint, e.g. a second pending request for the same unordered pair.
	ErrDuplicate = errors.New("friends: duplicate row")
)

// Resolver maps an email address to an account id. A missing account is
// reported as found=false with a nil error.
type Resolver interface {
	ResolveEmail(ctx context.Context, email string) (id uuid.UUID, found bool, err error)
}

// Relay receives change notifications after a mutation has committed.
type Relay interface {
	Publish(ctx context.Context, ev models.Event) error
}

// Tx is the set of row operations the engine composes into transitions. A Tx
// handed to a RunInTx callback sees and writes a single consistent unit.
type Tx interface {
	// LockPair serializes transactions touching the unordered pair {a, b}
	// until the enclosing transaction ends.
	LockPair(ctx context.Context, a, b uuid.UUID) error

	// FriendshipExists reports whether any row of the pair {a, b} exists.
	FriendshipExists(ctx context.Context, a, b uuid.UUID) (bool, error)

	// FindPendingRequest returns the pending request for the unordered pair {a, b}.
	FindPendingRequest(ctx context.Context, a, b uuid.UUID) (*models.FriendRequest, error)

	InsertRequest(ctx context.Context, req *models.FriendRequest) error

	// ClaimRequest moves a pending request addressed to receiverID into the
	// given terminal status. It is one conditional write keyed on
	// id + receiver_id + status and returns ErrNotFound when it matched nothing.
	ClaimRequest(ctx context.Context, id, receiverID uuid.UUID, to models.RequestStatus) (*models.FriendRequest, error)

	// DeletePendingRequest removes a pending request sent by senderID in one
	// conditional delete and returns ErrNotFound when it matched nothing.
	DeletePendingRequest(ctx context.Context, id, senderID uuid.UUID) (*models.FriendRequest, error)

	DeleteRequest(ctx context.Context, id uuid.UUID) error

	// InsertFriendshipPair writes both (a, b) and (b, a). Rows that already
	// exist are left untouched.
	InsertFriendshipPair(ctx context.Context, a, b uuid.UUID, at time.Time) error

	// CountFriendshipRows returns the number of (a, b) rows and (b, a) rows.
	CountFriendshipRows(ctx context.Context, a, b uuid.UUID) (ab, ba int, err error)

	GetFriendship(ctx context.Context, id uuid.UUID) (*models.Friendship, error)
	GetFriendshipByPair(ctx context.Context, userID, friendID uuid.UUID) (*models.Friendship, error)

	// DeleteFriendshipPair removes both directions of {a, b} and returns the
	// number of rows removed.
	DeleteFriendshipPair(ctx context.Context, a, b uuid.UUID) (int64, error)
}

// Store is the relationship store. Its Tx methods run outside any
// transaction; RunInTx groups them atomically, rolling back when fn errors.
type Store interface {
	Tx
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	// ListRequests returns the pending requests involving userID, newest first.
	ListRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error)

	// ListFriends returns userID's side of each friendship, newest first.
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendView, error)
}
