package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/friends"
	"github.com/jason-s-yu/sipstreak/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(from, to uuid.UUID) *models.FriendRequest {
	now := time.Now().UTC()
	return &models.FriendRequest{
		ID:         uuid.New(),
		SenderID:   from,
		ReceiverID: to,
		Status:     models.RequestPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestRunInTxRollsBack(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	req := newRequest(a, b)
	require.NoError(t, s.InsertRequest(ctx, req))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(tx friends.Tx) error {
		_, err := tx.ClaimRequest(ctx, req.ID, b, models.RequestAccepted)
		require.NoError(t, err)
		require.NoError(t, tx.InsertFriendshipPair(ctx, a, b, time.Now()))
		require.NoError(t, tx.DeleteRequest(ctx, req.ID))
		return boom
	})
	require.ErrorIs(t, err, boom)

	ab, ba, err := s.CountFriendshipRows(ctx, a, b)
	require.NoError(t, err)
	assert.Zero(t, ab)
	assert.Zero(t, ba)

	got, err := s.FindPendingRequest(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, got.Status)
	assert.Len(t, s.friendships, 0)
}

func TestPendingRequestUniquePerPair(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, s.InsertRequest(ctx, newRequest(a, b)))
	err := s.InsertRequest(ctx, newRequest(b, a))
	assert.ErrorIs(t, err, friends.ErrDuplicate)
	assert.Error(t, s.InsertRequest(ctx, newRequest(a, a)))
}

func TestClaimRequestConditions(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	req := newRequest(a, b)
	require.NoError(t, s.InsertRequest(ctx, req))

	_, err := s.ClaimRequest(ctx, req.ID, a, models.RequestAccepted)
	assert.ErrorIs(t, err, friends.ErrNotFound)

	claimed, err := s.ClaimRequest(ctx, req.ID, b, models.RequestRejected)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, claimed.Status)

	_, err = s.ClaimRequest(ctx, req.ID, b, models.RequestAccepted)
	assert.ErrorIs(t, err, friends.ErrNotFound)

	// a claimed request no longer occupies the pending slot
	require.NoError(t, s.InsertRequest(ctx, newRequest(b, a)))
}

func TestFriendshipPair(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, s.InsertFriendshipPair(ctx, a, b, time.Now()))
	require.NoError(t, s.InsertFriendshipPair(ctx, b, a, time.Now()))
	ab, ba, err := s.CountFriendshipRows(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, 1, ab)
	assert.Equal(t, 1, ba)

	f, err := s.GetFriendshipByPair(ctx, a, b)
	require.NoError(t, err)
	got, err := s.GetFriendship(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got.FriendID)

	n, err := s.DeleteFriendshipPair(ctx, b, a)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = s.DeleteFriendshipPair(ctx, a, b)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.GetFriendship(ctx, f.ID)
	assert.ErrorIs(t, err, friends.ErrNotFound)
}

func TestListingsCarryProfiles(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice := models.User{Email: "Alice@Example.com", DisplayName: "alice"}
	bob := models.User{Email: "bob@example.com", DisplayName: "bob"}
	require.NoError(t, s.CreateUser(ctx, &alice))
	require.NoError(t, s.CreateUser(ctx, &bob))

	dup := models.User{Email: "alice@example.com"}
	assert.ErrorIs(t, s.CreateUser(ctx, &dup), friends.ErrDuplicate)

	id, found, err := s.ResolveEmail(ctx, " ALICE@example.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, alice.ID, id)
	_, found, err = s.ResolveEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.InsertRequest(ctx, newRequest(alice.ID, bob.ID)))
	views, err := s.ListRequests(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "incoming", views[0].Direction)
	assert.Equal(t, "alice", views[0].Counterpart.DisplayName)

	views, err = s.ListRequests(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "outgoing", views[0].Direction)

	require.NoError(t, s.InsertFriendshipPair(ctx, alice.ID, bob.ID, time.Now()))
	fv, err := s.ListFriends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, fv, 1)
	assert.Equal(t, bob.ID, fv[0].Friend.ID)
	assert.Equal(t, alice.ID, fv[0].UserID)
}

func TestCreateUserStoresNormalizedEmail(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := models.User{Email: "  Dana@Example.COM "}
	require.NoError(t, s.CreateUser(ctx, &u))
	assert.Equal(t, "dana@example.com", u.Email)

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", got.Email)
	assert.Equal(t, "dana@example.com", got.Profile().Email)
}
