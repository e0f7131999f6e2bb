package database

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/friends"
	"github.com/jason-s-yu/sipstreak/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to TEST_DATABASE_URL and applies the schema.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := ConnectDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := OpenSQL(pool)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(ctx, db))
	return NewStore(pool)
}

func createUser(t *testing.T, s *Store) *models.User {
	t.Helper()
	u := &models.User{
		Email:       uuid.NewString() + "@Example.com",
		Password:    "hash",
		DisplayName: "user",
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestPostgresUserLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s)

	id, found, err := s.ResolveEmail(ctx, "  "+u.Email)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, u.ID, id)

	_, found, err = s.ResolveEmail(ctx, uuid.NewString()+"@example.com")
	require.NoError(t, err)
	assert.False(t, found)

	dup := &models.User{Email: u.Email, Password: "hash"}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), friends.ErrDuplicate)

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	_, err = s.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, friends.ErrNotFound)
}

func TestPostgresPendingPairIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, b := createUser(t, s), createUser(t, s)

	now := time.Now().UTC()
	req := &models.FriendRequest{ID: uuid.New(), SenderID: a.ID, ReceiverID: b.ID, Status: models.RequestPending, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.InsertRequest(ctx, req))

	reverse := &models.FriendRequest{ID: uuid.New(), SenderID: b.ID, ReceiverID: a.ID, Status: models.RequestPending, CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, s.InsertRequest(ctx, reverse), friends.ErrDuplicate)
}

func TestPostgresEngineConcurrentAccept(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, b := createUser(t, s), createUser(t, s)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	e := friends.NewEngine(s, s, nil, logger)

	res, err := e.Propose(ctx, a.ID, a.Email)
	require.NoError(t, err)
	assert.Equal(t, friends.ReasonSelf, res.Message)

	res, err = e.Propose(ctx, a.ID, b.Email)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Respond(ctx, res.Request.ID, b.ID, true)
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, friends.ErrRequestUnavailable)
		}
	}
	assert.Equal(t, 1, won)

	ab, ba, err := s.CountFriendshipRows(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ab)
	assert.Equal(t, 1, ba)

	views, err := s.ListFriends(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, b.ID, views[0].Friend.ID)

	require.NoError(t, e.Remove(ctx, a.ID, views[0].ID))
	require.NoError(t, e.Remove(ctx, a.ID, views[0].ID))
	ab, ba, err = s.CountFriendshipRows(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Zero(t, ab)
	assert.Zero(t, ba)
}

func TestPostgresProposeRacingAccept(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	e := friends.NewEngine(s, s, nil, logger)

	for round := 0; round < 25; round++ {
		a, b := createUser(t, s), createUser(t, s)
		res, err := e.Propose(ctx, a.ID, b.Email)
		require.NoError(t, err)
		require.True(t, res.Success, res.Message)

		var (
			wg       sync.WaitGroup
			start    = make(chan struct{})
			proposal friends.ProposeResult
			propErr  error
			respErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, respErr = e.Respond(ctx, res.Request.ID, b.ID, true)
		}()
		go func() {
			defer wg.Done()
			<-start
			proposal, propErr = e.Propose(ctx, b.ID, a.Email)
		}()
		close(start)
		wg.Wait()

		require.NoError(t, respErr)
		require.NoError(t, propErr)
		assert.False(t, proposal.Success)
		assert.Contains(t, []string{friends.ReasonPending, friends.ReasonAlreadyFriends}, proposal.Message)

		ab, ba, err := s.CountFriendshipRows(ctx, a.ID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, ab)
		assert.Equal(t, 1, ba)
		_, err = s.FindPendingRequest(ctx, a.ID, b.ID)
		assert.ErrorIs(t, err, friends.ErrNotFound, "friends must not also have a pending request")
	}
}

func TestPostgresConcurrentProposalsForSamePair(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	e := friends.NewEngine(s, s, nil, logger)

	a, b := createUser(t, s), createUser(t, s)
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results [2]friends.ProposeResult
		errs    [2]error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		results[0], errs[0] = e.Propose(ctx, a.ID, b.Email)
	}()
	go func() {
		defer wg.Done()
		<-start
		results[1], errs[1] = e.Propose(ctx, b.ID, a.Email)
	}()
	close(start)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, results[0].Success != results[1].Success)

	views, err := s.ListRequests(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}
