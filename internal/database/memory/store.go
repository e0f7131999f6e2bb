// Package memory is an in-process relationship and profile store. It keeps
// the same guarantees as the Postgres store: one lock serializes every
// operation and RunInTx undoes its writes when the callback fails.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/friends"
	"github.com/jason-s-yu/sipstreak/internal/models"
)

type pairKey [2]uuid.UUID

func unordered(a, b uuid.UUID) pairKey {
	lo, hi := models.CanonicalPair(a, b)
	return pairKey{lo, hi}
}

// Store implements friends.Store, friends.Resolver and the account store
// used by the HTTP handlers.
type Store struct {
	mu sync.Mutex

	users  map[uuid.UUID]models.User
	emails map[string]uuid.UUID

	requests map[uuid.UUID]models.FriendRequest
	pending  map[pairKey]uuid.UUID // unordered pair -> pending request id

	friendships map[uuid.UUID]models.Friendship
	directed    map[pairKey]uuid.UUID // (user_id, friend_id) -> friendship id
}

func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]models.User),
		emails:      make(map[string]uuid.UUID),
		requests:    make(map[uuid.UUID]models.FriendRequest),
		pending:     make(map[pairKey]uuid.UUID),
		friendships: make(map[uuid.UUID]models.Friendship),
		directed:    make(map[pairKey]uuid.UUID),
	}
}

// txn applies writes directly to the maps of s; the caller holds s.mu. When
// undo is non-nil every write records its inverse there.
type txn struct {
	s    *Store
	undo *[]func()
}

func (t txn) record(fn func()) {
	if t.undo != nil {
		*t.undo = append(*t.undo, fn)
	}
}

// RunInTx runs fn with the store locked and rolls back every write fn made
// if it returns an error.
func (s *Store) RunInTx(ctx context.Context, fn func(tx friends.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var undo []func()
	if err := fn(txn{s: s, undo: &undo}); err != nil {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		return err
	}
	return nil
}

// direct runs fn against the store outside any transaction.
func (s *Store) direct(ctx context.Context, fn func(t txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(txn{s: s})
}

// LockPair is a no-op: s.mu already serializes every transaction.
func (t txn) LockPair(ctx context.Context, a, b uuid.UUID) error {
	return nil
}

func (t txn) FriendshipExists(ctx context.Context, a, b uuid.UUID) (bool, error) {
	_, ab := t.s.directed[pairKey{a, b}]
	_, ba := t.s.directed[pairKey{b, a}]
	return ab || ba, nil
}

func (t txn) FindPendingRequest(ctx context.Context, a, b uuid.UUID) (*models.FriendRequest, error) {
	id, ok := t.s.pending[unordered(a, b)]
	if !ok {
		return nil, friends.ErrNotFound
	}
	req := t.s.requests[id]
	return &req, nil
}

func (t txn) InsertRequest(ctx context.Context, req *models.FriendRequest) error {
	if req.SenderID == req.ReceiverID {
		return fmt.Errorf("insert friend request: sender equals receiver")
	}
	if _, ok := t.s.requests[req.ID]; ok {
		return fmt.Errorf("insert friend request %s: %w", req.ID, friends.ErrDuplicate)
	}
	key := unordered(req.SenderID, req.ReceiverID)
	if req.Status == models.RequestPending {
		if _, ok := t.s.pending[key]; ok {
			return fmt.Errorf("insert friend request: %w", friends.ErrDuplicate)
		}
		t.s.pending[key] = req.ID
	}
	t.s.requests[req.ID] = *req
	id := req.ID
	t.record(func() {
		delete(t.s.requests, id)
		if t.s.pending[key] == id {
			delete(t.s.pending, key)
		}
	})
	return nil
}

func (t txn) ClaimRequest(ctx context.Context, id, receiverID uuid.UUID, to models.RequestStatus) (*models.FriendRequest, error) {
	req, ok := t.s.requests[id]
	if !ok || req.ReceiverID != receiverID || req.Status != models.RequestPending {
		return nil, friends.ErrNotFound
	}
	prev := req
	key := unordered(req.SenderID, req.ReceiverID)

	req.Status = to
	req.UpdatedAt = time.Now().UTC()
	t.s.requests[id] = req
	delete(t.s.pending, key)
	t.record(func() {
		t.s.requests[id] = prev
		t.s.pending[key] = id
	})
	return &req, nil
}

func (t txn) DeletePendingRequest(ctx context.Context, id, senderID uuid.UUID) (*models.FriendRequest, error) {
	req, ok := t.s.requests[id]
	if !ok || req.SenderID != senderID || req.Status != models.RequestPending {
		return nil, friends.ErrNotFound
	}
	if err := t.DeleteRequest(ctx, id); err != nil {
		return nil, err
	}
	return &req, nil
}

func (t txn) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	req, ok := t.s.requests[id]
	if !ok {
		return nil
	}
	key := unordered(req.SenderID, req.ReceiverID)
	wasPending := t.s.pending[key] == id

	delete(t.s.requests, id)
	if wasPending {
		delete(t.s.pending, key)
	}
	t.record(func() {
		t.s.requests[id] = req
		if wasPending {
			t.s.pending[key] = id
		}
	})
	return nil
}

func (t txn) insertFriendshipRow(userID, friendID uuid.UUID, at time.Time) {
	key := pairKey{userID, friendID}
	if _, ok := t.s.directed[key]; ok {
		return
	}
	f := models.Friendship{
		ID:        uuid.New(),
		UserID:    userID,
		FriendID:  friendID,
		CreatedAt: at,
	}
	t.s.friendships[f.ID] = f
	t.s.directed[key] = f.ID
	t.record(func() {
		delete(t.s.friendships, f.ID)
		delete(t.s.directed, key)
	})
}

func (t txn) InsertFriendshipPair(ctx context.Context, a, b uuid.UUID, at time.Time) error {
	if a == b {
		return fmt.Errorf("insert friendship: user equals friend")
	}
	t.insertFriendshipRow(a, b, at)
	t.insertFriendshipRow(b, a, at)
	return nil
}

func (t txn) CountFriendshipRows(ctx context.Context, a, b uuid.UUID) (int, int, error) {
	var ab, ba int
	if _, ok := t.s.directed[pairKey{a, b}]; ok {
		ab = 1
	}
	if _, ok := t.s.directed[pairKey{b, a}]; ok {
		ba = 1
	}
	return ab, ba, nil
}

func (t txn) GetFriendship(ctx context.Context, id uuid.UUID) (*models.Friendship, error) {
	f, ok := t.s.friendships[id]
	if !ok {
		return nil, friends.ErrNotFound
	}
	return &f, nil
}

func (t txn) GetFriendshipByPair(ctx context.Context, userID, friendID uuid.UUID) (*models.Friendship, error) {
	id, ok := t.s.directed[pairKey{userID, friendID}]
	if !ok {
		return nil, friends.ErrNotFound
	}
	f := t.s.friendships[id]
	return &f, nil
}

func (t txn) DeleteFriendshipPair(ctx context.Context, a, b uuid.UUID) (int64, error) {
	var n int64
	for _, key := range []pairKey{{a, b}, {b, a}} {
		id, ok := t.s.directed[key]
		if !ok {
			continue
		}
		f := t.s.friendships[id]
		delete(t.s.friendships, id)
		delete(t.s.directed, key)
		k := key
		t.record(func() {
			t.s.friendships[f.ID] = f
			t.s.directed[k] = f.ID
		})
		n++
	}
	return n, nil
}

// Store-level wrappers run each Tx operation on its own.

func (s *Store) LockPair(ctx context.Context, a, b uuid.UUID) error {
	return nil
}

func (s *Store) FriendshipExists(ctx context.Context, a, b uuid.UUID) (ok bool, err error) {
	err = s.direct(ctx, func(t txn) error {
		ok, err = t.FriendshipExists(ctx, a, b)
		return err
	})
	return ok, err
}

func (s *Store) FindPendingRequest(ctx context.Context, a, b uuid.UUID) (req *models.FriendRequest, err error) {
	err = s.direct(ctx, func(t txn) error {
		req, err = t.FindPendingRequest(ctx, a, b)
		return err
	})
	return req, err
}

func (s *Store) InsertRequest(ctx context.Context, req *models.FriendRequest) error {
	return s.direct(ctx, func(t txn) error {
		return t.InsertRequest(ctx, req)
	})
}

func (s *Store) ClaimRequest(ctx context.Context, id, receiverID uuid.UUID, to models.RequestStatus) (req *models.FriendRequest, err error) {
	err = s.direct(ctx, func(t txn) error {
		req, err = t.ClaimRequest(ctx, id, receiverID, to)
		return err
	})
	return req, err
}

func (s *Store) DeletePendingRequest(ctx context.Context, id, senderID uuid.UUID) (req *models.FriendRequest, err error) {
	err = s.direct(ctx, func(t txn) error {
		req, err = t.DeletePendingRequest(ctx, id, senderID)
		return err
	})
	return req, err
}

func (s *Store) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	return s.direct(ctx, func(t txn) error {
		return t.DeleteRequest(ctx, id)
	})
}

func (s *Store) InsertFriendshipPair(ctx context.Context, a, b uuid.UUID, at time.Time) error {
	return s.direct(ctx, func(t txn) error {
		return t.InsertFriendshipPair(ctx, a, b, at)
	})
}

func (s *Store) CountFriendshipRows(ctx context.Context, a, b uuid.UUID) (ab, ba int, err error) {
	err = s.direct(ctx, func(t txn) error {
		ab, ba, err = t.CountFriendshipRows(ctx, a, b)
		return err
	})
	return ab, ba, err
}

func (s *Store) GetFriendship(ctx context.Context, id uuid.UUID) (f *models.Friendship, err error) {
	err = s.direct(ctx, func(t txn) error {
		f, err = t.GetFriendship(ctx, id)
		return err
	})
	return f, err
}

func (s *Store) GetFriendshipByPair(ctx context.Context, userID, friendID uuid.UUID) (f *models.Friendship, err error) {
	err = s.direct(ctx, func(t txn) error {
		f, err = t.GetFriendshipByPair(ctx, userID, friendID)
		return err
	})
	return f, err
}

func (s *Store) DeleteFriendshipPair(ctx context.Context, a, b uuid.UUID) (n int64, err error) {
	err = s.direct(ctx, func(t txn) error {
		n, err = t.DeleteFriendshipPair(ctx, a, b)
		return err
	})
	return n, err
}

// ListRequests returns the pending requests involving userID, newest first.
func (s *Store) ListRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	var views []models.FriendRequestView
	err := s.direct(ctx, func(t txn) error {
		for _, id := range s.pending {
			req := s.requests[id]
			if req.SenderID != userID && req.ReceiverID != userID {
				continue
			}
			dir := "incoming"
			if req.SenderID == userID {
				dir = "outgoing"
			}
			u := s.users[req.Counterpart(userID)]
			views = append(views, models.FriendRequestView{
				FriendRequest: req,
				Direction:     dir,
				Counterpart:   u.Profile(),
			})
		}
		return nil
	})
	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views, err
}

// ListFriends returns userID's side of each friendship, newest first.
func (s *Store) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendView, error) {
	var views []models.FriendView
	err := s.direct(ctx, func(t txn) error {
		for _, f := range s.friendships {
			if f.UserID != userID {
				continue
			}
			u := s.users[f.FriendID]
			views = append(views, models.FriendView{Friendship: f, Friend: u.Profile()})
		}
		return nil
	})
	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views, err
}
