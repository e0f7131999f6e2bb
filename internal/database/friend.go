package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/sipstreak/internal/friends"
	"github.com/jason-s-yu/sipstreak/internal/models"
)

const requestColumns = `id, sender_id, receiver_id, status, created_at, updated_at`

func scanRequest(row pgx.Row) (*models.FriendRequest, error) {
	var (
		r      models.FriendRequest
		status string
	)
	if err := row.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	r.Status = models.RequestStatus(status)
	return &r, nil
}

func scanFriendship(row pgx.Row) (*models.Friendship, error) {
	var f models.Friendship
	if err := row.Scan(&f.ID, &f.UserID, &f.FriendID, &f.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &f, nil
}

// LockPair takes a transaction-scoped advisory lock keyed on the canonical
// pair. Outside a transaction it is released as soon as the statement ends.
func (q *queries) LockPair(ctx context.Context, a, b uuid.UUID) error {
	lo, hi := models.CanonicalPair(a, b)
	key := "friend_pair:" + lo.String() + ":" + hi.String()
	if _, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock friend pair: %w", err)
	}
	return nil
}

func (q *queries) FriendshipExists(ctx context.Context, a, b uuid.UUID) (bool, error) {
	const stmt = `
		SELECT EXISTS (
			SELECT 1 FROM friendships
			WHERE (user_id = $1 AND friend_id = $2)
			   OR (user_id = $2 AND friend_id = $1)
		)
	`
	var ok bool
	if err := q.db.QueryRow(ctx, stmt, a, b).Scan(&ok); err != nil {
		return false, fmt.Errorf("friendship exists: %w", err)
	}
	return ok, nil
}

func (q *queries) FindPendingRequest(ctx context.Context, a, b uuid.UUID) (*models.FriendRequest, error) {
	stmt := `
		SELECT ` + requestColumns + `
		FROM friend_requests
		WHERE status = 'pending'
		  AND ((sender_id = $1 AND receiver_id = $2)
		    OR (sender_id = $2 AND receiver_id = $1))
	`
	return scanRequest(q.db.QueryRow(ctx, stmt, a, b))
}

// InsertRequest relies on friend_requests_pending_pair_idx to reject a
// second pending request for the same unordered pair.
func (q *queries) InsertRequest(ctx context.Context, req *models.FriendRequest) error {
	const stmt = `
		INSERT INTO friend_requests (id, sender_id, receiver_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.db.Exec(ctx, stmt,
		req.ID, req.SenderID, req.ReceiverID, string(req.Status), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert friend request: %w", mapErr(err))
	}
	return nil
}

func (q *queries) ClaimRequest(ctx context.Context, id, receiverID uuid.UUID, to models.RequestStatus) (*models.FriendRequest, error) {
	stmt := `
		UPDATE friend_requests
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND receiver_id = $2 AND status = 'pending'
		RETURNING ` + requestColumns
	return scanRequest(q.db.QueryRow(ctx, stmt, id, receiverID, string(to)))
}

func (q *queries) DeletePendingRequest(ctx context.Context, id, senderID uuid.UUID) (*models.FriendRequest, error) {
	stmt := `
		DELETE FROM friend_requests
		WHERE id = $1 AND sender_id = $2 AND status = 'pending'
		RETURNING ` + requestColumns
	return scanRequest(q.db.QueryRow(ctx, stmt, id, senderID))
}

func (q *queries) DeleteRequest(ctx context.Context, id uuid.UUID) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM friend_requests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	return nil
}

func (q *queries) InsertFriendshipPair(ctx context.Context, a, b uuid.UUID, at time.Time) error {
	const stmt = `
		INSERT INTO friendships (id, user_id, friend_id, created_at)
		VALUES ($1, $3, $4, $5), ($2, $4, $3, $5)
		ON CONFLICT (user_id, friend_id) DO NOTHING
	`
	if _, err := q.db.Exec(ctx, stmt, uuid.New(), uuid.New(), a, b, at); err != nil {
		return fmt.Errorf("insert friendship pair: %w", mapErr(err))
	}
	return nil
}

func (q *queries) CountFriendshipRows(ctx context.Context, a, b uuid.UUID) (int, int, error) {
	const stmt = `
		SELECT
			count(*) FILTER (WHERE user_id = $1 AND friend_id = $2),
			count(*) FILTER (WHERE user_id = $2 AND friend_id = $1)
		FROM friendships
		WHERE (user_id = $1 AND friend_id = $2)
		   OR (user_id = $2 AND friend_id = $1)
	`
	var ab, ba int64
	if err := q.db.QueryRow(ctx, stmt, a, b).Scan(&ab, &ba); err != nil {
		return 0, 0, fmt.Errorf("count friendship rows: %w", err)
	}
	return int(ab), int(ba), nil
}

func (q *queries) GetFriendship(ctx context.Context, id uuid.UUID) (*models.Friendship, error) {
	const stmt = `SELECT id, user_id, friend_id, created_at FROM friendships WHERE id = $1`
	return scanFriendship(q.db.QueryRow(ctx, stmt, id))
}

func (q *queries) GetFriendshipByPair(ctx context.Context, userID, friendID uuid.UUID) (*models.Friendship, error) {
	const stmt = `
		SELECT id, user_id, friend_id, created_at
		FROM friendships
		WHERE user_id = $1 AND friend_id = $2
	`
	return scanFriendship(q.db.QueryRow(ctx, stmt, userID, friendID))
}

// DeleteFriendshipPair removes both directions in one statement.
func (q *queries) DeleteFriendshipPair(ctx context.Context, a, b uuid.UUID) (int64, error) {
	const stmt = `
		DELETE FROM friendships
		WHERE (user_id = $1 AND friend_id = $2)
		   OR (user_id = $2 AND friend_id = $1)
	`
	ct, err := q.db.Exec(ctx, stmt, a, b)
	if err != nil {
		return 0, fmt.Errorf("delete friendship pair: %w", err)
	}
	return ct.RowsAffected(), nil
}

// ListRequests returns pending requests involving userID with the
// counterpart's profile, newest first.
func (q *queries) ListRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestView, error) {
	const stmt = `
		SELECT r.id, r.sender_id, r.receiver_id, r.status, r.created_at, r.updated_at,
		       u.id, u.email, u.display_name, u.avatar_url
		FROM friend_requests r
		JOIN users u
		  ON u.id = CASE WHEN r.sender_id = $1 THEN r.receiver_id ELSE r.sender_id END
		WHERE r.status = 'pending'
		  AND (r.sender_id = $1 OR r.receiver_id = $1)
		ORDER BY r.created_at DESC
	`
	rows, err := q.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	defer rows.Close()

	views := []models.FriendRequestView{}
	for rows.Next() {
		var (
			v      models.FriendRequestView
			status string
		)
		err := rows.Scan(
			&v.ID, &v.SenderID, &v.ReceiverID, &status, &v.CreatedAt, &v.UpdatedAt,
			&v.Counterpart.ID, &v.Counterpart.Email, &v.Counterpart.DisplayName, &v.Counterpart.AvatarURL,
		)
		if err != nil {
			return nil, err
		}
		v.Status = models.RequestStatus(status)
		v.Direction = "incoming"
		if v.SenderID == userID {
			v.Direction = "outgoing"
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// ListFriends returns userID's side of each friendship, newest first.
func (q *queries) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendView, error) {
	const stmt = `
		SELECT f.id, f.user_id, f.friend_id, f.created_at,
		       u.id, u.email, u.display_name, u.avatar_url
		FROM friendships f
		JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC
	`
	rows, err := q.db.Query(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	views := []models.FriendView{}
	for rows.Next() {
		var v models.FriendView
		err := rows.Scan(
			&v.ID, &v.UserID, &v.FriendID, &v.CreatedAt,
			&v.Friend.ID, &v.Friend.Email, &v.Friend.DisplayName, &v.Friend.AvatarURL,
		)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

var _ friends.Store = (*Store)(nil)
