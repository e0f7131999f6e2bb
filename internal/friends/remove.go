package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/metrics"
	"github.com/jason-s-yu/sipstreak/internal/models"
)

// Remove deletes the friendship pair that friendshipID belongs to. Only the
// owner of that row (user_id) may remove it; the reverse row goes with it.
// Removing a friendship that no longer exists succeeds.
func (e *Engine) Remove(ctx context.Context, ownerID, friendshipID uuid.UUID) error {
	log := e.opLogger(opRemove, ownerID).WithField("friendship_id", friendshipID)

	var (
		removed *models.Friendship
		n       int64
	)
	err := e.store.RunInTx(ctx, func(tx Tx) error {
		f, err := tx.GetFriendship(ctx, friendshipID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if f.UserID != ownerID {
			return ErrNotAuthorized
		}

		n, err = tx.DeleteFriendshipPair(ctx, f.UserID, f.FriendID)
		if err != nil {
			return err
		}
		ab, ba, err := tx.CountFriendshipRows(ctx, f.UserID, f.FriendID)
		if err != nil {
			return err
		}
		if ab != 0 || ba != 0 {
			return fmt.Errorf("%w: %d/%d rows left after delete", ErrAsymmetricPair, ab, ba)
		}
		removed = f
		return nil
	})
	if errors.Is(err, ErrNotAuthorized) {
		metrics.RecordFriendOp(opRemove, "unauthorized")
		log.Warn("remove attempted by non-owner")
		return ErrNotAuthorized
	}
	if err != nil {
		metrics.RecordFriendOp(opRemove, "error")
		log.WithError(err).Error("failed to remove friendship")
		return fmt.Errorf("remove friendship: %w", err)
	}

	metrics.RecordFriendOp(opRemove, "ok")
	if removed == nil || n == 0 {
		log.Debug("friendship already absent")
		return nil
	}

	log.WithField("friend_id", removed.FriendID).Info("friendship removed")
	e.publish(ctx, models.Event{
		Type:         models.EventFriendshipRemoved,
		FriendshipID: &removed.ID,
		Recipients:   []uuid.UUID{removed.UserID, removed.FriendID},
	})
	return nil
}
