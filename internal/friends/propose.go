package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/metrics"
	"github.com/jason-s-yu/sipstreak/internal/models"
	"github.com/sirupsen/logrus"
)

// ProposeResult is the outcome of a proposal. Validation failures are
// expected outcomes: Success is false and Message says why.
type ProposeResult struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Request *models.FriendRequest `json:"request,omitempty"`
}

func rejected(reason string) ProposeResult {
	metrics.RecordFriendOp(opPropose, "rejected")
	return ProposeResult{Success: false, Message: reason}
}

// Propose creates a pending request from requesterID to the account owning
// targetEmail. Checks short-circuit in order: unknown email, self, existing
// friendship, pending request in either direction. Only store failures are
// returned as errors.
func (e *Engine) Propose(ctx context.Context, requesterID uuid.UUID, targetEmail string) (ProposeResult, error) {
	log := e.opLogger(opPropose, requesterID)

	email := models.NormalizeEmail(targetEmail)
	if email == "" {
		return rejected(ReasonNoSuchUser), nil
	}

	targetID, found, err := e.resolver.ResolveEmail(ctx, email)
	if err != nil {
		metrics.RecordFriendOp(opPropose, "error")
		log.WithError(err).Error("failed to resolve target email")
		return ProposeResult{}, fmt.Errorf("resolve target: %w", err)
	}
	if !found {
		return rejected(ReasonNoSuchUser), nil
	}
	if targetID == requesterID {
		return rejected(ReasonSelf), nil
	}

	now := e.now()
	req := &models.FriendRequest{
		ID:         uuid.New(),
		SenderID:   requesterID,
		ReceiverID: targetID,
		Status:     models.RequestPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var reason string
	err = e.store.RunInTx(ctx, func(tx Tx) error {
		// an accept committing between the two reads below would otherwise
		// let a pending request sit next to the new friendship
		if err := tx.LockPair(ctx, requesterID, targetID); err != nil {
			return err
		}

		friends, err := tx.FriendshipExists(ctx, requesterID, targetID)
		if err != nil {
			return err
		}
		if friends {
			reason = ReasonAlreadyFriends
			return nil
		}

		_, err = tx.FindPendingRequest(ctx, requesterID, targetID)
		switch {
		case err == nil:
			reason = ReasonPending
			return nil
		case !errors.Is(err, ErrNotFound):
			return err
		}

		return tx.InsertRequest(ctx, req)
	})
	if errors.Is(err, ErrDuplicate) {
		// lost an insert race for the same unordered pair
		reason = ReasonPending
		err = nil
	}
	if err != nil {
		metrics.RecordFriendOp(opPropose, "error")
		log.WithError(err).Error("failed to create friend request")
		return ProposeResult{}, fmt.Errorf("create friend request: %w", err)
	}
	if reason != "" {
		log.WithField("target_id", targetID).Debugf("proposal rejected: %s", reason)
		return rejected(reason), nil
	}

	metrics.RecordFriendOp(opPropose, "ok")
	log.WithFields(logrus.Fields{
		"request_id": req.ID,
		"target_id":  targetID,
	}).Info("friend request created")

	e.publish(ctx, models.Event{
		Type:       models.EventRequestCreated,
		RequestID:  &req.ID,
		Recipients: []uuid.UUID{req.SenderID, req.ReceiverID},
	})
	return ProposeResult{Success: true, Message: MessageSent, Request: req}, nil
}
