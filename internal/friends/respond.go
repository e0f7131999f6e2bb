package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/metrics"
	"github.com/jason-s-yu/sipstreak/internal/models"
)

// Outcome describes a resolved request. Friendship is the responder's side
// of the new pair and is nil on rejection.
type Outcome struct {
	Request    *models.FriendRequest `json:"request"`
	Friendship *models.Friendship    `json:"friendship,omitempty"`
}

// Respond resolves a pending request addressed to responderID. The claim is
// a single conditional write, so of any number of concurrent calls for the
// same request exactly one succeeds; the rest get ErrRequestUnavailable.
//
// On accept the friendship pair is written, verified and the request
// deleted in the same transaction as the claim. On reject the request is
// deleted and nothing else is written.
func (e *Engine) Respond(ctx context.Context, requestID, responderID uuid.UUID, accept bool) (Outcome, error) {
	log := e.opLogger(opRespond, responderID).WithField("request_id", requestID)

	to := models.RequestRejected
	if accept {
		to = models.RequestAccepted
	}

	var out Outcome
	err := e.store.RunInTx(ctx, func(tx Tx) error {
		req, err := tx.ClaimRequest(ctx, requestID, responderID, to)
		if errors.Is(err, ErrNotFound) {
			return ErrRequestUnavailable
		}
		if err != nil {
			return err
		}
		out.Request = req

		if accept {
			if err := tx.LockPair(ctx, req.SenderID, req.ReceiverID); err != nil {
				return err
			}
			f, err := e.createPair(ctx, tx, req)
			if err != nil {
				return err
			}
			out.Friendship = f
		}
		return tx.DeleteRequest(ctx, req.ID)
	})
	if errors.Is(err, ErrRequestUnavailable) {
		metrics.RecordFriendOp(opRespond, "conflict")
		log.Debug("respond lost claim or request unavailable")
		return Outcome{}, ErrRequestUnavailable
	}
	if err != nil {
		metrics.RecordFriendOp(opRespond, "error")
		log.WithError(err).Error("failed to resolve friend request")
		return Outcome{}, fmt.Errorf("resolve friend request: %w", err)
	}

	metrics.RecordFriendOp(opRespond, "ok")
	log.WithField("status", to).Info("friend request resolved")

	evType := models.EventRequestRejected
	if accept {
		evType = models.EventRequestAccepted
	}
	ev := models.Event{
		Type:       evType,
		RequestID:  &out.Request.ID,
		Recipients: []uuid.UUID{out.Request.SenderID, out.Request.ReceiverID},
	}
	if out.Friendship != nil {
		ev.FriendshipID = &out.Friendship.ID
	}
	e.publish(ctx, ev)
	return out, nil
}

// createPair writes both directions and verifies exactly one row exists per
// direction before the transaction may commit. Rows left behind by an
// earlier partial write are completed rather than duplicated.
func (e *Engine) createPair(ctx context.Context, tx Tx, req *models.FriendRequest) (*models.Friendship, error) {
	if req.SenderID == req.ReceiverID {
		return nil, fmt.Errorf("request %s has sender equal to receiver", req.ID)
	}
	if err := tx.InsertFriendshipPair(ctx, req.SenderID, req.ReceiverID, e.now()); err != nil {
		return nil, err
	}
	ab, ba, err := tx.CountFriendshipRows(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		return nil, err
	}
	if ab != 1 || ba != 1 {
		return nil, fmt.Errorf("%w: %d/%d rows for %s,%s", ErrAsymmetricPair, ab, ba, req.SenderID, req.ReceiverID)
	}
	return tx.GetFriendshipByPair(ctx, req.ReceiverID, req.SenderID)
}

// Cancel lets the sender withdraw a pending request. It shares the claim
// semantics of Respond: a request already resolved or not sent by senderID
// yields ErrRequestUnavailable.
func (e *Engine) Cancel(ctx context.Context, requestID, senderID uuid.UUID) error {
	log := e.opLogger(opCancel, senderID).WithField("request_id", requestID)

	req, err := e.store.DeletePendingRequest(ctx, requestID, senderID)
	if errors.Is(err, ErrNotFound) {
		metrics.RecordFriendOp(opCancel, "conflict")
		return ErrRequestUnavailable
	}
	if err != nil {
		metrics.RecordFriendOp(opCancel, "error")
		log.WithError(err).Error("failed to cancel friend request")
		return fmt.Errorf("cancel friend request: %w", err)
	}

	metrics.RecordFriendOp(opCancel, "ok")
	log.Info("friend request cancelled")
	e.publish(ctx, models.Event{
		Type:       models.EventRequestCancelled,
		RequestID:  &req.ID,
		Recipients: []uuid.UUID{req.SenderID, req.ReceiverID},
	})
	return nil
}
