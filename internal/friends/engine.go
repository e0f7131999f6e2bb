// Package friends is the friend-relationship engine. Every entry point that
// proposes, resolves or removes a friendship goes through an Engine; nothing
// else writes request or friendship rows.
package friends

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/metrics"
	"github.com/jason-s-yu/sipstreak/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	opPropose = "propose"
	opRespond = "respond"
	opCancel  = "cancel"
	opRemove  = "remove"
)

// Engine validates proposals and runs the request state machine against a
// Store. Identities passed to it are assumed to be verified by the caller.
type Engine struct {
	store    Store
	resolver Resolver
	relay    Relay
	logger   *logrus.Logger
	now      func() time.Time
}

// NewEngine wires an engine. relay may be nil, in which case no
// notifications are emitted.
func NewEngine(store Store, resolver Resolver, relay Relay, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		store:    store,
		resolver: resolver,
		relay:    relay,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// publish is fire-and-forget; delivery is not part of the consistency
// guarantee, clients reconcile by re-fetching.
func (e *Engine) publish(ctx context.Context, ev models.Event) {
	if e.relay == nil {
		return
	}
	ev.Timestamp = e.now()
	if err := e.relay.Publish(context.WithoutCancel(ctx), ev); err != nil {
		metrics.RecordNotification("failed")
		e.logger.WithFields(logrus.Fields{
			"event":      ev.Type,
			"recipients": ev.Recipients,
		}).WithError(err).Warn("failed to publish friend event")
		return
	}
	metrics.RecordNotification("published")
}

func (e *Engine) opLogger(op string, userID uuid.UUID) *logrus.Entry {
	return e.logger.WithFields(logrus.Fields{
		"op":      op,
		"user_id": userID,
	})
}
