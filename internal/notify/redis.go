package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/sipstreak/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultChannel is the Redis Pub/Sub channel friend events travel on.
const DefaultChannel = "sipstreak:friend_events"

// ConnectRedis creates a client for addr/db and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisRelay publishes events to a Redis channel and, while Run is active,
// forwards everything on that channel to a local Bus. Every instance runs
// one, so an event reaches subscribers wherever they are connected.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	local   *Bus
	logger  *logrus.Logger
}

func NewRedisRelay(rdb *redis.Client, channel string, local *Bus, logger *logrus.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{
		rdb:     rdb,
		channel: channel,
		local:   local,
		logger:  logger,
	}
}

// Publish serializes ev to JSON and publishes it on the relay channel.
func (r *RedisRelay) Publish(ctx context.Context, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal friend event: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel '%s': %w", r.channel, err)
	}
	return nil
}

// Run subscribes to the relay channel and feeds the local bus until ctx is
// cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.WithField("channel", r.channel).Info("friend event relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.WithError(err).Warn("invalid friend event on relay channel")
				continue
			}
			r.local.Publish(ctx, ev)
		}
	}
}
