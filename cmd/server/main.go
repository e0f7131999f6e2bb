// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/sipstreak/internal/auth"
	"github.com/jason-s-yu/sipstreak/internal/config"
	"github.com/jason-s-yu/sipstreak/internal/database"
	"github.com/jason-s-yu/sipstreak/internal/database/memory"
	"github.com/jason-s-yu/sipstreak/internal/friends"
	"github.com/jason-s-yu/sipstreak/internal/handlers"
	"github.com/jason-s-yu/sipstreak/internal/middleware"
	"github.com/jason-s-yu/sipstreak/internal/notify"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// backend is what a store must provide to serve both the engine and the
// account endpoints.
type backend interface {
	friends.Store
	friends.Resolver
	handlers.UserStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ttl, err := auth.ParseTokenExpireTime(cfg.TokenExpireTime)
	if err != nil {
		logger.Fatalf("invalid TOKEN_EXPIRE_TIME: %v", err)
	}
	sessions, err := loadSessions(cfg, ttl, logger)
	if err != nil {
		logger.Fatalf("failed to set up sessions: %v", err)
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to open %s store: %v", cfg.Store, err)
	}
	defer closeStore()

	bus := notify.NewBus(notify.DefaultBuffer)
	var relay friends.Relay = bus
	if cfg.RedisAddr != "" {
		rdb, err := notify.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer rdb.Close()

		rr := notify.NewRedisRelay(rdb, cfg.RedisChannel, bus, logger)
		go func() {
			if err := rr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Error("redis relay stopped")
			}
		}()
		relay = rr
		logger.Infof("relaying friend events through redis channel %s", cfg.RedisChannel)
	}

	limiter := middleware.NewRateLimiter(cfg.FriendRequestRate, cfg.FriendRequestBurst, logger)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(10 * time.Minute)
			}
		}
	}()

	api := &handlers.APIServer{
		Engine:         friends.NewEngine(store, store, relay, logger),
		Users:          store,
		Sessions:       sessions,
		Bus:            bus,
		Limiter:        limiter,
		Logger:         logger,
		OriginPatterns: cfg.OriginPatterns(),
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("graceful shutdown failed")
		}
	}()

	logger.Infof("Running on %s (store=%s)", srv.Addr, cfg.Store)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("server stopped")
}

func loadSessions(cfg *config.Config, ttl time.Duration, logger *logrus.Logger) (*auth.Sessions, error) {
	if cfg.JWTPrivateKeyPath == "" {
		logger.Warn("no JWT key paths configured; using an ephemeral signing key")
		return auth.NewSessions(ttl)
	}
	return auth.LoadSessions(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, ttl)
}

func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (backend, func(), error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := database.ConnectDB(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	if cfg.Migrate {
		db := database.OpenSQL(pool)
		err := database.Migrate(ctx, db)
		db.Close()
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database schema up to date")
	}
	return database.NewStore(pool), pool.Close, nil
}
