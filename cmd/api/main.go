package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pawn-pos/internal/broadcast"
	"pawn-pos/internal/config"
	"pawn-pos/internal/db"
	"pawn-pos/internal/httpserver"
	"pawn-pos/internal/logging"
	"pawn-pos/internal/pricing"
	pricingrepo "pawn-pos/internal/repository/pricing"
	"pawn-pos/internal/service/cartsync"
	quotesvc "pawn-pos/internal/service/quote"
	"pawn-pos/internal/service/session"
	"pawn-pos/internal/store"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.Named("api")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	checks := map[string]httpserver.ReadyCheck{}

	// The pricing tables always live in postgres; the session store only
	// requires it when STORE_BACKEND=postgres.
	dbpool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		if cfg.StoreBackend == "postgres" {
			logger.Fatal("connect to db", zap.Error(err))
		}
		logger.Warn("db unavailable, live quote pricing disabled", zap.Error(err))
		dbpool = nil
	} else {
		defer dbpool.Close()
		checks["db"] = dbpool.Ping
	}

	backend, feed, closeBackend, err := openBackend(ctx, cfg, dbpool, logger)
	if err != nil {
		logger.Fatal("open session store", zap.Error(err))
	}
	defer closeBackend()
	if r, ok := backend.(*store.Redis); ok {
		checks["redis"] = r.Ping
	}

	hub := cartsync.NewHub(logger.Named("sync"))
	go hub.Run(ctx, feed, time.Second)

	var notifier store.Notifier
	if cfg.AMQPURL != "" {
		pool, err := broadcast.NewChannelPool(cfg.AMQPURL, cfg.AMQPExchange, 4)
		if err != nil {
			logger.Fatal("connect amqp", zap.Error(err))
		}
		defer pool.Close()
		b := broadcast.NewBroadcaster(pool, cfg.AMQPExchange, uuid.NewString(), logger.Named("broadcast"))
		notifier = b
		go hub.Run(ctx, b, time.Second)
	}

	engine := pricing.NewEngine(cfg.MarketFactors, logger.Named("pricing"))
	var quotes httpserver.QuoteService
	if dbpool != nil {
		quotes = quotesvc.NewService(pricingrepo.NewPostgres(dbpool, logger), engine, logger.Named("quote"))
	}

	sessions := session.NewRegistry(session.Options{
		Backend:      backend,
		Notifier:     notifier,
		Hub:          hub,
		Engine:       engine,
		SyncInterval: cfg.SyncInterval,
		IdleTTL:      cfg.SessionIdleTTL,
		MaxSessions:  cfg.MaxSessions,
		Logger:       logger.Named("session"),
	})
	go sessions.Run(ctx, time.Minute)

	srv, err := httpserver.New(cfg.HTTPAddr, logger.Named("http"), httpserver.Deps{
		Sessions:    sessions,
		Quotes:      quotes,
		ReadyChecks: checks,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
	sessions.Close()
	stop()
}

// openBackend selects the shared session store. The returned feed delivers the
// backend's own change notifications.
func openBackend(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, logger *zap.Logger) (store.Backend, store.Feed, func(), error) {
	switch cfg.StoreBackend {
	case "memory", "":
		m := store.NewMemory()
		return m, m, func() {}, nil
	case "postgres":
		pg := store.NewPostgres(pool, cfg.SessionTTL, logger.Named("store"))
		go purgeExpired(ctx, pg, logger)
		return pg, pg, func() {}, nil
	case "redis":
		r, err := store.NewRedis(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL,
		}, logger.Named("store"))
		if err != nil {
			return nil, nil, nil, err
		}
		return r, r, func() { _ = r.Close() }, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func purgeExpired(ctx context.Context, pg *store.Postgres, logger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("purged expired session values", zap.Int64("rows", n))
			}
		}
	}
}
