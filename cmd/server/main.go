package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dinehub/order-platform/internal/auth"
	catalogpg "github.com/dinehub/order-platform/internal/catalog/postgres"
	"github.com/dinehub/order-platform/internal/config"
	"github.com/dinehub/order-platform/internal/notify"
	"github.com/dinehub/order-platform/internal/order/application"
	orderhttp "github.com/dinehub/order-platform/internal/order/infrastructure/http"
	orderpg "github.com/dinehub/order-platform/internal/order/infrastructure/postgres"
	"github.com/dinehub/order-platform/pkg/idempotency"
	"github.com/dinehub/order-platform/pkg/logging"
	"github.com/dinehub/order-platform/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Duplicate-request guard is optional; without redis the POST endpoint
	// simply loses replay protection.
	var idemStore *idempotency.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		idemStore = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	}

	// Staff auth is on whenever a secret is configured. Without one the admin
	// endpoints and staff rooms are open, for local development only.
	var verifier *auth.Verifier
	var staff orderhttp.Middleware
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.JWTSecret)
		staff = verifier.Middleware
	} else {
		log.Warn("JWT_SECRET not set, staff endpoints are unauthenticated")
	}

	hub := notify.NewHub(log)
	defer hub.Close()

	repo := orderpg.NewRepository(log, pool)
	catalog := catalogpg.NewGateway(pool)
	svc := application.NewService(log, repo, catalog, hub)
	handler := orderhttp.NewHandler(log, svc)

	var wsVerifier notify.TokenVerifier
	if verifier != nil {
		wsVerifier = verifier
	}
	ws := notify.NewWSHandler(log, hub, wsVerifier)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes(staff, idempotency.Middleware(idemStore, log)))
	r.Handle("/ws", ws)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	hub.Close()
	log.Info("server shutdown complete")
}
