package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tuturuuu/meetsync/internal/cache"
	"github.com/tuturuuu/meetsync/internal/guest"
	"github.com/tuturuuu/meetsync/internal/handlers"
	"github.com/tuturuuu/meetsync/internal/outbox"
	"github.com/tuturuuu/meetsync/internal/storage"
	"github.com/tuturuuu/meetsync/libs/config"
	"github.com/tuturuuu/meetsync/libs/db"
	"github.com/tuturuuu/meetsync/libs/httpx"
	"github.com/tuturuuu/meetsync/libs/kafkax"
	otelx "github.com/tuturuuu/meetsync/libs/otel"
	"github.com/tuturuuu/meetsync/libs/runtime"
)

const serviceName = "meetsync"

func main() {
	logger := runtime.NewLogger(serviceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	port, err := config.Port("PORT", "8080")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	tokenSecret, err := config.RequiredString("TOKEN_SECRET")
	if err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	redisAddr := config.String("REDIS_ADDR", "localhost:6379")
	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	guestSessionTTL := config.Duration("GUEST_SESSION_TTL", 24*time.Hour)
	slotCacheTTL := config.Duration("SLOT_CACHE_TTL", 30*time.Second)
	loginRateLimit := config.Int("GUEST_LOGIN_RATE_LIMIT", 10)
	corsOrigins := config.String("CORS_ALLOWED_ORIGINS", "")

	shutdownTracing, err := otelx.Setup(ctx, otelx.ConfigFromEnv(serviceName))
	if err != nil {
		logger.Warn("tracing disabled", "err", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	pool, err := db.Open(ctx, databaseURL, db.Options{MaxConns: int32(config.Int("DB_MAX_CONNS", 10))})
	if err != nil {
		logger.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	outboxRepo := outbox.NewRepository(pool)
	planRepo := storage.NewPlanRepository(pool, outboxRepo)
	guestRepo := storage.NewGuestRepository(pool, outboxRepo)
	blockRepo := storage.NewTimeblockRepository(pool, outboxRepo)
	slotCache := cache.NewSlotCache(rdb, slotCacheTTL)
	resolver := guest.NewResolver(guestRepo, tokenSecret, guestSessionTTL)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	planHandler := handlers.NewPlanHandler(planRepo, logger, tokenSecret)
	guestHandler := handlers.NewGuestHandler(planRepo, resolver, logger)
	blockHandler := handlers.NewTimeBlockHandler(planRepo, blockRepo, slotCache, logger, tokenSecret)
	slotHandler := handlers.NewSlotHandler(planRepo, blockRepo, slotCache, logger)

	checks := []runtime.ReadyCheck{
		{Name: "postgres", Check: db.ReadyCheck(pool)},
		{Name: "redis", Check: cache.ReadyCheck(rdb)},
	}
	if kafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)

	loginLimiter := httpx.NewRedisRateLimiter(rdb, loginRateLimit, time.Minute, "rl:guest-login")
	guestLogin := httpx.Chain(
		http.HandlerFunc(guestHandler.Login),
		loginLimiter.Middleware(logger, true),
	)

	mux.HandleFunc("POST /api/v1/plans", planHandler.Create)
	mux.HandleFunc("GET /api/v1/plans/{id}", planHandler.Get)
	mux.Handle("POST /api/v1/plans/{id}/guest-login", guestLogin)
	mux.HandleFunc("POST /api/v1/plans/{id}/timeblocks", blockHandler.Create)
	mux.HandleFunc("DELETE /api/v1/plans/{id}/timeblocks", blockHandler.Delete)
	mux.HandleFunc("GET /api/v1/plans/{id}/slots", slotHandler.List)

	apiLimiter := httpx.NewRateLimiter(config.Int("API_RATE_LIMIT", 300), time.Minute)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		apiLimiter.Middleware(),
		httpx.WithCORS(splitCSV(corsOrigins)),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
	)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, serviceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "err", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown failed", "err", err)
	}
}

func splitCSV(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
