package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coachbook/coachbook/libs/config"
	"github.com/coachbook/coachbook/libs/db"
	"github.com/coachbook/coachbook/libs/httpx"
	"github.com/coachbook/coachbook/libs/kafkax"
	otelx "github.com/coachbook/coachbook/libs/otel"
	"github.com/coachbook/coachbook/libs/runtime"
	"github.com/coachbook/coachbook/services/booking-service/internal/handlers"
	"github.com/coachbook/coachbook/services/booking-service/internal/outbox"
	"github.com/coachbook/coachbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	availRepo := storage.NewAvailabilityRepository(pool)
	sessionRepo := storage.NewSessionRepository(pool)
	recurringRepo := storage.NewRecurringRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	handler := handlers.New(availRepo, sessionRepo, recurringRepo, outboxRepo, logger)
	authMW := handlers.Authenticate(config.String("JWT_SECRET", ""))

	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, true)
		logger.Info("rate limiting enabled (redis)", "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)")
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	// Public, rate limited.
	mux.Handle("/api/v1/public/slots", rateLimitMW(http.HandlerFunc(handler.Slots)))

	// Member.
	mux.Handle("/api/v1/bookings", httpx.Chain(http.HandlerFunc(handler.Book), authMW))
	mux.Handle("/api/v1/bookings/mine", httpx.Chain(http.HandlerFunc(handler.MyBookings), authMW))
	mux.Handle("/api/v1/bookings/cancel", httpx.Chain(http.HandlerFunc(handler.CancelBooking), authMW))
	mux.Handle("/api/v1/recurring-bookings", httpx.Chain(http.HandlerFunc(handler.CreateRecurring), authMW))
	mux.Handle("/api/v1/recurring-bookings/cancel", httpx.Chain(http.HandlerFunc(handler.CancelRecurring), authMW))

	// Coach.
	mux.Handle("/api/v1/coach/availability", httpx.Chain(http.HandlerFunc(handler.Weekly), authMW))
	mux.Handle("/api/v1/coach/availability/additions", httpx.Chain(http.HandlerFunc(handler.Additions), authMW))
	mux.Handle("/api/v1/coach/availability/blocks", httpx.Chain(http.HandlerFunc(handler.Blocks), authMW))
	mux.Handle("/api/v1/coach/day", httpx.Chain(http.HandlerFunc(handler.Day), authMW))
	mux.Handle("/api/v1/coach/sessions/status", httpx.Chain(http.HandlerFunc(handler.UpdateStatus), authMW))
	mux.Handle("/api/v1/coach/sessions/batch", httpx.Chain(http.HandlerFunc(handler.BatchCreate), authMW))
	mux.Handle("/api/v1/coach/conflicts", httpx.Chain(http.HandlerFunc(handler.Conflicts), authMW))
	mux.Handle("/api/v1/coach/conflicts/resolve", httpx.Chain(http.HandlerFunc(handler.ResolveConflict), authMW))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitCSV(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         10 * time.Minute,
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
