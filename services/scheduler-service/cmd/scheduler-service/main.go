package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coachbook/coachbook/libs/config"
	"github.com/coachbook/coachbook/libs/db"
	"github.com/coachbook/coachbook/libs/grpcx"
	"github.com/coachbook/coachbook/libs/httpx"
	"github.com/coachbook/coachbook/libs/kafkax"
	otelx "github.com/coachbook/coachbook/libs/otel"
	"github.com/coachbook/coachbook/libs/runtime"
	"github.com/coachbook/coachbook/services/scheduler-service/internal/consumer"
	"github.com/coachbook/coachbook/services/scheduler-service/internal/generate"
	"github.com/coachbook/coachbook/services/scheduler-service/internal/inbox"
	"github.com/coachbook/coachbook/services/scheduler-service/internal/jobs"
	"github.com/coachbook/coachbook/services/scheduler-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduler-service")
	port, err := config.Port("PORT", "8087")
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

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer func() { _ = rdb.Close() }()
	}

	repo := storage.NewRepository(pool)
	materializer := generate.NewMaterializer(repo, logger)
	weeksAhead := config.Int("GENERATION_WEEKS_AHEAD", 6)

	worker := jobs.NewWorker(materializer, rdb, logger, jobs.WorkerConfig{
		Interval:   time.Duration(config.Int("GENERATION_INTERVAL_MINUTES", 60)) * time.Minute,
		WeeksAhead: weeksAhead,
	})
	go worker.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "scheduler-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", "booking.recurring.created.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			RecurringBookingID string `json:"recurring_booking_id"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if payload.RecurringBookingID == "" {
			logger.Error("missing recurring_booking_id", "topic", msg.Topic)
			return nil
		}
		n, err := materializer.GenerateForBooking(ctx, payload.RecurringBookingID, weeksAhead)
		if err != nil {
			return err
		}
		logger.Info("recurring booking materialized", "recurring_booking_id", payload.RecurringBookingID, "sessions", n)
		return nil
	})
	go eventConsumer.Run(ctx)

	grpcSrv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerRequestIDInterceptor()),
	)
	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus(service, grpc_health_v1.HealthCheckResponse_SERVING)
	go func() {
		addr := ":" + config.String("GRPC_PORT", "9087")
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("grpc listen failed", "err", err)
			return
		}
		logger.Info("grpc server starting", "addr", addr)
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/admin/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		weeks := weeksAhead
		if raw := r.URL.Query().Get("weeks"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > 52 {
				http.Error(w, "invalid weeks", http.StatusBadRequest)
				return
			}
			weeks = parsed
		}
		res, err := materializer.GenerateAll(r.Context(), weeks)
		if err != nil {
			logger.Error("manual generation failed", "err", err)
			http.Error(w, "generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	})

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "scheduler")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	healthSrv.SetServingStatus(service, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpcSrv.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
