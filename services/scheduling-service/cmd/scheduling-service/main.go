package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/slotwise/slotwise/libs/config"
	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/libs/httpx"
	"github.com/slotwise/slotwise/libs/kafkax"
	otelx "github.com/slotwise/slotwise/libs/otel"
	"github.com/slotwise/slotwise/libs/runtime"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/booking"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/consumer"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/handlers"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/inbox"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/outbox"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/recommend"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8084")
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

	staffRepo := storage.NewStaffRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	weights := recommend.Weights{
		Preference: config.Float("SCORE_WEIGHT_PREFERENCE", 0.3),
		Workload:   config.Float("SCORE_WEIGHT_WORKLOAD", 0.4),
		TimeFit:    config.Float("SCORE_WEIGHT_TIMEFIT", 0.3),
	}
	if err := weights.Validate(); err != nil {
		logger.Error("invalid score weights", "err", err)
		panic(err)
	}
	engine := recommend.NewEngine(staffRepo, apptRepo, recommend.Config{
		Weights:            weights,
		SlotStepMinutes:    config.Int("SLOT_STEP_MINUTES", 0),
		MaxRecommendations: config.Int("MAX_RECOMMENDATIONS", 10),
		TopPickCount:       config.Int("TOP_PICK_COUNT", 1),
		MaxRangeDays:       config.Int("MAX_RANGE_DAYS", 31),
	}, logger)

	committer := booking.NewCommitter(
		storage.NewBookingStore(apptRepo),
		booking.NewOutboxNotifier(outboxRepo),
		logger,
		config.Int("COMMIT_MAX_ATTEMPTS", 3),
	)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	completionTopic := config.String("KAFKA_COMPLETION_TOPIC", "fulfillment.appointment.completed.v1")
	if strings.TrimSpace(completionTopic) != "" {
		completionConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "scheduling-service"),
			Topic:   completionTopic,
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				AppointmentID string `json:"appointment_id"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid completion payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.AppointmentID == "" {
				logger.Error("completion event missing appointment_id", "topic", msg.Topic)
				return nil
			}
			updated, err := apptRepo.CompleteAppointment(ctx, payload.AppointmentID)
			if err != nil {
				return err
			}
			if !updated {
				logger.Warn("completion for unknown or non-booked appointment", "appointment_id", payload.AppointmentID)
			}
			return nil
		})
		go completionConsumer.Run(ctx)
	}

	recommendHandler := handlers.NewRecommendHandler(engine, logger)
	bookingHandler := handlers.NewBookingHandler(committer, apptRepo, outboxRepo, logger)
	adminHandler := handlers.NewAdminHandler(staffRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/recommendations", recommendHandler.Recommendations)
	mux.HandleFunc("/api/v1/public/book", bookingHandler.Create)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/admin/services", adminHandler.Services)
	mux.HandleFunc("/api/v1/admin/staff", adminHandler.Staff)
	mux.HandleFunc("/api/v1/admin/staff/services", adminHandler.AssignService)
	mux.HandleFunc("/api/v1/admin/working-hours", adminHandler.WorkingHours)
	mux.HandleFunc("/api/v1/admin/leave", adminHandler.Leave)
	mux.HandleFunc("/api/v1/admin/leave/status", adminHandler.LeaveStatus)

	rateLimit := rateLimitMiddleware(logger)
	cors := httpx.WithCORS(httpx.CORSPolicy{
		AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", ""), ","),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Idempotency-Key"},
		MaxAge:         10 * time.Minute,
	})
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		cors,
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 30))*time.Second),
		rateLimit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
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

// rateLimitMiddleware prefers the shared Redis limiter and falls back to the
// in-process one when REDIS_ADDR is not configured.
func rateLimitMiddleware(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	window := time.Minute

	redisAddr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
	if redisAddr == "" {
		return httpx.NewRateLimiter(limit, window).Middleware()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	failOpen := config.Bool("RATE_LIMIT_FAIL_OPEN", true)
	return httpx.NewRedisRateLimiter(rdb, limit, window, "scheduling:rl").Middleware(logger, failOpen)
}
