package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/estatehub/showings/libs/auth"
	"github.com/estatehub/showings/libs/config"
	"github.com/estatehub/showings/libs/db"
	"github.com/estatehub/showings/libs/grpcx"
	"github.com/estatehub/showings/libs/httpx"
	"github.com/estatehub/showings/libs/kafkax"
	otelx "github.com/estatehub/showings/libs/otel"
	"github.com/estatehub/showings/libs/runtime"
	"github.com/estatehub/showings/services/appointment-service/internal/appointments"
	"github.com/estatehub/showings/services/appointment-service/internal/handlers"
	"github.com/estatehub/showings/services/appointment-service/internal/metrics"
	"github.com/estatehub/showings/services/appointment-service/internal/outbox"
	"github.com/estatehub/showings/services/appointment-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "appointment-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
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
	loc, err := config.Location("APP_TIMEZONE", "UTC")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.PoolConfig{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	apptRepo := storage.NewAppointmentRepository(pool)
	propRepo := storage.NewPropertyRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	svc := appointments.NewService(apptRepo, propRepo, outboxRepo, logger, m, appointments.Config{
		Location:      loc,
		ExcludeBooked: config.Bool("SLOTS_EXCLUDE_BOOKED", false),
		ShowingLength: config.Duration("SHOWING_LENGTH", 30*time.Minute),
		UpcomingLimit: config.Int("UPCOMING_LIMIT", 5),
	})

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		OnPublish: m.ObservePublished,
	})
	go publisher.Run(ctx)

	var jwks *auth.JWKSClient
	if url := config.String("JWKS_URL", ""); url != "" {
		jwks = auth.NewJWKSClient(url, config.Duration("JWKS_CACHE_TTL", 10*time.Minute))
	}
	verifier := auth.NewVerifier(config.String("JWT_SECRET", ""), jwks)

	routes := handlers.Routes{
		Public:       handlers.NewPublicHandler(svc, logger, m),
		Appointments: handlers.NewAppointmentHandler(svc, logger, m),
		Authenticate: verifier.Authenticate,
		PublicLimit:  publicLimit(logger),
	}

	router := runtime.NewRouterWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	routes.Register(router)

	handler := httpx.Chain(router,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(int64(config.Int("HTTP_BODY_LIMIT", 1<<20))),
		httpx.WithTimeout(config.Duration("HTTP_HANDLER_TIMEOUT", 15*time.Second)),
	)
	handler = otelhttp.NewHandler(handler, "appointment")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv := grpcx.NewServer(logger)
	grpcSrv.SetServing(service, true)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		os.Exit(1)
	}
	go func() {
		if err := grpcSrv.Serve(ctx, lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	grpcSrv.SetServing(service, false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// publicLimit limits the anonymous booking routes. Redis is shared across
// replicas; without REDIS_URL each process keeps its own window.
func publicLimit(logger *slog.Logger) handlers.Middleware {
	limit := config.Int("PUBLIC_RATE_LIMIT", 60)
	if limit <= 0 {
		return nil
	}
	window := config.Duration("PUBLIC_RATE_WINDOW", time.Minute)
	failOpen := config.Bool("RATE_LIMIT_FAIL_OPEN", true)

	redisURL := config.String("REDIS_URL", "")
	if redisURL == "" {
		return httpx.RateLimit(httpx.NewMemoryLimiter(limit, window), logger, failOpen)
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL, using in-memory rate limit", "err", err)
		return httpx.RateLimit(httpx.NewMemoryLimiter(limit, window), logger, failOpen)
	}
	rdb := redis.NewClient(opts)
	return httpx.RateLimit(httpx.NewRedisLimiter(rdb, limit, window, "showings:ratelimit:public"), logger, failOpen)
}
