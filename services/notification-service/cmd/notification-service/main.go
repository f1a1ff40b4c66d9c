package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/estatehub/showings/libs/config"
	"github.com/estatehub/showings/libs/db"
	"github.com/estatehub/showings/libs/events"
	"github.com/estatehub/showings/libs/httpx"
	"github.com/estatehub/showings/libs/kafkax"
	otelx "github.com/estatehub/showings/libs/otel"
	"github.com/estatehub/showings/libs/runtime"
	"github.com/estatehub/showings/services/notification-service/internal/consumer"
	"github.com/estatehub/showings/services/notification-service/internal/dispatch"
	"github.com/estatehub/showings/services/notification-service/internal/email"
	"github.com/estatehub/showings/services/notification-service/internal/inbox"
	"github.com/estatehub/showings/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	pool, err := db.Open(ctx, dbURL, db.PoolConfig{MaxConns: int32(config.Int("DB_MAX_CONNS", 5))})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	sender := newSender(logger)
	handler := dispatch.NewHandler(sender, storage.NewRepository(pool), logger, loc)

	brokers := config.String("KAFKA_BROKERS", "")
	if brokers == "" {
		logger.Warn("KAFKA_BROKERS not set, consumer disabled")
	} else {
		eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
			Topics:  config.List("KAFKA_CONSUME_TOPICS", strings.Join([]string{events.TopicAppointmentBooked, events.TopicAppointmentStatusChanged}, ",")),
		}, handler.Handle)
		go eventConsumer.Run(ctx)
	}

	router := runtime.NewRouterWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	h := httpx.Chain(router,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	h = otelhttp.NewHandler(h, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "provider", sender.ProviderID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

func newSender(logger *slog.Logger) email.Sender {
	from := config.String("EMAIL_FROM", "no-reply@showings.local")
	switch strings.ToLower(config.String("EMAIL_PROVIDER", "smtp")) {
	case "sendgrid":
		if sg := email.NewSendGridSender(email.SendGridConfig{
			APIKey:    config.String("SENDGRID_API_KEY", ""),
			FromEmail: from,
			FromName:  config.String("EMAIL_FROM_NAME", "Showings"),
		}, logger); sg != nil {
			return sg
		}
		logger.Warn("SENDGRID_API_KEY not set, emails will only be logged")
		return email.NewNoopSender(logger)
	case "noop":
		return email.NewNoopSender(logger)
	default:
		return email.NewSMTPSender(
			config.String("SMTP_HOST", "mailpit"),
			config.String("SMTP_PORT", "1025"),
			from,
		)
	}
}
