package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/interviewdesk/platform/libs/config"
	"github.com/interviewdesk/platform/libs/db"
	"github.com/interviewdesk/platform/libs/httpx"
	"github.com/interviewdesk/platform/libs/kafkax"
	otelx "github.com/interviewdesk/platform/libs/otel"
	"github.com/interviewdesk/platform/libs/outbox"
	"github.com/interviewdesk/platform/libs/runtime"
	"github.com/interviewdesk/platform/services/notification-service/internal/consumer"
	"github.com/interviewdesk/platform/services/notification-service/internal/email"
	"github.com/interviewdesk/platform/services/notification-service/internal/inbox"
	"github.com/interviewdesk/platform/services/notification-service/internal/notify"
	"github.com/interviewdesk/platform/services/notification-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
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
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	brokers := config.String("KAFKA_BROKERS", "")
	outboxRepo := outbox.NewRepository()
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	var sender email.Sender
	switch strings.ToLower(config.String("EMAIL_PROVIDER", "smtp")) {
	case "log":
		sender = email.NewLogSender(logger)
	default:
		sender = email.NewSMTPSender(email.SMTPConfig{
			Host:     config.String("SMTP_HOST", "mailpit"),
			Port:     config.String("SMTP_PORT", "1025"),
			From:     config.String("SMTP_FROM", "no-reply@interviewdesk.local"),
			Username: config.String("SMTP_USERNAME", ""),
			Password: config.String("SMTP_PASSWORD", ""),
		})
	}

	store := storage.NewStore(pool, inbox.NewRepository(), storage.NewRepository(), outboxRepo)
	processor := notify.NewProcessor(store, sender, logger, notify.Options{
		FailSuffix: config.String("NOTIFICATION_FAIL_SUFFIX", ""),
	})

	maxAttempts, err := config.Int("CONSUMER_MAX_ATTEMPTS", 3)
	if err != nil {
		panic(err)
	}
	topics := config.List("KAFKA_CONSUME_TOPICS")
	if len(topics) == 0 {
		topics = []string{notify.TopicBookingConfirmed, notify.TopicBookingCancelled}
	}
	if brokers == "" {
		logger.Warn("event consumer disabled (no kafka brokers configured)")
	} else {
		eventConsumer := consumer.New(logger, consumer.Config{
			Brokers:     brokers,
			GroupID:     config.String("KAFKA_GROUP_ID", "notification-service"),
			Topics:      topics,
			MaxAttempts: maxAttempts,
		}, processor.Handle)
		go eventConsumer.Run(ctx)
	}

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
