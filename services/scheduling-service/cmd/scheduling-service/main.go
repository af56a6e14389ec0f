package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/interviewdesk/platform/libs/config"
	"github.com/interviewdesk/platform/libs/db"
	"github.com/interviewdesk/platform/libs/httpx"
	"github.com/interviewdesk/platform/libs/kafkax"
	otelx "github.com/interviewdesk/platform/libs/otel"
	"github.com/interviewdesk/platform/libs/outbox"
	"github.com/interviewdesk/platform/libs/runtime"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/access"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/handlers"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/healthgrpc"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/model"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/scheduling"
	"github.com/interviewdesk/platform/services/scheduling-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9091")
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
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var checker scheduling.AccessChecker = access.NewPostgresChecker(pool)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0)
		if err != nil {
			panic(err)
		}
		ttl, err := config.Duration("ACCESS_CACHE_TTL", 30*time.Second)
		if err != nil {
			panic(err)
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
		checker = access.NewCachedChecker(checker, rdb, ttl, logger)
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		logger.Info("access cache enabled", "addr", addr, "ttl", ttl.String())
	}

	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	maxBulk, err := config.Int("MAX_BULK_SLOTS", 500)
	if err != nil {
		panic(err)
	}
	loc, err := time.LoadLocation(config.String("SLOT_TIMEZONE", "UTC"))
	if err != nil {
		panic(err)
	}
	outboxRepo := outbox.NewRepository()
	candidates := storage.NewCandidateRepository(pool)
	store := storage.NewStore(pool, candidates, outboxRepo)
	svc := scheduling.NewService(store, candidates, checker, logger, scheduling.Options{
		MaxBulkSlots:         maxBulk,
		DefaultInterviewType: model.InterviewType(config.String("DEFAULT_INTERVIEW_TYPE", string(model.InterviewOnline))),
		Location:             loc,
	})

	pollEvery, err := config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		panic(err)
	}
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: pollEvery,
	})
	go publisher.Run(ctx)

	bodyLimit, err := config.Int64("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		panic(err)
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		panic(err)
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	handlers.NewScheduleHandler(svc, logger).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
	)
	handler = otelhttp.NewHandler(handler, "scheduling")
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

	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
	} else {
		healthSrv := healthgrpc.New(logger, db.ReadyCheck(pool), 10*time.Second)
		go func() {
			if err := healthSrv.Serve(ctx, lis); err != nil {
				logger.Error("grpc server error", "err", err)
			}
		}()
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
