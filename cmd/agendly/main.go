package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rafaelbst/agendly/internal/booking"
	"github.com/rafaelbst/agendly/internal/handlers"
	"github.com/rafaelbst/agendly/internal/outbox"
	"github.com/rafaelbst/agendly/internal/storage"
	"github.com/rafaelbst/agendly/libs/config"
	"github.com/rafaelbst/agendly/libs/db"
	"github.com/rafaelbst/agendly/libs/httpx"
	"github.com/rafaelbst/agendly/libs/kafkax"
	otelx "github.com/rafaelbst/agendly/libs/otel"
	"github.com/rafaelbst/agendly/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "agendly")
	port, err := config.Port("PORT", "8080")
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

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewRepository(pool, outboxRepo)
	bookingSvc := booking.NewService(repo, logger)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	// The public booking surface is rate limited per client IP. Redis keeps the
	// window shared across replicas; without Redis a per-process window is
	// better than nothing.
	publicLimit := config.Int("PUBLIC_RATE_LIMIT", 30)
	publicWindow := time.Duration(config.Int("PUBLIC_RATE_WINDOW_SECONDS", 60)) * time.Second
	var publicLimiter httpx.Middleware
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "err", err)
			panic(err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		publicLimiter = httpx.NewRedisRateLimiter(rdb, publicLimit, publicWindow, service+":public").
			Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	} else {
		publicLimiter = httpx.NewRateLimiter(publicLimit, publicWindow).Middleware()
	}

	bookingHandler := handlers.NewBookingHandler(bookingSvc, logger)
	authHandler := handlers.NewAuthHandler(repo, logger, jwtSecret,
		time.Duration(config.Int("JWT_TTL_HOURS", 24))*time.Hour)
	scheduleHandler := handlers.NewScheduleHandler(repo, logger)
	apptHandler := handlers.NewAppointmentsHandler(repo, logger)
	subHandler := handlers.NewSubscriptionHandler(repo, logger)
	billingHandler := handlers.NewBillingHandler(repo, logger,
		config.String("STRIPE_WEBHOOK_SECRET", ""), 5*time.Minute)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if strings.TrimSpace(kafkaBrokers) != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	requireProvider := handlers.RequireProvider(jwtSecret)
	public := func(h http.HandlerFunc) http.Handler { return publicLimiter(h) }

	mux.Handle("/api/v1/public/slots", public(bookingHandler.Slots))
	mux.Handle("/api/v1/public/book", public(bookingHandler.Book))
	mux.Handle("/api/v1/public/providers/{slug}", public(authHandler.ProviderBySlug))
	mux.HandleFunc("/api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)
	mux.Handle("/api/v1/availability", requireProvider(http.HandlerFunc(scheduleHandler.Handle)))
	mux.Handle("/api/v1/appointments", requireProvider(http.HandlerFunc(apptHandler.List)))
	mux.Handle("/api/v1/appointments/cancel", requireProvider(http.HandlerFunc(apptHandler.Cancel)))
	mux.Handle("/api/v1/appointments/complete", requireProvider(http.HandlerFunc(apptHandler.Complete)))
	mux.Handle("/api/v1/subscription", requireProvider(http.HandlerFunc(subHandler.Get)))
	mux.HandleFunc("/api/v1/billing/stripe/webhook", billingHandler.StripeWebhook)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Stripe-Signature"},
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "agendly")

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
