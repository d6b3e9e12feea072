// ==============================================================================
// PAYOUT DESK API MAIN - cmd/api/main.go
// ==============================================================================
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"payoutdesk/internal/analytics"
	"payoutdesk/internal/domain"
	"payoutdesk/internal/events"
	"payoutdesk/internal/forex"
	"payoutdesk/internal/handler"
	"payoutdesk/internal/middleware"
	"payoutdesk/internal/repository/postgres"
	"payoutdesk/internal/scheduler"
	"payoutdesk/internal/withdrawal"
	"payoutdesk/internal/work"
	"payoutdesk/pkg/config"
	"payoutdesk/pkg/logger"
	"payoutdesk/pkg/validator"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel("payoutdesk-api", cfg.LogLevel, os.Stdout)

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting payout desk API", map[string]interface{}{
		"port":               cfg.Server.Port,
		"reporting_currency": cfg.Reporting.Currency,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)

	// Redis connection
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Redis connected", nil)

	// Event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Broker.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Exchange, log)
		if err != nil {
			log.Fatal("Failed to connect to message broker", map[string]interface{}{
				"error": err.Error(),
			})
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		log.Info("Message broker connected", map[string]interface{}{"exchange": cfg.Broker.Exchange})
	} else {
		log.Warn("AMQP_URL not set, status events are not published", nil)
	}

	location, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		log.Fatal("Invalid report timezone", map[string]interface{}{"error": err.Error()})
	}
	reporting := domain.Currency(cfg.Reporting.Currency)
	sla := cfg.Reporting.WithdrawalSLA

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	workRepo := postgres.NewWorkRepository(db)
	withdrawalRepo := postgres.NewWithdrawalRepository(db)
	commentRepo := postgres.NewWithdrawalCommentRepository(db)
	rateRepo := postgres.NewCurrencyRateRepository(db)

	// Initialize services
	forexService := forex.NewService(
		reporting,
		[]forex.RateSource{rateRepo, forex.NewStaticRateSource("fallback", cfg.Reporting.FallbackRates)},
		forex.NewRedisRateCache(redisClient),
		cfg.Reporting.RateCacheTTL,
		log,
	)
	if _, err := forexService.Refresh(context.Background()); err != nil {
		log.Warn("Initial rate refresh failed", map[string]interface{}{"error": err.Error()})
	}

	workService := work.NewService(workRepo, withdrawalRepo, userRepo, publisher, sla, log)
	withdrawalService := withdrawal.NewService(withdrawalRepo, commentRepo, workRepo, userRepo, publisher, sla, log)
	engine := analytics.NewEngine(forexService.Converter(), location, sla, log)
	reportService := analytics.NewService(withdrawalRepo, workRepo, forexService, engine, cfg.Reporting.TopN, log)

	// Background jobs
	jobs := scheduler.New([]scheduler.Job{
		{Name: "rate-refresh", Schedule: cfg.Reporting.RateRefreshSchedule, Run: forexService.RefreshJob},
		{Name: "overdue-sweep", Schedule: cfg.Reporting.OverdueSweepSchedule, Run: withdrawalService.SweepJob},
	}, log)
	if err := jobs.Start(); err != nil {
		log.Fatal("Failed to start scheduler", map[string]interface{}{"error": err.Error()})
	}

	// Initialize handlers
	val := validator.New()
	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret, userRepo, log)
	idempotency := middleware.NewIdempotencyMiddleware(redisClient, cfg.HTTP.IdempotencyTTL, log)
	limiter := middleware.NewRateLimiter(redisClient, cfg.HTTP.RateLimitPerMinute, time.Minute, log)

	r := handler.NewRouter(handler.Routes{
		Work:       handler.NewWorkHandler(workService, val, log),
		Withdrawal: handler.NewWithdrawalHandler(withdrawalService, val, log),
		Report:     handler.NewReportHandler(reportService, log),
		Forex:      handler.NewForexHandler(forexService, rateRepo, reporting, val, log),
		System: handler.NewSystemHandler(map[string]handler.Pinger{
			"database": db.PingContext,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		}),
		Global: []mux.MiddlewareFunc{
			middleware.CORS,
			middleware.SecurityHeaders,
			middleware.CorrelationID,
			middleware.NewLoggingMiddleware(log).Log,
			middleware.Recovery(log),
		},
		Authenticate: authMW.Authenticate,
		API:          []mux.MiddlewareFunc{limiter.Limit},
		Idempotency:  idempotency.Handle,
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("Payout desk API started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down payout desk API...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	<-jobs.Stop().Done()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Payout desk API forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	log.Info("Payout desk API stopped gracefully", nil)
}
