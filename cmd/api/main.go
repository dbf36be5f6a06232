package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kislikjeka/grandlivre/internal/infra/kafka"
	"github.com/kislikjeka/grandlivre/internal/infra/postgres"
	infraRedis "github.com/kislikjeka/grandlivre/internal/infra/redis"
	"github.com/kislikjeka/grandlivre/internal/ledger"
	"github.com/kislikjeka/grandlivre/internal/module/budget"
	"github.com/kislikjeka/grandlivre/internal/module/payment"
	"github.com/kislikjeka/grandlivre/internal/module/statement"
	"github.com/kislikjeka/grandlivre/internal/platform/analytic"
	"github.com/kislikjeka/grandlivre/internal/platform/chart"
	"github.com/kislikjeka/grandlivre/internal/platform/fiscal"
	"github.com/kislikjeka/grandlivre/internal/transport/httpapi"
	"github.com/kislikjeka/grandlivre/internal/transport/httpapi/handler"
	"github.com/kislikjeka/grandlivre/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/grandlivre/pkg/config"
	"github.com/kislikjeka/grandlivre/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewDefault(cfg.Env)
	log.Info("Starting grandlivre API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Redis holds derived balances only; the API keeps serving without it
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, balances will be read from the database", "error", err)
	} else {
		log.Info("Redis connection established")
	}
	balanceCache := infraRedis.NewBalanceCacheWithTTL(redisClient, cfg.BalanceCacheTTL, log)

	// Repositories
	ledgerRepo := postgres.NewLedgerRepository(db.Pool)
	chartRepo := postgres.NewChartRepository(db.Pool)
	fiscalRepo := postgres.NewFiscalRepository(db.Pool)
	analyticRepo := postgres.NewAnalyticRepository(db.Pool)
	budgetRepo := postgres.NewBudgetRepository(db.Pool)
	paymentRepo := postgres.NewPaymentRepository(db.Pool)
	statementRepo := postgres.NewStatementRepository(db.Pool)

	// Services
	chartSvc := chart.NewService(chartRepo, log)
	fiscalSvc := fiscal.NewService(fiscalRepo, ledgerRepo, log)

	ledgerOpts := []ledger.Option{
		ledger.WithPeriodGuard(fiscalSvc),
		ledger.WithBalanceCache(balanceCache),
	}
	var publisher *kafka.Publisher
	if cfg.KafkaEnabled() {
		publisher = kafka.NewPublisher(kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic), log)
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(publisher))
		log.Info("Kafka event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		log.Warn("KAFKA_BROKERS not configured, ledger events are not published")
	}

	ledgerSvc := ledger.NewService(ledgerRepo, chartSvc, log, ledgerOpts...)
	reconciler := ledger.NewReconciler(ledgerRepo, chartSvc, log, ledgerOpts...)
	analyticSvc := analytic.NewService(analyticRepo, ledgerRepo, log)
	budgetSvc := budget.NewService(budgetRepo, ledgerRepo, analyticSvc, log)
	paymentSvc := payment.NewService(paymentRepo, ledgerSvc, reconciler, chartSvc, ledgerRepo, log)
	statementSvc := statement.NewService(statementRepo, ledgerSvc, chartSvc, ledgerRepo, log)

	if cfg.SeedCompanyID != "" {
		if err := seedChart(ctx, chartSvc, cfg, log); err != nil {
			log.Error("Failed to seed chart of accounts", "error", err)
			os.Exit(1)
		}
	}

	jwtSvc := middleware.NewJWTService(cfg.JWTSecret)

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 && cfg.IsDevelopment() {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}

	r := httpapi.NewRouter(httpapi.Config{
		Logger:         log,
		AllowedOrigins: allowedOrigins,
		RateLimitRPS:   float64(cfg.RateLimit),
		RateLimitBurst: max(cfg.RateLimit/5, 1),
		HealthHandler: handler.NewHealthHandler("database", map[string]handler.Pinger{
			"database": db,
			"redis": handler.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		}),
		EntryHandler:     handler.NewEntryHandler(ledgerSvc, log),
		ReconcileHandler: handler.NewReconcileHandler(reconciler, log),
		ChartHandler:     handler.NewChartHandler(chartSvc, log),
		FiscalHandler:    handler.NewFiscalHandler(fiscalSvc, log),
		BudgetHandler:    handler.NewBudgetHandler(budgetSvc, log),
		AnalyticHandler:  handler.NewAnalyticHandler(analyticSvc, log),
		PaymentHandler:   handler.NewPaymentHandler(paymentSvc, log),
		StatementHandler: handler.NewStatementHandler(statementSvc, log),
		JWTMiddleware:    middleware.JWTMiddleware(jwtSvc),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error("Failed to flush ledger events", "error", err)
		}
	}

	log.Info("Server stopped gracefully")
}

// seedChart loads the YAML chart of accounts into one company; existing
// accounts, journals and taxes are kept
func seedChart(ctx context.Context, svc *chart.Service, cfg *config.Config, log *logger.Logger) error {
	companyID, err := uuid.Parse(cfg.SeedCompanyID)
	if err != nil {
		return fmt.Errorf("invalid SEED_COMPANY_ID: %w", err)
	}
	chartCfg, err := config.LoadChart(cfg.ChartPath)
	if err != nil {
		return err
	}
	res, err := svc.Seed(ctx, companyID, chartCfg)
	if err != nil {
		return err
	}
	log.Info("Chart of accounts seeded",
		"company_id", companyID,
		"accounts", res.Accounts,
		"journals", res.Journals,
		"taxes", res.Taxes,
	)
	return nil
}
