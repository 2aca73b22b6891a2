package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pravartak01/shlokayug-enrollment/internal/config"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/catalog"
	pg "github.com/pravartak01/shlokayug-enrollment/internal/infra/db/postgres"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/logging"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/metrics"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/payment"
	red "github.com/pravartak01/shlokayug-enrollment/internal/infra/redis"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/sched"
	"github.com/pravartak01/shlokayug-enrollment/internal/infra/web"
	"github.com/pravartak01/shlokayug-enrollment/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	paymentRepo := pg.NewPostgresPaymentRepo(pool)
	enrollmentRepo := pg.NewPostgresEnrollmentRepo(pool)
	deviceRepo := pg.NewPostgresDeviceRepo(pool)
	auditRepo := pg.NewPostgresAuditRepo(pool)
	progressRepo := pg.NewPostgresProgressRepo(pool)

	// ---- External adapters ----
	gateway := payment.NewRazorpayGateway(cfg.Gateway)
	courseCatalog := catalog.NewHTTPCatalog(cfg.Catalog)

	// ---- Use cases ----
	payUC := usecase.NewPaymentUseCase(paymentRepo, auditRepo, gateway, tm, cfg.Revenue.GuruPercent, logger)
	enrollUC := usecase.NewEnrollmentUseCase(enrollmentRepo, deviceRepo, auditRepo, payUC, paymentRepo, courseCatalog, gateway, tm, locker, cfg.Access.DefaultDeviceLimit, logger)
	subUC := usecase.NewSubscriptionUseCase(enrollmentRepo, auditRepo, payUC, courseCatalog, gateway, tm, logger)
	devUC := usecase.NewDeviceUseCase(enrollmentRepo, deviceRepo, auditRepo, tm, logger)
	progUC := usecase.NewProgressUseCase(enrollmentRepo, progressRepo, auditRepo, tm, logger)
	statsUC := usecase.NewStatsUseCase(paymentRepo, enrollmentRepo, logger)

	// ---- Metrics ----
	metrics.MustRegister()

	// ---- Background workers ----
	expiryWorker := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, subUC, logger)
	go func() { _ = expiryWorker.Run(ctx) }()
	reconciler := sched.NewPaymentReconciler(payUC, paymentRepo, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.PendingStaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- HTTP server ----
	srv := web.NewServer(enrollUC, payUC, subUC, devUC, progUC, statsUC, auditRepo, redisClient, cfg, logger)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	srv.RegisterRoutes(r)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
