package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/studio-booking-platform/cmd/mainconfig"
	"github.com/wolfman30/studio-booking-platform/internal/api/router"
	"github.com/wolfman30/studio-booking-platform/internal/app/bootstrap"
	"github.com/wolfman30/studio-booking-platform/internal/bookings"
	"github.com/wolfman30/studio-booking-platform/internal/catalog"
	appconfig "github.com/wolfman30/studio-booking-platform/internal/config"
	"github.com/wolfman30/studio-booking-platform/internal/conversation"
	"github.com/wolfman30/studio-booking-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/studio-booking-platform/internal/http/middleware"
	"github.com/wolfman30/studio-booking-platform/internal/intake"
	"github.com/wolfman30/studio-booking-platform/internal/notify"
	"github.com/wolfman30/studio-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	format := "json"
	if cfg.IsDevelopment() {
		format = "text"
	}
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: format})
	logger.Info("starting studio-booking-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	// Let in-flight booking notifications finish.
	if err := app.dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("notifications still pending at shutdown", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type app struct {
	handler    http.Handler
	dispatcher *notify.Dispatcher
	service    *intake.Service
	pool       *pgxpool.Pool
	redis      *redis.Client
	stopSweep  chan struct{}
}

func (a *app) close() {
	close(a.stopSweep)
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// buildApp wires storage, notifications, the intake service and the router.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	metricsHandler, bookingMetrics := setupMetrics()

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	pool := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	rdb := bootstrap.BuildRedisClient(ctx, cfg, logger, true)

	storage, err := bootstrap.BuildStorage(cfg, pool, rdb, logger)
	if err != nil {
		return nil, err
	}

	var sesClient *sesv2.Client
	if cfg.EmailProvider == "ses" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		sesClient = mainconfig.NewSESClient(awsCfg, cfg)
	}

	alerts := bootstrap.BuildAlertStore(cfg, rdb)
	dispatcher := bootstrap.BuildDispatcher(cfg, alerts, bootstrap.NotifierDeps{
		Redis:       rdb,
		SES:         sesClient,
		Transcripts: storage.Conversations,
		Metrics:     bookingMetrics,
		Logger:      logger,
	})

	var machineOpts []conversation.Option
	if cfg.StudioName != "" {
		machineOpts = append(machineOpts, conversation.WithStudioName(cfg.StudioName))
	}
	svc := intake.NewService(intake.Deps{
		Machine:  conversation.NewMachine(cat, machineOpts...),
		Catalog:  cat,
		Store:    storage.Conversations,
		Guard:    storage.Guard,
		Bookings: bookings.NewService(storage.Bookings, logger),
		Locker:   storage.Locker,
		Notifier: dispatcher,
		Metrics:  bookingMetrics,
		Logger:   logger,
	})

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopSweep := make(chan struct{})
	go limiter.Run(stopSweep)

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET is empty; admin endpoints will reject every request")
	}

	handler := router.New(&router.Config{
		Logger:             logger,
		Metrics:            bookingMetrics,
		Chat:               handlers.NewChatHandler(svc, logger),
		AdminConversations: handlers.NewAdminConversationsHandler(svc, logger),
		AdminBookings:      handlers.NewAdminBookingsHandler(svc, logger),
		AdminAlerts:        handlers.NewAdminAlertsHandler(alerts, cfg.CORSAllowedOrigins, logger),
		Health:             handlers.NewHealthHandler(healthChecks(pool, rdb)),
		MetricsHandler:     metricsHandler,
		RateLimiter:        limiter,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return &app{
		handler:    handler,
		dispatcher: dispatcher,
		service:    svc,
		pool:       pool,
		redis:      rdb,
		stopSweep:  stopSweep,
	}, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewBookingMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func healthChecks(pool *pgxpool.Pool, rdb *redis.Client) map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
