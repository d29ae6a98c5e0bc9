package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cabinrent/internal/api"
	"cabinrent/internal/config"
	"cabinrent/internal/database"
	"cabinrent/internal/domain"
	"cabinrent/internal/events"
	"cabinrent/internal/logging"
	"cabinrent/internal/metrics"
	"cabinrent/internal/report"
	"cabinrent/internal/repository"
	"cabinrent/internal/service"
	"cabinrent/internal/storage"
	"cabinrent/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var startupRetry = worker.RetryPolicy{
	MaxRetries:    6,
	InitialDelay:  time.Second,
	MaxDelay:      15 * time.Second,
	BackoffFactor: 2,
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	cache := initCache(redisClient, logger)

	startMetrics(ctx, cfg, logger)
	bus := newEventBus(logger)

	pricer := service.NewPricer(cfg.Booking)
	users := service.NewUserService(db, logging.Component(logger, "users"))
	stats := service.NewStatsService(db, cache, pricer, logging.Component(logger, "stats"))
	stats.SubscribeInvalidation(bus)
	reports := report.NewGenerator(db, logging.Component(logger, "reports"))

	if err := ensureAdmin(ctx, users, logger); err != nil {
		return err
	}

	store, err := storage.New(cfg.Storage, logging.Component(logger, "storage"))
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	archiver := worker.NewArchiveWorker(reports, store, redisClient, worker.RetryPolicy{}, logging.Component(logger, "archive"))
	archiver.Subscribe(bus)
	go archiver.Start(ctx)

	var uploader database.BackupUploader
	if cfg.Backup.Upload {
		uploader = store
	}
	backups := database.NewBackupService(db, cfg.Backup, uploader, logging.Component(logger, "backup"))
	go backups.Start(ctx)

	httpServer := api.NewHTTPServer(cfg.API, api.Services{
		Auth:            service.NewAuthService(db, cache, cfg.API.Auth, logging.Component(logger, "auth")),
		Users:           users,
		Cabins:          service.NewCabinService(db, bus, pricer, logging.Component(logger, "cabins")),
		Guests:          service.NewGuestService(db, db, bus, logging.Component(logger, "guests")),
		Reservations:    service.NewReservationService(db, db, bus, pricer, logging.Component(logger, "reservations")),
		Payments:        service.NewPaymentService(db, bus, pricer, logging.Component(logger, "payments")),
		BookingRequests: service.NewBookingRequestService(db, db, bus, pricer, logging.Component(logger, "booking_requests")),
		Stats:           stats,
		Reports:         reports,
		Bus:             bus,
		Ready:           db.PingContext,
	}, logger)

	return serve(ctx, httpServer, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

// openDatabase retries the initial connection so the API can start alongside its database container.
func openDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	var db *database.DB
	err := worker.Retry(ctx, startupRetry, func(context.Context) error {
		var err error
		db, err = database.Open(cfg.Database, logging.Component(logger, "database"))
		return err
	}, func(attempt int, err error, wait time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("database not reachable, retrying")
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-memory cache")
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		// the failover cache keeps serving from memory until redis answers again
		logger.Warn().Err(err).Msg("redis connection failed, continuing with failover cache")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return client
}

func initCache(client *redis.Client, logger *zerolog.Logger) domain.CacheStore {
	memory := repository.NewMemoryCache()
	if client == nil {
		return memory
	}
	return repository.NewFailoverCache(repository.NewRedisCache(client), memory, logging.Component(logger, "cache"))
}

func newEventBus(logger *zerolog.Logger) *events.EventBus {
	bus := events.NewEventBus()
	bus.OnError(func(event *events.Event, err error) {
		logger.Error().Err(err).Str("event_type", event.Type).Int64("event_id", event.ID).Msg("event handler failed")
	})
	bus.SubscribeAll(func(event *events.Event) error {
		metrics.IncEvent(event.Type)
		return nil
	})
	return bus
}

// ensureAdmin seeds the first account from ADMIN_USERNAME / ADMIN_PASSWORD on an empty database.
func ensureAdmin(ctx context.Context, users *service.UserService, logger *zerolog.Logger) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return nil
	}
	created, err := users.EnsureAdmin(ctx, username, password)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		logger.Info().Str("username", username).Msg("initial admin account created")
	}
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
