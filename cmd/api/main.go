package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prokat/internal/api"
	"prokat/internal/booking"
	"prokat/internal/config"
	"prokat/internal/database"
	"prokat/internal/domain"
	"prokat/internal/export"
	"prokat/internal/logging"
	"prokat/internal/metrics"
	"prokat/internal/models"
	"prokat/internal/repository"
	"prokat/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

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

	items, err := loadItems(cfg, &logger)
	if err != nil {
		return err
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	store := buildStore(redisClient, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder, auditDB, err := initAudit(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	if auditDB != nil {
		defer auditDB.Close()
	}

	engine := booking.NewEngine(store, recorder, &logger)
	exporter := export.NewExporter(cfg.Exports.Path)

	httpServer := api.NewHTTPServer(&cfg.API, engine, items, exporter, auditDB, &logger)

	startMetrics(ctx, cfg, &logger)
	startBackup(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func loadItems(cfg *config.Config, logger *zerolog.Logger) ([]models.Item, error) {
	if len(cfg.Items) > 0 {
		return cfg.Items, nil
	}

	itemsPath := os.Getenv("ITEMS_PATH")
	if itemsPath == "" {
		itemsPath = "configs/items.yaml"
	}
	itemsData, err := os.ReadFile(itemsPath)
	if err != nil {
		logger.Error().Err(err).Str("items_path", itemsPath).Msg("read items")
		return nil, err
	}

	var itemsConfig struct {
		Items []models.Item `yaml:"items"`
	}
	if err := yaml.Unmarshal(itemsData, &itemsConfig); err != nil {
		logger.Error().Err(err).Str("items_path", itemsPath).Msg("parse items")
		return nil, err
	}

	if err := config.ValidateItems(itemsConfig.Items); err != nil {
		return nil, err
	}
	return itemsConfig.Items, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)

	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-memory store")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// buildStore wires the record store chain: redis primary with in-memory
// fallback, or memory alone when redis is not configured.
func buildStore(redisClient *redis.Client, logger *zerolog.Logger) domain.Store {
	memStore := repository.NewMemoryRecordStore()
	if redisClient == nil {
		logger.Warn().Msg("running on in-memory record store, bookings will not survive a restart")
		return memStore
	}
	return repository.NewFailoverRecordStore(repository.NewRedisRecordStore(redisClient), memStore, logger)
}

func initAudit(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Recorder, *database.DB, error) {
	if !cfg.Audit.Enabled {
		return nil, nil, nil
	}

	auditDB, err := database.NewDB(cfg.Audit.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("audit_path", cfg.Audit.Path).Msg("init audit journal")
		return nil, nil, err
	}

	auditWorker := worker.NewAuditWorker(auditDB, cfg.Audit.QueueSize, worker.RetryPolicy{}, logger)
	go auditWorker.Run(ctx)

	return auditWorker, auditDB, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startBackup(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Backup.Enabled || !cfg.Audit.Enabled {
		return
	}
	backupService := database.NewBackupService(cfg.Audit.Path, cfg.Backup, logger)
	go backupService.Start(ctx)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
