package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/golang-migrate/migrate/v4/database/sqlserver"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/jobs"
	"github.com/Ramsey-B/fern/internal/scheduler"
	"github.com/Ramsey-B/fern/internal/search"
	"github.com/Ramsey-B/fern/internal/warehouse"
	"github.com/Ramsey-B/fern/pkg/chunker"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/extract"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/trigger"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/transform"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

func run(cfg *config.Config, logger ectologger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(cfg.AppName)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// Source database, read-only.
	sourceDB, err := database.Connect(ctx, database.Config{
		Host:            cfg.SourceHost,
		Port:            cfg.SourcePort,
		Name:            cfg.SourceName,
		UserName:        cfg.SourceUserName,
		Password:        cfg.SourcePassword,
		MaxOpenConns:    cfg.SourceMaxOpenConns,
		MaxIdleConns:    cfg.SourceMaxIdleConns,
		ConnMaxLifetime: cfg.SourceConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer sourceDB.Close()

	// Warehouse database, owned by this service.
	warehouseDB, err := database.Connect(ctx, database.Config{
		Host:            cfg.WarehouseHost,
		Port:            cfg.WarehousePort,
		Name:            cfg.WarehouseName,
		UserName:        cfg.WarehouseUserName,
		Password:        cfg.WarehousePassword,
		MaxOpenConns:    cfg.WarehouseMaxOpenConns,
		MaxIdleConns:    cfg.WarehouseMaxIdleConns,
		ConnMaxLifetime: cfg.WarehouseConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer warehouseDB.Close()

	// Warehouse schema migrations.
	driver, err := sqlserver.WithInstance(warehouseDB.DB, &sqlserver.Config{})
	if err != nil {
		return err
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.WarehouseMigrationFolderPath,
		Version:             uint(cfg.WarehouseMigrationVersion),
		Force:               cfg.WarehouseMigrationForce,
		AutoRollback:        cfg.WarehouseMigrationAutoRollback,
	})
	if err := migrations.Migrate(cfg.WarehouseName, driver); err != nil {
		return err
	}

	// Elasticsearch.
	esClient, err := search.NewClient(search.ClientConfig{
		URLs:               cfg.ElasticURLs,
		Username:           cfg.ElasticUser,
		Password:           cfg.ElasticPassword,
		InsecureSkipVerify: cfg.ElasticInsecureSkipVerify,
	})
	if err != nil {
		return err
	}

	// Kafka run events, enabled only when brokers are configured.
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaBrokers[0] != "" {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaRunTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
	}
	emitter := events.NewEmitter(producer, logger)

	// Pipeline wiring.
	chunks := chunker.NewExecutor(sourceDB, logger, cfg.ChunkSize, cfg.FailOnChunkError)
	extractor := extract.NewExtractor(sourceDB, chunks, logger, cfg.ExtractLimit)

	warehouseLoader := warehouse.NewLoader(database.NewDatabaseInstance(warehouseDB, logger), logger, warehouse.Config{
		BatchSize:              cfg.LoadBatchSize,
		ChunkSize:              cfg.ChunkSize,
		ExplicitIdentityInsert: cfg.ExplicitIdentityInsert,
	})
	searchLoader := search.NewLoader(esClient, logger, cfg.ElasticIndex, cfg.ElasticBulkWorkers)

	orch := jobs.NewOrchestrator(
		extractor,
		transform.NewDimensionalTransformer(logger),
		transform.NewDocumentTransformer(logger),
		warehouseLoader,
		searchLoader,
		emitter,
		logger,
	)

	// Scheduling.
	sched := scheduler.New(logger)
	if err := sched.RegisterDaily(cfg.ScheduleTimes, "all", orch.RunAll); err != nil {
		return err
	}
	sched.Start()

	// HTTP surface.
	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	checker := health.NewChecker(sourceDB, warehouseDB, func() error {
		res, err := esClient.Ping()
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("elasticsearch ping returned %s", res.Status())
		}
		return nil
	}, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	trigger.NewHandler(orch, logger).Register(api)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped unexpectedly")
			stop()
		}
	}()
	checker.SetReady(true)

	logger.WithFields(map[string]any{
		"app":       cfg.AppName,
		"port":      cfg.Port,
		"schedules": cfg.ScheduleTimes,
	}).Info("Service started")

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down HTTP server cleanly")
	}

	logger.Info("Service stopped")
	return nil
}
