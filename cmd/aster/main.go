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

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/Ramsey-B/aster/config"
	"github.com/Ramsey-B/aster/internal/handlers"
	activityrepo "github.com/Ramsey-B/aster/internal/repositories/activity"
	dealrepo "github.com/Ramsey-B/aster/internal/repositories/deal"
	pipelinerepo "github.com/Ramsey-B/aster/internal/repositories/pipeline"
	stagerepo "github.com/Ramsey-B/aster/internal/repositories/stage"
	dealsvc "github.com/Ramsey-B/aster/internal/services/deal"
	pipelinesvc "github.com/Ramsey-B/aster/internal/services/pipeline"
	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/health"
	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/middleware"
	"github.com/Ramsey-B/aster/pkg/realtime"
	"github.com/Ramsey-B/aster/pkg/redis"
	"github.com/Ramsey-B/aster/pkg/tracing"
	"github.com/Ramsey-B/aster/pkg/tracing/exporters"
)

func main() {
	// .env is optional, real deployments use the environment directly
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	if cfg.TracingEnabled {
		shutdown, err := setupTracing(ctx, cfg)
		if err != nil {
			logger.WithError(err).Fatal("Failed to set up tracing")
		}
		defer shutdown(ctx)
	}

	db, sqlxDB := mustConnectDatabase(cfg, logger)
	defer db.Close()

	mustMigrate(cfg, logger, sqlxDB)

	redisClient := connectRedis(cfg, logger)
	var boardCache *redis.BoardCache
	if redisClient != nil {
		defer redisClient.Close()
		boardCache = redis.NewBoardCache(redisClient, cfg.PipelineCacheTTL, logger)
	}

	producer, err := kafka.NewProducer(producerConfig(cfg), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka producer")
	}
	defer producer.Close()

	emitter := events.NewEmitter(producer, cfg.KafkaBoardEventsTopic, logger)

	hub := realtime.NewHub(logger)
	defer hub.Shutdown()

	consumer, err := kafka.NewConsumer(consumerConfig(cfg), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka consumer")
	}
	if err := consumer.Start(ctx, hub.HandleMessage); err != nil {
		logger.WithError(err).Fatal("Failed to start Kafka consumer")
	}
	defer consumer.Stop()

	// Repositories
	pipelines := pipelinerepo.NewRepository(db, logger)
	stages := stagerepo.NewRepository(db, logger)
	deals := dealrepo.NewRepository(db, logger)
	activities := activityrepo.NewRepository(db, logger)

	// Services. The cache interfaces must stay nil when Redis is down, a
	// typed nil pointer would pass the services' nil checks.
	var pipelineCache pipelinesvc.BoardCache
	var dealCache dealsvc.BoardCache
	if boardCache != nil {
		pipelineCache = boardCache
		dealCache = boardCache
	}
	pipelineService := pipelinesvc.NewService(pipelines, stages, emitter, pipelineCache, logger)
	dealService := dealsvc.NewService(deals, stages, activities, emitter, dealCache, logger)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Context())

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		api.Use(middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID))
	} else {
		logger.Warn("Auth is disabled, trusting X-Tenant-ID and X-User-ID headers")
		api.Use(middleware.TestAuth())
	}

	handlers.NewPipelineHandler(pipelineService, logger).RegisterRoutes(api)
	handlers.NewStageHandler(pipelineService, logger).RegisterRoutes(api)
	handlers.NewDealHandler(dealService, logger).RegisterRoutes(api)
	handlers.NewWSHandler(hub, logger).RegisterRoutes(api)

	var rawRedis *goredis.Client
	if redisClient != nil {
		rawRedis = redisClient.Redis()
	}
	checker := health.NewChecker(sqlxDB, rawRedis, version())
	checker.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Infof("Starting %s on %s", cfg.AppName, addr)
		checker.SetReady(true)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func setupTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: cfg.TracingOTLPInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.AppName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	return tp.Shutdown, nil
}

func mustConnectDatabase(cfg config.Config, logger ectologger.Logger) (database.DB, *sqlx.DB) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName,
		cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)

	sqlxDB, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	logger.Infof("Connected to database %s", cfg.DatabaseName)
	return database.NewDatabaseInstance(sqlxDB, logger), sqlxDB
}

func mustMigrate(cfg config.Config, logger ectologger.Logger, sqlxDB *sqlx.DB) {
	driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migration driver")
	}

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})

	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
}

// connectRedis returns nil when Redis is unreachable. The cache is an
// optimization, the service runs without it.
func connectRedis(cfg config.Config, logger ectologger.Logger) *redis.Client {
	client, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, running without pipeline cache")
		return nil
	}
	return client
}

func producerConfig(cfg config.Config) kafka.ProducerConfig {
	pc := kafka.DefaultProducerConfig()
	pc.Brokers = cfg.KafkaBrokers
	pc.Topic = cfg.KafkaBoardEventsTopic
	pc.BatchSize = cfg.KafkaBatchSize
	pc.BatchTimeout = time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond
	pc.RequiredAcks = cfg.KafkaRequiredAcks
	pc.Compression = cfg.KafkaCompression
	return pc
}

func consumerConfig(cfg config.Config) kafka.ConsumerConfig {
	cc := kafka.DefaultConsumerConfig()
	cc.Brokers = cfg.KafkaBrokers
	cc.Topic = cfg.KafkaBoardEventsTopic
	cc.GroupID = cfg.KafkaConsumerGroup
	return cc
}

func version() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "dev"
}
