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
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/internal/repositories/note"
	"github.com/Ramsey-B/fern/internal/repositories/page"
	"github.com/Ramsey-B/fern/internal/repositories/property"
	"github.com/Ramsey-B/fern/internal/repositories/propertydefinition"
	"github.com/Ramsey-B/fern/internal/repositories/webhook"
	"github.com/Ramsey-B/fern/internal/repositories/webhookevent"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/patterns"
	"github.com/Ramsey-B/fern/pkg/processor"
	"github.com/Ramsey-B/fern/pkg/properties"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/triggers"
	"github.com/Ramsey-B/fern/pkg/webhooks"
)

var version = "dev"

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("service exited with error")
		os.Exit(1)
	}
}

func buildLogger(cfg *config.Config) (ectologger.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
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

	if cfg.TracingEnabled {
		shutdown, err := tracing.Init(ctx, cfg.AppName, tracing.OTLPConfig{
			Endpoint: cfg.TracingOTLPEndpoint,
			Protocol: cfg.TracingOTLPProtocol,
			Insecure: true,
		})
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("failed to shut down tracing")
			}
		}()
	}

	db, err := database.Connect(cfg.DSN(), cfg.DatabaseMaxOpenConns, cfg.DatabaseMaxIdleConns, cfg.DatabaseConnMaxLifetime, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := runMigrations(cfg, db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	var redisClient *redis.Client
	var limiter webhooks.Limiter
	if cfg.RedisHost != "" {
		redisClient, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		limiter = redis.NewRateLimiter(redisClient, "webhook:")
	}

	// repositories
	noteRepo := note.NewRepository(db, logger)
	pageRepo := page.NewRepository(db, logger)
	propertyRepo := property.NewRepository(db, logger)
	definitionRepo := propertydefinition.NewRepository(db, logger)
	webhookRepo := webhook.NewRepository(db, logger)
	eventRepo := webhookevent.NewRepository(db, logger)

	// outbound
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = time.Duration(cfg.WebhookTimeoutSeconds) * time.Second
	httpClient := httpclient.NewClient(clientCfg, logger)

	notifier := webhooks.NewNotifier(httpClient, webhookRepo, eventRepo, limiter, webhooks.NotifierConfig{
		Timeout:    time.Duration(cfg.WebhookTimeoutSeconds) * time.Second,
		RateLimit:  cfg.WebhookRateLimit,
		RateWindow: time.Duration(cfg.WebhookRateWindowSecs) * time.Second,
	}, logger)

	var producer *kafka.Producer
	var emitter *events.Emitter
	if cfg.KafkaProducerEnabled {
		producerCfg := kafka.DefaultProducerConfig()
		producerCfg.Brokers = cfg.KafkaBrokers
		producerCfg.Topic = cfg.KafkaEventsTopic
		producerCfg.BatchSize = cfg.KafkaBatchSize
		producerCfg.BatchTimeout = time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond
		producerCfg.RequiredAcks = cfg.KafkaRequiredAcks
		producerCfg.Compression = cfg.KafkaCompression

		producer, err = kafka.NewProducer(producerCfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create kafka producer: %w", err)
		}
		defer producer.Close()
		emitter = events.NewEmitter(producer, logger)
	}

	// property pipeline
	var changeEmitter triggers.ChangeEmitter
	if emitter != nil {
		changeEmitter = emitter
	}
	var notifierIface triggers.EventNotifier
	if cfg.WebhookDeliveryEnabled {
		notifierIface = notifier
	}
	dispatcher := triggers.NewDispatcher(noteRepo, pageRepo, webhookRepo, notifierIface, changeEmitter, logger)

	reconciler := properties.NewReconciler(db, properties.DefaultWeightConfig(), propertyRepo, definitionRepo, logger)
	readModel := properties.NewReadModel(propertyRepo, logger)

	pipeline, err := patterns.NewPipeline(logger, patterns.Config{
		TaskStatuses: cfg.TaskStatuses,
		TaskWeight:   cfg.TaskWeight,
	})
	if err != nil {
		return fmt.Errorf("failed to build pattern pipeline: %w", err)
	}

	var lifecycleEmitter processor.LifecycleEmitter
	if emitter != nil {
		lifecycleEmitter = emitter
	}
	proc := processor.NewProcessor(db, pipeline, reconciler, noteRepo, pageRepo, dispatcher, lifecycleEmitter, logger)

	// save topic consumer
	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumerCfg := kafka.DefaultConsumerConfig()
		consumerCfg.Brokers = cfg.KafkaBrokers
		consumerCfg.Topic = cfg.KafkaSaveTopic
		consumerCfg.GroupID = cfg.KafkaConsumerGroup

		consumer, err = kafka.NewConsumer(consumerCfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create kafka consumer: %w", err)
		}
		if err := consumer.Start(ctx, proc.MessageHandler()); err != nil {
			return fmt.Errorf("failed to start kafka consumer: %w", err)
		}
		defer func() {
			if err := consumer.Stop(); err != nil {
				logger.WithError(err).Error("failed to stop kafka consumer")
			}
		}()
	}

	// http server
	checker := health.NewChecker(db.Unsafe(), redisRaw(redisClient), version)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	e.GET("/livez", checker.LivenessHandler)
	e.GET("/readyz", checker.ReadinessHandler)
	e.GET("/healthz", checker.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	handlers.NewEntityHandler(proc, readModel, logger).Register(api)
	handlers.NewWebhookHandler(webhookRepo, eventRepo, notifier, logger).Register(api.Group("/webhooks"))
	handlers.NewDefinitionHandler(definitionRepo, reconciler, logger).Register(api.Group("/definitions"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		ReadHeaderTimeout: time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("%s listening on :%d", cfg.AppName, cfg.Port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	checker.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to shut down http server cleanly")
	}

	return nil
}

func runMigrations(cfg *config.Config, db database.DB, logger ectologger.Logger) error {
	driver, err := migratepg.WithInstance(db.Unsafe().DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	service := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})

	return service.Migrate(cfg.DatabaseName, driver)
}

func redisRaw(client *redis.Client) *goredis.Client {
	if client == nil {
		return nil
	}
	return client.Redis()
}
