package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/bramble/config"
	"github.com/Ramsey-B/bramble/internal/repositories"
	auditrepo "github.com/Ramsey-B/bramble/internal/repositories/audit"
	"github.com/Ramsey-B/bramble/internal/repositories/mergerecord"
	reviewrepo "github.com/Ramsey-B/bramble/internal/repositories/review"
	"github.com/Ramsey-B/bramble/pkg/audit"
	"github.com/Ramsey-B/bramble/pkg/cache"
	"github.com/Ramsey-B/bramble/pkg/database"
	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/graphstore"
	"github.com/Ramsey-B/bramble/pkg/kafka"
	"github.com/Ramsey-B/bramble/pkg/llm"
	"github.com/Ramsey-B/bramble/pkg/locks"
	"github.com/Ramsey-B/bramble/pkg/logging"
	"github.com/Ramsey-B/bramble/pkg/merging"
	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/middleware"
	"github.com/Ramsey-B/bramble/pkg/resolution"
	"github.com/Ramsey-B/bramble/pkg/review"
	auditroutes "github.com/Ramsey-B/bramble/pkg/routes/audit"
	entityroutes "github.com/Ramsey-B/bramble/pkg/routes/entity"
	"github.com/Ramsey-B/bramble/pkg/routes/health"
	resolveroutes "github.com/Ramsey-B/bramble/pkg/routes/resolve"
	reviewroutes "github.com/Ramsey-B/bramble/pkg/routes/review"
	"github.com/Ramsey-B/bramble/pkg/scoring"
	"github.com/Ramsey-B/bramble/pkg/synonyms"
	"github.com/Ramsey-B/bramble/pkg/tracing"
	"github.com/Ramsey-B/bramble/pkg/tracing/exporters"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, flush, err := logging.NewZapEctoLogger(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	// Tracing
	if cfg.TracingEnabled {
		exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resource.NewSchemaless(
				attribute.String("service.name", cfg.AppName),
				attribute.String("service.version", version),
			)),
		)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
		otel.SetTracerProvider(tp)
		tracing.SetTracer(tp.Tracer(cfg.AppName))
	}

	// PostgreSQL: review queue, audit trail, merge ledger
	db, err := startDependency(ctx, logger, "postgres", cfg.StartupMaxAttempts, func() (database.DB, error) {
		return database.Connect(database.Config{
			Driver:          cfg.DatabaseDriver,
			Host:            cfg.DatabaseHost,
			Port:            cfg.DatabasePort,
			UserName:        cfg.DatabaseUserName,
			Password:        cfg.DatabasePassword,
			Name:            cfg.DatabaseName,
			SSLMode:         cfg.DatabaseSSLMode,
			MaxOpenConns:    cfg.DatabaseMaxOpenConns,
			MaxIdleConns:    cfg.DatabaseMaxIdleConns,
			ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
		}, logger)
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.DatabaseName, cfg.DatabaseMigrationFolderPath, logger); err != nil {
		return err
	}

	// Graph database: entities, synonyms, decisions, relationships
	graph, err := startDependency(ctx, logger, "graph", cfg.StartupMaxAttempts, func() (*graphstore.Client, error) {
		return graphstore.NewClient(graphstore.Config{
			Host:       cfg.GraphDBHost,
			Port:       cfg.GraphDBPort,
			Username:   cfg.GraphDBUser,
			Password:   cfg.GraphDBPassword,
			GraphName:  cfg.GraphDBName,
			RetryCount: cfg.GraphRetryCount,
		}, logger)
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = graph.Close(closeCtx)
	}()

	if err := graph.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create graph indexes: %w", err)
	}

	// Repositories
	entities := repositories.NewEntityRepository(graph, logger)
	synonymRepo := repositories.NewSynonymRepository(graph, logger)
	decisions := repositories.NewDecisionRepository(graph, logger)
	duplicates := repositories.NewDuplicateRepository(graph, logger)
	relationships := repositories.NewRelationshipRepository(graph, logger)
	reviewQueue := reviewrepo.NewRepository(db, logger)
	auditTrail := auditrepo.NewRepository(db, logger)
	ledger := mergerecord.NewRepository(db, logger)

	// Event bus and subscribers
	bus := events.NewBus(logger)

	resolutionCache := cache.NewResolutionCache(cfg.CacheMaxSize, time.Duration(cfg.CacheTtlSeconds)*time.Second)
	bus.SubscribeMerge(resolutionCache)

	metricsListener := metrics.NewListener()
	bus.SubscribeMerge(metricsListener)
	bus.SubscribeReview(metricsListener)

	// Services
	locker := locks.NewGraphLocker(graph, logger, cfg.LockTTL(), cfg.LockMaxRetries)

	decay := synonyms.NewDecayEngine(synonyms.DecayConfig{
		Lambda:      cfg.ConfidenceDecayLambda,
		Cap:         cfg.ReinforcementCap,
		TargetCount: cfg.ReinforcementTargetCount,
		Penalty:     cfg.RejectionPenalty,
	})
	synonymService := synonyms.NewService(synonymRepo, decay, logger)

	engine := merging.NewEngine(entities, synonymRepo, duplicates, relationships, ledger, auditTrail, locker, bus, logger)

	reviewService := review.NewService(reviewQueue, decisions, entities, engine, synonymService, auditTrail, bus, logger)

	var provider llm.Provider
	if cfg.UseLLM {
		claude, err := llm.NewClaudeProvider(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMMaxRetries, logger)
		if err != nil {
			return fmt.Errorf("failed to create LLM provider: %w", err)
		}
		provider = claude
	}

	opts := resolution.Options{
		AutoMergeThreshold:     cfg.AutoMergeThreshold,
		SynonymThreshold:       cfg.SynonymThreshold,
		ReviewThreshold:        cfg.ReviewThreshold,
		AutoMergeEnabled:       cfg.AutoMergeEnabled,
		UseLLM:                 cfg.UseLLM,
		LLMFloor:               cfg.LLMFloorScore,
		LLMConfidenceThreshold: cfg.LLMConfidenceThreshold,
		SourceSystem:           cfg.SourceSystem,
		Weights: scoring.Weights{
			Levenshtein: cfg.SimilarityWeightLevenshtein,
			JaroWinkler: cfg.SimilarityWeightJaroWinkler,
			Jaccard:     cfg.SimilarityWeightJaccard,
		},
		FullScanLimit:        cfg.FullScanLimit,
		MaxBatchSize:         cfg.MaxBatchSize,
		BatchCommitChunkSize: cfg.BatchCommitChunkSize,
		MaxBatchMemoryBytes:  cfg.MaxBatchMemoryBytes,
		CachingEnabled:       cfg.CachingEnabled,
		CacheMaxSize:         cfg.CacheMaxSize,
		CacheTTL:             time.Duration(cfg.CacheTtlSeconds) * time.Second,
		LockTimeout:          cfg.LockTimeout(),
		AsyncTimeout:         cfg.AsyncTimeout(),
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	resolver := resolution.NewResolver(entities, synonymRepo, synonymService, decisions, reviewService, auditTrail, resolutionCache, provider, locker, bus, opts, logger)

	auditService := audit.NewService(auditTrail, ledger, entities, logger)

	// Kafka
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()
	bus.SubscribeMerge(kafka.NewMergePublisher(producer, logger))
	bus.SubscribeReview(kafka.NewReviewPublisher(producer, logger))

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaInputTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, kafka.NewMentionHandler(resolver, producer, logger))
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = consumer.Stop() }()
	}

	// Dependency injection for route handlers
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}
	if err := registerDependencies(container, logger, entities, synonymRepo, duplicates, relationships, resolver, engine, reviewService, auditService); err != nil {
		return err
	}

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Context())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	checker := health.NewChecker(db, graph, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	resolveroutes.Register(api.Group("/resolve"))
	entityroutes.Register(api.Group("/entities"))
	reviewroutes.Register(api.Group("/reviews"))
	auditroutes.Register(api.Group("/audit"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]any{"port": cfg.Port}).Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	checker.SetReady(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	checker.SetReady(false)
	logger.Infof("Shutting down %s", cfg.AppName)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// startDependency retries the connect function with fibonacci backoff, the
// same discipline the platform startup orchestrator applies.
func startDependency[T any](ctx context.Context, logger ectologger.Logger, name string, maxAttempts int, connect func() (T, error)) (T, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var zero T
	var lastErr error
	a, b := 1, 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := connect()
		if err == nil {
			return v, nil
		}
		lastErr = err
		logger.WithError(err).Errorf("Startup dependency '%s' attempt %d failed", name, attempt)

		if attempt == maxAttempts {
			break
		}
		logger.Infof("Retrying '%s' in %d seconds (attempt %d/%d)", name, a, attempt, maxAttempts)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(time.Duration(a) * time.Second):
		}
		a, b = b, a+b
	}

	return zero, fmt.Errorf("startup dependency '%s' failed after %d attempts: %w", name, maxAttempts, lastErr)
}

func registerDependencies(
	container ectocontainer.DIContainer,
	logger ectologger.Logger,
	entities *repositories.EntityRepository,
	synonymRepo *repositories.SynonymRepository,
	duplicates *repositories.DuplicateRepository,
	relationships *repositories.RelationshipRepository,
	resolver *resolution.Resolver,
	engine *merging.Engine,
	reviewService *review.Service,
	auditService *audit.Service,
) error {
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*repositories.EntityRepository](container, entities); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*repositories.SynonymRepository](container, synonymRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*repositories.DuplicateRepository](container, duplicates); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*repositories.RelationshipRepository](container, relationships); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*resolution.Resolver](container, resolver); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*merging.Engine](container, engine); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*review.Service](container, reviewService); err != nil {
		return err
	}
	return ectoinject.RegisterInstance[*audit.Service](container, auditService)
}
