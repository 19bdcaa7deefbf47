package app

import (
	"context"
	"fmt"

	"bucketstream/config"
	"bucketstream/internal/handler"
	"bucketstream/internal/metrics"
	"bucketstream/internal/outbox"
	relayredis "bucketstream/internal/redis"
	"bucketstream/internal/repository"
	"bucketstream/internal/server"
	"bucketstream/internal/services"
	"bucketstream/internal/storage"
	"bucketstream/internal/websocket"
	"bucketstream/pkg/database"
	"bucketstream/pkg/kafka"
	"bucketstream/pkg/logger"
	"bucketstream/pkg/tracing"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const serviceName = "bucketstream"

// App is the fully wired relay.
type App struct {
	Server   *server.Server
	Registry *websocket.Registry
	Ingest   *services.IngestService
}

// New wires every component from cfg. Optional backends are skipped when
// their settings are empty: no DATABASE_URL keeps events in memory, no
// REDIS_URL disables the event cache, no KAFKA_BROKERS disables forwarding,
// no S3_BUCKET_NAME disables the object-storage endpoints.
func New(ctx context.Context, cfg *config.Config, l *logger.Logger) (*App, error) {
	log := l.Logger
	var cleanup []func(context.Context) error
	fail := func(err error) (*App, error) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			_ = cleanup[i](context.Background())
		}
		return nil, err
	}

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		ServiceName: serviceName,
		Attributes:  map[string]string{"deployment.environment": cfg.AppMode},
	})
	if err != nil {
		return fail(fmt.Errorf("init tracing: %w", err))
	}
	cleanup = append(cleanup, traceShutdown)

	var (
		events      repository.EventRepository
		queue       repository.ForwardQueue
		files       repository.FileContentRepository
		storeHealth handler.HealthCheck
	)
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
		if err != nil {
			return fail(err)
		}
		cleanup = append(cleanup, func(context.Context) error { pool.Close(); return nil })
		if err := repository.InitSchema(ctx, pool); err != nil {
			return fail(fmt.Errorf("init schema: %w", err))
		}
		pg := repository.NewEventRepository(pool)
		events, queue = pg, pg
		files = repository.NewFileContentRepository(pool)
		storeHealth = pool.Ping
		log.Info("using postgres event store")
	} else {
		mem := repository.NewMemoryEventRepository()
		events, queue = mem, mem
		files = repository.NewMemoryFileContentRepository()
		storeHealth = mem.Ping
		log.Warn("DATABASE_URL not set, events are kept in memory only")
	}

	checks := map[string]handler.HealthCheck{"store": storeHealth}
	ingestOpts := []services.IngestOption{services.WithLogger(log.With(zap.String("component", "ingest")))}

	var cache services.EventCache
	if cfg.RedisURL != "" {
		rdb, err := relayredis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			// The cache is optional; the relay keeps working without it.
			log.Warn("redis unavailable, event cache disabled", zap.Error(err))
		} else {
			cleanup = append(cleanup, func(context.Context) error { return rdb.Close() })
			cache = relayredis.NewEventCache(rdb, cfg.Cache.EventTTL)
			ingestOpts = append(ingestOpts, services.WithEventCache(cache))
			checks["cache"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.Compression),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.MaxAttempts,
		})
		cleanup = append(cleanup, func(context.Context) error { return producer.Close() })

		forwarder := outbox.NewProcessor(queue, services.NewKafkaSink(producer),
			log.With(zap.String("component", "forwarder")),
			cfg.Kafka.ForwardBatchSize, cfg.Kafka.ForwardInterval, cfg.Kafka.ForwardMaxAttempts)
		runner := outbox.NewRunner(forwarder)
		runner.Start(context.WithoutCancel(ctx))
		// Registered after the producer so it stops before the producer closes.
		cleanup = append(cleanup, runner.Stop)
		ingestOpts = append(ingestOpts, services.WithNotifier(forwarder))
		log.Info("forwarding events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var objects services.ObjectStore
	if cfg.AWS.Bucket != "" {
		s3Client, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.AWS.Region,
			Bucket:     cfg.AWS.Bucket,
			AccessKey:  cfg.AWS.AccessKey,
			SecretKey:  cfg.AWS.SecretKey,
			Endpoint:   cfg.AWS.Endpoint,
			PresignTTL: cfg.AWS.PresignTTL,
		})
		if err != nil {
			return fail(fmt.Errorf("init s3: %w", err))
		}
		objects = s3Client
	} else {
		log.Warn("S3_BUCKET_NAME not set, object-storage endpoints are disabled")
	}

	registry := websocket.NewRegistry()
	metrics.SetSubscriberSource(registry.Count)
	wsLog := websocket.NewLogger(log)
	dispatcher := websocket.NewDispatcher(registry, cfg.WebSocket.SendTimeout, wsLog)

	storageSvc := services.NewStorageService(objects, events, files, log)
	processing, err := services.NewProcessingService(storageSvc, events, dispatcher, cache, services.ProcessingConfig{
		Patterns:    cfg.Process.KeyPatterns,
		Timeout:     cfg.Process.Timeout,
		Concurrency: cfg.Process.Concurrency,
	}, log.With(zap.String("component", "processing")))
	if err != nil {
		return fail(fmt.Errorf("init processing: %w", err))
	}
	cleanup = append(cleanup, processing.Wait)
	if objects != nil && len(cfg.Process.KeyPatterns) > 0 {
		ingestOpts = append(ingestOpts, services.WithPostProcessor(processing))
		log.Info("processing uploaded objects", zap.Strings("patterns", cfg.Process.KeyPatterns))
	}

	ingest := services.NewIngestService(services.NewValidator(cfg.LambdaSecretKey), events, dispatcher, ingestOpts...)
	query := services.NewEventQueryService(events, cache, log)

	srv := server.New(cfg, l, registry)
	srv.SetupRoutes(&server.Handlers{
		Event:   handler.NewEventHandler(ingest, query),
		Storage: handler.NewStorageHandler(storageSvc, processing),
		Health:  handler.NewHealthHandler(registry.Count, checks),
		WebSocket: websocket.NewHandler(registry, websocket.ClientOptions{
			PingPeriod: cfg.WebSocket.PingPeriod,
			PongWait:   cfg.WebSocket.PongWait,
		}, wsLog),
	})
	for i := len(cleanup) - 1; i >= 0; i-- {
		srv.OnShutdown(cleanup[i])
	}

	return &App{Server: srv, Registry: registry, Ingest: ingest}, nil
}
