package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"example.com/eventcollector/internal/alarm"
	"example.com/eventcollector/internal/config"
	"example.com/eventcollector/internal/ingest"
	"example.com/eventcollector/internal/logger"
	"example.com/eventcollector/internal/storage/blob"
	spg "example.com/eventcollector/internal/storage/postgres"
	"example.com/eventcollector/internal/storage/rediscache"
	transport "example.com/eventcollector/internal/transport/http"
)

func main() {
	cfg := config.Parse()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Logger

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := spg.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()
	log.Info().Msg("db: connected")

	if err := db.RunMigration(ctx, cfg.MigrationPath); err != nil {
		log.Fatal().Err(err).Str("path", cfg.MigrationPath).Msg("migration")
	}
	log.Info().Msg("db: migration applied")

	blobs, err := newBlobStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.BlobBackend).Msg("blob store")
	}

	reporter, closeAlarms := newAlarmReporter(cfg, log)
	defer closeAlarms()

	var cache ingest.SupporterCache
	if cfg.RedisURL != "" {
		rdb, err := rediscache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect")
		}
		defer rdb.Close()
		cache = rediscache.New(rdb, cfg.SupporterCacheTTL)
		log.Info().Dur("ttl", cfg.SupporterCacheTTL).Msg("supporter cache enabled")
	}

	now := func() time.Time { return time.Now().UTC() }

	// The recorder outlives the signal context: requests still in flight
	// during shutdown keep queueing updates until srv.Shutdown returns.
	versionsCtx, stopVersions := context.WithCancel(context.Background())
	defer stopVersions()
	versions := ingest.NewVersionRecorder(db, cfg.VersionQueueSize, cfg.VersionBatchSize, cfg.VersionBatchWait, log)
	versions.Start(versionsCtx)
	log.Info().
		Int("queue", cfg.VersionQueueSize).
		Int("batch", cfg.VersionBatchSize).
		Dur("wait", cfg.VersionBatchWait).
		Msg("version recorder started")

	pipeline := ingest.NewPipeline(
		ingest.NewEscalator(reporter, log),
		ingest.NewRegistry(db, cache, log, now),
		ingest.NewWriter(db, blobs, cfg.BlobRoot, log, now),
		versions,
		log,
	)

	deps := &transport.ServerDeps{
		Cfg:      cfg,
		Pipeline: pipeline,
		DB:       db,
		Stats:    db,
		Log:      log,
		Now:      now,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           deps.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	stopServing(shutdownCtx, srv, stopVersions, versions.Done(), log)
	log.Info().Msg("stopped")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// stopServing drains HTTP first and only then stops the version recorder,
// so updates queued by the last requests are flushed.
func stopServing(ctx context.Context, srv shutdowner, stopVersions context.CancelFunc, versionsDone <-chan struct{}, log zerolog.Logger) {
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	stopVersions()

	select {
	case <-versionsDone:
	case <-ctx.Done():
		log.Warn().Msg("version recorder did not flush before shutdown deadline")
	}
}

func newBlobStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (ingest.BlobStore, error) {
	if cfg.BlobBackend != config.BlobBackendS3 {
		log.Info().Str("dir", cfg.FSBaseDir).Msg("blob store: filesystem")
		return blob.NewFilesystem(cfg.FSBaseDir), nil
	}

	s3, err := blob.NewS3(ctx, blob.S3Config{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    cfg.S3UsePathStyle,
	}, log)
	if err != nil {
		return nil, err
	}
	if cfg.S3EnsureBucket {
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}
	log.Info().Str("bucket", cfg.S3Bucket).Msg("blob store: s3")
	return s3, nil
}

// newAlarmReporter publishes to RabbitMQ behind a circuit breaker when a
// broker is configured, and logs alarms otherwise.
func newAlarmReporter(cfg config.Config, log zerolog.Logger) (ingest.AlarmReporter, func()) {
	if cfg.RabbitURL == "" {
		log.Info().Msg("alarms: log only")
		return alarm.NewLogReporter(log), func() {}
	}

	pub, err := alarm.NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitExchange, log)
	if err != nil {
		log.Error().Err(err).Msg("alarms: broker unavailable, falling back to log")
		return alarm.NewLogReporter(log), func() {}
	}
	log.Info().Str("exchange", cfg.RabbitExchange).Msg("alarms: rabbitmq")
	return alarm.NewBreaker(pub, alarm.BreakerConfig{
		FailureThreshold: cfg.AlarmBreakerFailures,
		Timeout:          cfg.AlarmBreakerOpenTimeout,
	}, log), pub.Close
}
