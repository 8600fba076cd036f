// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"github.com/ellaouzi/fos-app-sub002/internal/common/aws"
	"github.com/ellaouzi/fos-app-sub002/internal/common/camunda"
	"github.com/ellaouzi/fos-app-sub002/internal/common/config"
	"github.com/ellaouzi/fos-app-sub002/internal/common/database"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/common/observability"
	"github.com/ellaouzi/fos-app-sub002/internal/common/opsserver"
	"github.com/ellaouzi/fos-app-sub002/internal/common/storage"
	"github.com/ellaouzi/fos-app-sub002/internal/forms/schema"

	// Form Workers (4)
	ca "github.com/ellaouzi/fos-app-sub002/internal/workers/forms/compare-answers"
	lfs "github.com/ellaouzi/fos-app-sub002/internal/workers/forms/load-form-schema"
	rf "github.com/ellaouzi/fos-app-sub002/internal/workers/forms/render-form"
	sd "github.com/ellaouzi/fos-app-sub002/internal/workers/forms/submit-demande"

	// Demande Workers (5)
	bdv "github.com/ellaouzi/fos-app-sub002/internal/workers/demande/build-demande-view"
	ce "github.com/ellaouzi/fos-app-sub002/internal/workers/demande/check-eligibility"
	nds "github.com/ellaouzi/fos-app-sub002/internal/workers/demande/notify-demande-status"
	srd "github.com/ellaouzi/fos-app-sub002/internal/workers/demande/search-demandes"
	uds "github.com/ellaouzi/fos-app-sub002/internal/workers/demande/update-demande-status"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, zapLog)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init MinIO with retry ---
	var docs *storage.DocumentStore
	err = retryWithBackoff(func() error {
		var err error
		docs, err = storage.NewMinio(cfg.Storage.Minio, cfg.Forms)
		if err != nil {
			return err
		}
		return docs.EnsureBucket(ctx)
	}, 10, 2*time.Second, zapLog, "MinIO connection")
	if err != nil {
		zapLog.Fatal("minio failed after retries", zap.Error(err))
	}
	zapLog.Info("MinIO connected successfully")

	// --- Schema resolution: disk overrides, then Postgres, then bundled ---
	sources := []schema.Source{}
	if cfg.Forms.SchemaDir != "" {
		sources = append(sources, schema.NewDirSource(cfg.Forms.SchemaDir))
	}
	sources = append(sources, schema.NewPostgresSource(pg.DB), schema.NewBundledSource())
	cached := schema.NewCachedSource(
		schema.NewChainSource(sources...),
		redis.Client,
		cfg.Forms.CachePrefix,
		cfg.Forms.CacheTTLDuration(),
		log,
	)
	loader := schema.NewLoader(cached, log)

	// --- Notification senders ---
	var mailer nds.Mailer
	var sms nds.SMSSender
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Notifications.AWSRegion)
		if err != nil {
			zapLog.Fatal("aws config failed", zap.Error(err))
		}
		if cfg.Notifications.Email.Enabled {
			mailer = aws.NewSESClient(awsCfg, cfg.Notifications.Email.FromEmail)
		}
		if cfg.Notifications.SMS.Enabled {
			sms = aws.NewSNSClient(awsCfg, cfg.Notifications.SMS.SenderID)
		}
	}

	// --- START: Register Workers ---
	var workers []worker.JobWorker
	start := func(taskType string, handler worker.JobHandler) {
		wcfg := config.GetWorkerConfig(cfg, taskType)
		if jw := camunda.StartWorker(zeebe.GetClient(), taskType, wcfg, handler, obs, zapLog); jw != nil {
			workers = append(workers, jw)
		}
	}
	wcfg := func(taskType string) config.WorkerConfig {
		return config.GetWorkerConfig(cfg, taskType)
	}

	// --- 1. Form Workers (4) ---
	start(lfs.TaskType, lfs.NewHandler(lfs.LoadConfig(wcfg(lfs.TaskType)), loader, log).Handle)
	start(rf.TaskType, rf.NewHandler(rf.LoadConfig(wcfg(rf.TaskType)), loader, log).Handle)
	start(sd.TaskType, sd.NewHandler(
		sd.LoadConfig(wcfg(sd.TaskType), cfg.Database.Elasticsearch),
		loader, pg.DB, docs, esClient, log,
	).Handle)
	start(ca.TaskType, ca.NewHandler(ca.LoadConfig(wcfg(ca.TaskType)), loader, pg.DB, log).Handle)

	// --- 2. Demande Workers (5) ---
	start(bdv.TaskType, bdv.NewHandler(bdv.LoadConfig(wcfg(bdv.TaskType)), pg.DB, loader, log).Handle)
	start(ce.TaskType, ce.NewHandler(ce.LoadConfig(wcfg(ce.TaskType), cfg.Forms), pg.DB, redis.Client, log).Handle)
	start(uds.TaskType, uds.NewHandler(
		uds.LoadConfig(wcfg(uds.TaskType), cfg.Database.Elasticsearch),
		pg.DB, esClient, log,
	).Handle)
	start(srd.TaskType, srd.NewHandler(
		srd.LoadConfig(wcfg(srd.TaskType), cfg.Database.Elasticsearch),
		esClient, log,
	).Handle)

	notify, err := nds.NewHandler(nds.LoadConfig(wcfg(nds.TaskType), cfg.Notifications), pg.DB, mailer, sms, log)
	if err != nil {
		zapLog.Fatal("failed to create notify-demande-status handler", zap.Error(err))
	}
	start(nds.TaskType, notify.Handle)

	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Ops server ---
	ops := opsserver.New(opsserver.Options{
		Address: cfg.Server.Address,
		Loader:  loader,
		Checks: map[string]opsserver.CheckFunc{
			"zeebe":         zeebe.HealthCheck,
			"postgres":      pg.Ping,
			"redis":         redis.Ping,
			"minio":         docs.Ping,
			"elasticsearch": func(context.Context) error { return esClient.Ping() },
		},
	}, log)
	ops.Start()

	// --- Wait for shutdown ---
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	zapLog.Info("Shutting down worker manager...")

	for _, jw := range workers {
		jw.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("ops server shutdown failed", zap.Error(err))
	}
	zapLog.Info("Worker manager stopped")
}
