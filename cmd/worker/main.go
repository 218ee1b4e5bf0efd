package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/plan-configurator/internal/app"
	"github.com/noah-isme/plan-configurator/internal/archive"
	"github.com/noah-isme/plan-configurator/internal/config"
	"github.com/noah-isme/plan-configurator/internal/events"
	"github.com/noah-isme/plan-configurator/internal/lock"
	"github.com/noah-isme/plan-configurator/internal/notify"
	"github.com/noah-isme/plan-configurator/internal/obs"
	"github.com/noah-isme/plan-configurator/internal/queue"
	"github.com/noah-isme/plan-configurator/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := app.EnvOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := app.EnvOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(app.EnvOrDefault("OBS_METRICS_NAMESPACE", "planconfig"), nil)
	resilience.MustRegisterMetrics(nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	deps, err := app.Open(connectCtx, cfg, logger, app.Options{ApplicationName: "plan-configurator-worker"})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer deps.Close()

	// Events raised by the worker are recorded only; nothing is rescheduled from here.
	bus := &events.Bus{
		Store:     deps.Queries,
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}

	handlers := map[string]asynq.Handler{}

	if cfg.ContractWebhookURL != "" {
		deliverer := &notify.Deliverer{
			Store: deps.Queries,
			HTTP: resilience.HTTPClient{
				Client:      notify.HTTPClient(cfg.WebhookRequestTimeout, cfg.WebhookAllowInsecureTLS),
				Breaker:     resilience.NewBreaker(5, 0.5, time.Minute).WithTarget("contract-webhook").WithLogger(logger),
				BaseBackoff: 250 * time.Millisecond,
				MaxAttempts: 2,
				Jitter:      0.2,
				Timeout:     cfg.WebhookRequestTimeout,
			},
			URL:     cfg.ContractWebhookURL,
			Secret:  cfg.ContractWebhookSecret,
			Locker:  lock.Locker{R: deps.Redis, RetryBackoff: 50 * time.Millisecond, MaxWait: 5 * time.Second},
			LockTTL: cfg.WebhookRequestTimeout + 5*time.Second,
			Events:  bus,
		}
		handlers[queue.TypeContractDeliver] = asynq.HandlerFunc(deliverer.ProcessTask)
	} else {
		logger.Warn().Msg("CONTRACT_WEBHOOK_URL not set; contract delivery disabled")
	}

	if cfg.ArchiveEnabled() {
		client, err := archive.NewS3Client(ctx, archive.S3Config{
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.ArchiveS3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("init s3 client")
		}
		archiver := &archive.Archiver{
			S3:     client,
			Bucket: cfg.ArchiveS3Bucket,
			Prefix: app.EnvOrDefault("ARCHIVE_S3_PREFIX", "contracts"),
			Store:  deps.Queries,
			Events: bus,
		}
		handlers[queue.TypeContractArchive] = asynq.HandlerFunc(archiver.ProcessTask)
	}

	srv, err := queue.NewServer(queue.ServerConfig{
		RedisURL:    cfg.RedisURL,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init task server")
	}

	logger.Info().Int("handlers", len(handlers)).Msg("worker starting")
	if err := srv.Start(queue.NewMux(logger, handlers)); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
