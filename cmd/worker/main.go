package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pixelpop/server/internal/adapter/repo"
	"pixelpop/server/internal/billing"
	"pixelpop/server/internal/infra"
	"pixelpop/server/internal/postprocess"
	"pixelpop/server/internal/providers/image"
	"pixelpop/server/internal/providers/openai"
	"pixelpop/server/internal/queue"
	"pixelpop/server/internal/storage"
	"pixelpop/server/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The standalone worker only makes sense against a durable queue shared
	// with the API process.
	if !cfg.DurableQueue() {
		logger.Fatal().Msg("worker: REDIS_URL is required")
	}
	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer redisClient.Close()
	manager := queue.NewManager(queue.NewRedisBackend(redisClient))

	httpClient := &http.Client{Timeout: 60 * time.Second}
	client := openai.NewClient(openai.Options{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	generator := image.NewOpenAIGenerator(client, httpClient)

	var store storage.BlobStore
	if cfg.StoragePath != "" {
		fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: failed to configure storage")
		}
		store = fileStore
	} else {
		s3Client, err := storage.NewS3Client(ctx, cfg.AWSRegion)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: s3 unavailable, artifacts will degrade to data urls")
		} else {
			store = storage.NewS3Store(s3Client, cfg.AWSBucketName)
		}
	}
	sink := storage.NewSink(store, logger)

	var ledger billing.Ledger
	var mirror *repo.GenerationRepositoryPG
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: db connection failed")
		}
		defer pool.Close()
		ledger = repo.NewLedgerRepository(pool)
		mirror = repo.NewGenerationRepository(pool)
	}

	opts := worker.Options{
		Queue:        manager,
		Generator:    generator,
		Watermark:    postprocess.NewWatermarker(cfg.WatermarkText, logger),
		Sink:         sink,
		Ledger:       ledger,
		HTTPClient:   httpClient,
		Logger:       logger,
		PollInterval: cfg.QueuePollInterval,
	}
	if mirror != nil {
		opts.Mirror = mirror
	}
	w := worker.New(opts)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
