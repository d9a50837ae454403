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
	"pixelpop/server/internal/http/handlers"
	httpapi "pixelpop/server/internal/http/httpapi"
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

	// Queue backend: Redis when configured, otherwise in-process. With the
	// in-process backend there is no separate worker binary to drain jobs, so
	// the API embeds one.
	var backend queue.Backend
	embedWorker := !cfg.DurableQueue()
	if cfg.DurableQueue() {
		redisClient, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: redis connection failed")
		}
		defer redisClient.Close()
		backend = queue.NewRedisBackend(redisClient)
	} else {
		logger.Warn().Msg("api: REDIS_URL not set, using in-memory queue with embedded worker")
		backend = queue.NewMemoryBackend()
	}
	manager := queue.NewManager(backend)

	if embedWorker {
		w, cleanup, err := buildWorker(ctx, cfg, logger, manager)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: failed to configure embedded worker")
		}
		defer cleanup()
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("api: embedded worker stopped with error")
			}
		}()
	}

	app := handlers.NewApp(manager, logger)
	router := httpapi.NewRouter(app, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildWorker assembles the full generation pipeline. The returned cleanup
// closes the optional database pool.
func buildWorker(ctx context.Context, cfg *infra.Config, logger infra.Logger, manager *queue.Manager) (*worker.Worker, func(), error) {
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
			return nil, nil, err
		}
		store = fileStore
	} else {
		s3Client, err := storage.NewS3Client(ctx, cfg.AWSRegion)
		if err != nil {
			logger.Warn().Err(err).Msg("api: s3 unavailable, artifacts will degrade to data urls")
		} else {
			store = storage.NewS3Store(s3Client, cfg.AWSBucketName)
		}
	}
	sink := storage.NewSink(store, logger)

	cleanup := func() {}
	var ledger billing.Ledger
	var mirror *repo.GenerationRepositoryPG
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		cleanup = pool.Close
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
	return worker.New(opts), cleanup, nil
}
