package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"IntelDigest/internal/config"
	"IntelDigest/internal/dedup"
	"IntelDigest/internal/domain"
	"IntelDigest/internal/infrastructure/embedding"
	"IntelDigest/internal/infrastructure/feeds"
	"IntelDigest/internal/infrastructure/filedelivery"
	"IntelDigest/internal/infrastructure/index"
	"IntelDigest/internal/infrastructure/llm"
	"IntelDigest/internal/infrastructure/scheduler"
	"IntelDigest/internal/infrastructure/storage"
	"IntelDigest/internal/infrastructure/telegram"
	"IntelDigest/internal/logging"
	"IntelDigest/internal/ports"
	"IntelDigest/internal/selector"
	"IntelDigest/internal/sources"
	"IntelDigest/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.SQLRepository
	index  *index.HNSWIndex
	runner *usecase.Runner
	specs  []domain.PipelineSpec
}

// New opens the store and the similarity index and builds the pipeline.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	specs, err := cfg.PipelineSpecs()
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	idx, err := index.Open(cfg.Index.Path, cfg.Index.Dimensions)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open index %s: %w", cfg.Index.Path, err)
	}
	maxID, err := store.MaxIndexID(ctx)
	if err != nil {
		_ = idx.Close()
		_ = store.Close()
		return nil, err
	}
	idx.AdvanceTo(maxID + 1)

	embedder, err := newEmbedder(cfg.Index)
	if err != nil {
		_ = idx.Close()
		_ = store.Close()
		return nil, err
	}

	detector := dedup.NewDetector(store, idx, embedder, dedup.Config{
		Window:    cfg.Dedup.Window(),
		Threshold: cfg.Dedup.SimilarityThreshold,
		Scope:     dedup.Scope(cfg.Dedup.Scope),
	}, baseLogger.With("component", "dedup"))

	generator := llm.NewClient(cfg.LLM, baseLogger.With("component", "llm"))

	registry := sources.NewRegistry()
	feeds.Register(registry, feeds.NewClient(nil, cfg.Fetch.RequestTimeout(), cfg.Fetch.UserAgent))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Sources:     registry,
		Detector:    detector,
		Selector:    selector.New(generator, baseLogger.With("component", "selector")),
		Logger:      baseLogger.With("component", "pipeline"),
		Concurrency: cfg.Fetch.Concurrency,
	})

	deliverers, err := newDeliverers(cfg.Notifications)
	if err != nil {
		_ = idx.Close()
		_ = store.Close()
		return nil, err
	}

	return &Application{
		cfg:    cfg,
		logger: baseLogger,
		store:  store,
		index:  idx,
		runner: usecase.NewRunner(pipeline, deliverers, baseLogger.With("component", "runner")),
		specs:  specs,
	}, nil
}

// OpenStore connects to the configured dedup store without touching the index.
func OpenStore(ctx context.Context, cfg config.Config) (*storage.SQLRepository, error) {
	store, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func newEmbedder(cfg config.IndexConfig) (ports.Embedder, error) {
	if cfg.Embedder == "http" {
		client, err := embedding.NewClient(cfg.EmbeddingEndpoint, cfg.EmbeddingModel, cfg.EmbeddingAPIKey, cfg.Dimensions, nil)
		if err != nil {
			return nil, fmt.Errorf("embedding client: %w", err)
		}
		return client, nil
	}
	return dedup.NewHashEmbedder(cfg.Dimensions), nil
}

func newDeliverers(cfg config.NotificationConfig) ([]ports.Deliverer, error) {
	var deliverers []ports.Deliverer
	if !cfg.File.Disabled {
		writer, err := filedelivery.New(cfg.File.OutputDir)
		if err != nil {
			return nil, err
		}
		deliverers = append(deliverers, writer)
	}
	if cfg.Telegram.Enabled() {
		deliverers = append(deliverers, telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	return deliverers, nil
}

// Specs lists the enabled pipelines.
func (a *Application) Specs() []domain.PipelineSpec {
	return a.specs
}

// RunOnce executes every enabled pipeline, or only the named one.
func (a *Application) RunOnce(ctx context.Context, pipelineName string) ([]usecase.RunReport, error) {
	specs := a.specs
	if pipelineName != "" {
		specs = nil
		for _, spec := range a.specs {
			if spec.Name == pipelineName {
				specs = append(specs, spec)
			}
		}
		if len(specs) == 0 {
			return nil, fmt.Errorf("pipeline %s is not configured or disabled", pipelineName)
		}
	}
	return a.runner.RunAll(ctx, specs)
}

// Serve runs all pipelines daily at the configured hour until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	driver, err := scheduler.NewDailyScheduler(a.cfg.Scheduler.RunHour(), a.cfg.Scheduler.Location())
	if err != nil {
		return err
	}

	sched := usecase.NewScheduler(driver, a.runner, a.specs, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started",
		"next_run", driver.NextRun(time.Now()).Format(time.RFC3339),
		"pipelines", len(a.specs),
	)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close flushes the index and releases the store.
func (a *Application) Close() error {
	var errs []error
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
