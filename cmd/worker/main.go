package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"assetforge/internal/adapter/repo"
	"assetforge/internal/db"
	"assetforge/internal/domain"
	"assetforge/internal/infra"
	"assetforge/internal/pipeline"
	imgprov "assetforge/internal/providers/image"
	"assetforge/internal/providers/mesh"
	"assetforge/internal/providers/meshy"
	"assetforge/internal/storage"
)

// pollWorker drives unfinished external tasks to a terminal state by
// polling the provider. The HTTP API does the same reconciliation on
// client polls and webhooks; running both is safe.
type pollWorker struct {
	svc      *pipeline.Service
	logger   infra.Logger
	interval time.Duration
	backoff  time.Duration
	maxTries int
	attempts map[string]int
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("worker: DATABASE_URL is required")
	}
	if cfg.MeshyAPIKey == "" {
		logger.Fatal().Msg("worker: MESHY_API_KEY is required")
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to ensure schema")
	}

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	jobs, err := meshy.NewClient(meshy.Options{
		APIKey:     cfg.MeshyAPIKey,
		BaseURL:    cfg.MeshyBaseURL,
		WebhookURL: cfg.MeshyWebhookURL,
		HTTPClient: httpClient,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure 3d provider")
	}

	svc := pipeline.NewService(pipeline.Deps{
		Assets: repo.NewAssetRepository(pool),
		Tasks:  repo.NewTaskRepository(pool),
		Store:  fileStore,
		Images: imgprov.NewProceduralGenerator(),
		Mesher: mesh.NewProceduralMesher(),
		Jobs:   jobs,
		Logger: logger,
	})

	worker := &pollWorker{
		svc:      svc,
		logger:   logger,
		interval: cfg.PollInterval,
		backoff:  cfg.PollBackoff,
		maxTries: cfg.PollMaxAttempts,
		attempts: make(map[string]int),
	}
	logger.Info().Dur("interval", worker.interval).Int("max_attempts", worker.maxTries).Msg("worker: polling started")
	worker.run(ctx)
	logger.Info().Msg("worker: stopped")
}

func (w *pollWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *pollWorker) sweep(ctx context.Context) {
	tasks, err := w.svc.UnfinishedTasks(ctx, 50)
	if err != nil {
		w.logger.Error().Err(err).Msg("worker: failed to list tasks")
		return
	}
	live := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		live[task.TaskID] = true
		w.poll(ctx, task.TaskID)
	}
	// Drop attempt counters for tasks that reached a terminal asset.
	for id := range w.attempts {
		if !live[id] {
			delete(w.attempts, id)
		}
	}
}

func (w *pollWorker) poll(ctx context.Context, taskID string) {
	w.attempts[taskID]++
	if w.attempts[taskID] > w.maxTries {
		if err := w.svc.ExpireTask(ctx, taskID, "polling budget exhausted before the job finished"); err != nil {
			w.logger.Error().Err(err).Str("task_id", taskID).Msg("worker: failed to expire task")
		}
		return
	}

	outcome, _, err := w.svc.PollTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrProviderFailure) {
			w.logger.Warn().Err(err).Str("task_id", taskID).Msg("worker: provider unavailable, backing off")
			select {
			case <-ctx.Done():
			case <-time.After(w.backoff):
			}
			return
		}
		w.logger.Error().Err(err).Str("task_id", taskID).Msg("worker: poll failed")
		return
	}
	w.logger.Debug().Str("task_id", taskID).Str("outcome", outcome.String()).Int("attempt", w.attempts[taskID]).Msg("worker: polled task")
}
