package main

import (
	"context"
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
	"assetforge/internal/http/handlers"
	httpapi "assetforge/internal/http/httpapi"
	"assetforge/internal/infra"
	"assetforge/internal/infra/geoip"
	"assetforge/internal/pipeline"
	imgprov "assetforge/internal/providers/image"
	"assetforge/internal/providers/mesh"
	"assetforge/internal/providers/meshy"
	"assetforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	var (
		assets domain.AssetRepository
		tasks  domain.TaskRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
		assets = repo.NewAssetRepository(pool)
		tasks = repo.NewTaskRepository(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store")
		mem := repo.NewMemoryStore()
		assets = mem.Assets()
		tasks = mem.Tasks()
	}

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	hosted := imgprov.NewHostedGenerator(imgprov.HostedOptions{
		APIKey:     cfg.ImageAPIKey,
		BaseURL:    cfg.ImageBaseURL,
		Model:      cfg.ImageModel,
		HTTPClient: httpClient,
	})
	if !hosted.Configured() {
		logger.Warn().Msg("IMAGE_API_KEY missing, using procedural image generation only")
	}
	images := imgprov.NewFallbackGenerator(hosted, imgprov.NewProceduralGenerator(), logger)

	var jobs meshy.JobClient
	if cfg.MeshyAPIKey != "" {
		client, err := meshy.NewClient(meshy.Options{
			APIKey:     cfg.MeshyAPIKey,
			BaseURL:    cfg.MeshyBaseURL,
			WebhookURL: cfg.MeshyWebhookURL,
			HTTPClient: httpClient,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure 3d provider")
		}
		jobs = client
	} else {
		logger.Warn().Msg("MESHY_API_KEY missing, final model generation disabled")
	}

	svc := pipeline.NewService(pipeline.Deps{
		Assets:          assets,
		Tasks:           tasks,
		Store:           fileStore,
		Images:          images,
		Mesher:          mesh.NewProceduralMesher(),
		Jobs:            jobs,
		GenerateTimeout: cfg.GenerateTimeout,
		Logger:          logger,
	})

	countries, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable")
	}
	if countries != nil {
		defer countries.Close()
	}

	app := handlers.NewApp(svc, fileStore, logger)
	var resolver geoip.CountryResolver
	if countries != nil {
		resolver = countries
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:     logger,
		Countries:  resolver,
		StorageDir: storagePath,
		CORS:       []string{"*"},
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
