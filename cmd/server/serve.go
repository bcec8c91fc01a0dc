package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appservices "github.com/Orelexa/gardrob/internal/application/services"
	"github.com/Orelexa/gardrob/internal/application/usecases"
	"github.com/Orelexa/gardrob/internal/config"
	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	domainservices "github.com/Orelexa/gardrob/internal/domain/services"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
	"github.com/Orelexa/gardrob/internal/infrastructure/api"
	"github.com/Orelexa/gardrob/internal/infrastructure/external"
	"github.com/Orelexa/gardrob/internal/infrastructure/imageloader"
	"github.com/Orelexa/gardrob/internal/infrastructure/images"
	"github.com/Orelexa/gardrob/internal/infrastructure/metrics"
	"github.com/Orelexa/gardrob/internal/infrastructure/services"
	"github.com/Orelexa/gardrob/internal/infrastructure/storage"
)

func newServeCommand(configPath *string) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			if err := cfg.RequireAI(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("boot",
		"project", cfg.ProjectID,
		"location", cfg.Location,
		"edit_model", cfg.EditModel,
		"vto_model", cfg.VTOModel,
		"use_tryon", cfg.UseTryOn,
		"use_sdk", cfg.UseSDK,
		"db", cfg.Database.Driver,
	)

	db, closeDB, err := openStore(ctx, cfg.Database, true)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeDB()

	pool := services.NewClientPoolService(repositories.AIClientConfig{
		ProjectID:    cfg.ProjectID,
		Location:     cfg.Location,
		GeminiAPIKey: cfg.GeminiAPIKey,
	})
	defer pool.Close()

	blobs, err := storage.NewFilesystemBlobStore(cfg.Blobs.Dir, cfg.Blobs.PublicURL)
	if err != nil {
		return err
	}

	fetcher := imageloader.NewHTTPFetcher(nil, cfg.MaxImageBytes())
	resolver, err := images.NewResolver(blobs, fetcher, images.DefaultCacheSize)
	if err != nil {
		return err
	}

	transform := domainservices.NewTransformService(
		external.NewGeminiImageEditService(pool.GenAIPool()),
		resolver,
		blobs,
		cfg.EditModel,
	)
	if cfg.UseTryOn {
		vto := external.NewVertexAIService(pool.Config(), pool.VertexAIPool(), cfg.VTOModel, cfg.UseSDK)
		transform.WithTryOn(vto, valueobjects.DefaultTryOnParameters())
	}

	m := metrics.New()

	var rewrite imageloader.Rewriter
	if cfg.Loader.RewriteFrom != "" && cfg.Loader.RewriteTo != "" {
		rewrite = imageloader.PrefixRewriter(cfg.Loader.RewriteFrom, cfg.Loader.RewriteTo)
	}
	loader := imageloader.New(imageloader.Config{
		Limit:    cfg.Loader.Limit,
		Fetcher:  fetcher,
		Rewrite:  rewrite,
		Observer: m.LoaderObserver(),
	})
	defer loader.Close()

	catalog, err := poseCatalog(cfg.Poses)
	if err != nil {
		return err
	}
	sessions, err := usecases.NewSessionRegistry(catalog, cfg.MaxSessions)
	if err != nil {
		return err
	}

	classifier := external.NewGeminiGarmentClassifier(pool.GenAIPool(), cfg.ClassifierModel, entities.GarmentCategories)

	var health api.Pinger
	if p, ok := db.(api.Pinger); ok {
		health = p
	}

	handler := api.NewHandler(api.HandlerConfig{
		Session:          usecases.NewSessionUseCase(sessions, db, db, m.InstrumentTransformer(transform), logger),
		Outfits:          usecases.NewOutfitUseCase(sessions, db, db, logger),
		Wardrobe:         usecases.NewWardrobeUseCase(db, blobs, classifier, logger),
		Models:           usecases.NewModelUseCase(db, blobs, transform, logger),
		Prefetch:         usecases.NewPrefetchUseCase(db, loader, cfg.BaseURL(), logger),
		Params:           appservices.NewParameterService(cfg.MaxUploadBytes()),
		Health:           health,
		TransformTimeout: cfg.TransformTimeout,
		Logger:           logger,
	})

	router := api.NewRouter(api.RouterConfig{
		Handler:  handler,
		Limiter:  api.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, logger),
		Metrics:  m,
		Blobs:    blobs,
		BlobPath: storage.DefaultPublicPath,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
