package usecases

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/services"
)

// ImageLoader warms images ahead of display and reports the url to show.
type ImageLoader interface {
	Load(ctx context.Context, url string) (string, error)
}

// PrefetchUseCase warms every garment image in a user's wardrobe through
// the shared loader. Failed images fall back to their original url.
type PrefetchUseCase struct {
	items   repositories.WardrobeRepository
	loader  ImageLoader
	baseURL string
	logger  *slog.Logger
}

// NewPrefetchUseCase creates the use case. Relative image references are
// resolved against baseURL before loading.
func NewPrefetchUseCase(items repositories.WardrobeRepository, loader ImageLoader, baseURL string, logger *slog.Logger) *PrefetchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrefetchUseCase{
		items:   items,
		loader:  loader,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type PrefetchResult struct {
	GarmentID entities.GarmentID
	URL       string
	Loaded    bool
}

func (uc *PrefetchUseCase) Execute(ctx context.Context, userID string) ([]PrefetchResult, error) {
	items, err := uc.items.ListItems(ctx, userID)
	if err != nil {
		return nil, &services.PersistenceError{Op: "list wardrobe", Err: err}
	}

	results := make([]PrefetchResult, len(items))

	// The loader bounds concurrency, so one goroutine per item is fine here.
	// Per-image failures fall back; only cancellation fails the batch.
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			original := uc.absolute(item.Garment().Image().String())
			results[i] = PrefetchResult{GarmentID: item.ID(), URL: original}

			resolved, err := uc.loader.Load(gctx, original)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				uc.logger.Debug("prefetch fell back to original", "user", userID, "garment", item.ID(), "error", err)
				return nil
			}
			results[i].URL = resolved
			results[i].Loaded = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (uc *PrefetchUseCase) absolute(ref string) string {
	if uc.baseURL == "" || !strings.HasPrefix(ref, "/") {
		return ref
	}
	return uc.baseURL + ref
}
