package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/services"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

type WardrobeUseCase struct {
	items      repositories.WardrobeRepository
	blobs      repositories.BlobStore
	classifier repositories.GarmentClassifier
	logger     *slog.Logger
}

// NewWardrobeUseCase creates the use case. classifier may be nil, in which
// case uploads without a category stay uncategorized.
func NewWardrobeUseCase(
	items repositories.WardrobeRepository,
	blobs repositories.BlobStore,
	classifier repositories.GarmentClassifier,
	logger *slog.Logger,
) *WardrobeUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &WardrobeUseCase{
		items:      items,
		blobs:      blobs,
		classifier: classifier,
		logger:     logger,
	}
}

type CreateGarmentInput struct {
	UserID    string
	Name      string
	Category  string
	ImageData []byte
	MimeType  string
}

type UpdateGarmentInput struct {
	UserID   string
	ID       entities.GarmentID
	Name     *string
	Category *string
}

func (uc *WardrobeUseCase) Create(ctx context.Context, input CreateGarmentInput) (*entities.WardrobeItem, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: garment name is required", services.ErrValidation)
	}

	image, err := valueobjects.NewImageData(input.ImageData, input.MimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid garment image: %v", services.ErrValidation, err)
	}

	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = uc.suggestCategory(ctx, image)
	}

	ref, err := uc.blobs.Put(ctx, image.Data(), image.MimeType())
	if err != nil {
		return nil, &services.PersistenceError{Op: "store garment image", Err: err}
	}

	item, err := entities.NewWardrobeItem(input.UserID, strings.TrimSpace(input.Name), category, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", services.ErrValidation, err)
	}

	if err := uc.items.SaveItem(ctx, item); err != nil {
		return nil, &services.PersistenceError{Op: "save garment", Err: err}
	}

	uc.logger.Info("garment added", "user", input.UserID, "garment", item.ID(), "category", category)
	return item, nil
}

// suggestCategory asks the classifier for a category. Failures are logged
// and leave the garment uncategorized.
func (uc *WardrobeUseCase) suggestCategory(ctx context.Context, image *valueobjects.ImageData) string {
	if uc.classifier == nil {
		return ""
	}

	category, err := uc.classifier.ClassifyGarment(ctx, image)
	if err != nil {
		uc.logger.Warn("garment classification failed", "error", err)
		return ""
	}
	return category
}

func (uc *WardrobeUseCase) List(ctx context.Context, userID string) ([]*entities.WardrobeItem, error) {
	items, err := uc.items.ListItems(ctx, userID)
	if err != nil {
		return nil, &services.PersistenceError{Op: "list wardrobe", Err: err}
	}
	return items, nil
}

func (uc *WardrobeUseCase) Update(ctx context.Context, input UpdateGarmentInput) (*entities.WardrobeItem, error) {
	if input.Name == nil && input.Category == nil {
		return nil, fmt.Errorf("%w: nothing to update", services.ErrValidation)
	}

	item, err := uc.items.FindItem(ctx, input.UserID, input.ID)
	if err != nil {
		return nil, lookupError("find garment", err)
	}

	if input.Name != nil {
		if err := item.Rename(strings.TrimSpace(*input.Name)); err != nil {
			return nil, fmt.Errorf("%w: %v", services.ErrValidation, err)
		}
	}
	if input.Category != nil {
		item.Recategorize(strings.TrimSpace(*input.Category))
	}

	if err := uc.items.SaveItem(ctx, item); err != nil {
		return nil, &services.PersistenceError{Op: "save garment", Err: err}
	}
	return item, nil
}

func (uc *WardrobeUseCase) Delete(ctx context.Context, userID string, id entities.GarmentID) error {
	if err := uc.items.DeleteItem(ctx, userID, id); err != nil {
		return lookupError("delete garment", err)
	}
	return nil
}
