package repositories

import (
	"context"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

// OutfitRepository persists saved outfits. Each call either fully succeeds
// or fails without a partial write.
type OutfitRepository interface {
	SaveOutfit(ctx context.Context, draft *entities.OutfitDraft) (*entities.SavedOutfit, error)
	ListOutfits(ctx context.Context, userID string) ([]*entities.SavedOutfit, error)
	FindOutfit(ctx context.Context, userID string, id entities.SavedOutfitID) (*entities.SavedOutfit, error)
	DeleteOutfit(ctx context.Context, userID string, id entities.SavedOutfitID) error
}

type ModelRepository interface {
	SaveModel(ctx context.Context, model *entities.Model) error
	ListModels(ctx context.Context, userID string) ([]*entities.Model, error)
	FindModel(ctx context.Context, userID string, id entities.ModelID) (*entities.Model, error)
	DeleteModel(ctx context.Context, userID string, id entities.ModelID) error
}

type WardrobeRepository interface {
	SaveItem(ctx context.Context, item *entities.WardrobeItem) error
	ListItems(ctx context.Context, userID string) ([]*entities.WardrobeItem, error)
	FindItem(ctx context.Context, userID string, id entities.GarmentID) (*entities.WardrobeItem, error)
	DeleteItem(ctx context.Context, userID string, id entities.GarmentID) error
}

// BlobStore is the object store generated and uploaded images live in.
type BlobStore interface {
	Put(ctx context.Context, data []byte, mimeType string) (valueobjects.ImageRef, error)
	// Open returns the stored bytes for a reference produced by Put.
	Open(ctx context.Context, ref valueobjects.ImageRef) (*valueobjects.ImageData, error)
	Owns(ref valueobjects.ImageRef) bool
}

// ImageResolver loads the bytes behind any ImageRef.
type ImageResolver interface {
	Resolve(ctx context.Context, ref valueobjects.ImageRef) (*valueobjects.ImageData, error)
}
