package repositories

import (
	"context"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

// Vertex AI Virtual Try-On
type TryOnAIService interface {
	GenerateTryOn(ctx context.Context, request *entities.TryOnRequest) (*valueobjects.ImageData, error)

	Close() error
}

// Gemini multimodal image editing
type ImageEditAIService interface {
	EditImage(ctx context.Context, request *entities.ImageEditRequest) (*entities.ImageEditResult, error)
}

// Transformer is the image-transform function the outfit layer store
// consumes. Image references are opaque to callers.
type Transformer interface {
	ApplyGarment(ctx context.Context, base valueobjects.ImageRef, garment *entities.GarmentRef) (valueobjects.ImageRef, error)
	VaryPose(ctx context.Context, base valueobjects.ImageRef, instruction string) (valueobjects.ImageRef, error)
}

// ModelGenerator turns a user photo into a clean base model image.
type ModelGenerator interface {
	GenerateModel(ctx context.Context, photo *valueobjects.ImageData) (valueobjects.ImageRef, error)
}

// GarmentClassifier suggests a wardrobe category for a garment photo.
type GarmentClassifier interface {
	ClassifyGarment(ctx context.Context, image *valueobjects.ImageData) (string, error)
}
