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

// ModelUseCase turns user photos into base models garments are layered on.
type ModelUseCase struct {
	models    repositories.ModelRepository
	blobs     repositories.BlobStore
	generator repositories.ModelGenerator
	logger    *slog.Logger
}

func NewModelUseCase(
	models repositories.ModelRepository,
	blobs repositories.BlobStore,
	generator repositories.ModelGenerator,
	logger *slog.Logger,
) *ModelUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelUseCase{
		models:    models,
		blobs:     blobs,
		generator: generator,
		logger:    logger,
	}
}

type CreateModelInput struct {
	UserID    string
	Name      string
	PhotoData []byte
	MimeType  string
}

func (uc *ModelUseCase) Create(ctx context.Context, input CreateModelInput) (*entities.Model, error) {
	photo, err := valueobjects.NewImageData(input.PhotoData, input.MimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid photo: %v", services.ErrValidation, err)
	}

	source, err := uc.blobs.Put(ctx, photo.Data(), photo.MimeType())
	if err != nil {
		return nil, &services.PersistenceError{Op: "store photo", Err: err}
	}

	generated, err := uc.generator.GenerateModel(ctx, photo)
	if err != nil {
		uc.logger.Warn("model generation failed", "user", input.UserID, "error", err)
		return nil, err
	}

	model, err := entities.NewModel(input.UserID, strings.TrimSpace(input.Name), source, generated)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", services.ErrValidation, err)
	}

	if err := uc.models.SaveModel(ctx, model); err != nil {
		return nil, &services.PersistenceError{Op: "save model", Err: err}
	}

	uc.logger.Info("model created", "user", input.UserID, "model", model.ID())
	return model, nil
}

func (uc *ModelUseCase) List(ctx context.Context, userID string) ([]*entities.Model, error) {
	models, err := uc.models.ListModels(ctx, userID)
	if err != nil {
		return nil, &services.PersistenceError{Op: "list models", Err: err}
	}
	return models, nil
}

func (uc *ModelUseCase) Delete(ctx context.Context, userID string, id entities.ModelID) error {
	if err := uc.models.DeleteModel(ctx, userID, id); err != nil {
		return lookupError("delete model", err)
	}
	return nil
}
