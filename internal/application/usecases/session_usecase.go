package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/services"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

// SessionUseCase drives a user's outfit in progress: model selection,
// garment layering and pose changes.
type SessionUseCase struct {
	sessions    *SessionRegistry
	models      repositories.ModelRepository
	wardrobe    repositories.WardrobeRepository
	transformer repositories.Transformer
	logger      *slog.Logger
}

func NewSessionUseCase(
	sessions *SessionRegistry,
	models repositories.ModelRepository,
	wardrobe repositories.WardrobeRepository,
	transformer repositories.Transformer,
	logger *slog.Logger,
) *SessionUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionUseCase{
		sessions:    sessions,
		models:      models,
		wardrobe:    wardrobe,
		transformer: transformer,
		logger:      logger,
	}
}

type SessionOutput struct {
	Ready bool
	View  services.View
	Poses []valueobjects.Pose
}

// newSessionOutput renders store itself rather than the registry entry, so
// an operation reports its own result even if the session was evicted.
func newSessionOutput(store *services.LayerStore) *SessionOutput {
	view, ready := store.View()
	return &SessionOutput{
		Ready: ready,
		View:  view,
		Poses: store.Catalog().Poses(),
	}
}

func (uc *SessionUseCase) View(userID string) *SessionOutput {
	return newSessionOutput(uc.sessions.Get(userID))
}

func (uc *SessionUseCase) Poses() []valueobjects.Pose {
	return uc.sessions.Catalog().Poses()
}

// SelectModel resets the session to the bare model image.
func (uc *SessionUseCase) SelectModel(ctx context.Context, userID string, modelID entities.ModelID) (*SessionOutput, error) {
	if modelID == "" {
		return nil, fmt.Errorf("%w: model id is required", services.ErrValidation)
	}

	model, err := uc.models.FindModel(ctx, userID, modelID)
	if err != nil {
		return nil, lookupError("find model", err)
	}

	store := uc.sessions.Get(userID)
	if err := store.Initialize(model.ID(), model.ModelImage()); err != nil {
		return nil, err
	}

	uc.logger.Info("session model selected", "user", userID, "model", model.ID())
	return newSessionOutput(store), nil
}

func (uc *SessionUseCase) ApplyGarment(ctx context.Context, userID string, garmentID entities.GarmentID) (*SessionOutput, error) {
	if garmentID == "" {
		return nil, fmt.Errorf("%w: garment id is required", services.ErrValidation)
	}

	item, err := uc.wardrobe.FindItem(ctx, userID, garmentID)
	if err != nil {
		return nil, lookupError("find garment", err)
	}

	store := uc.sessions.Get(userID)
	if err := store.ApplyGarment(ctx, item.Garment(), uc.transformer); err != nil {
		uc.logger.Warn("apply garment failed", "user", userID, "garment", garmentID, "error", err)
		return nil, err
	}

	uc.logger.Info("garment applied", "user", userID, "garment", garmentID)
	return newSessionOutput(store), nil
}

func (uc *SessionUseCase) RemoveLastGarment(userID string) (*SessionOutput, error) {
	store := uc.sessions.Get(userID)
	if err := store.RemoveLastGarment(); err != nil {
		return nil, err
	}
	return newSessionOutput(store), nil
}

// SelectPose keeps the session usable when generation fails: the store has
// already fallen back to the default pose, and the error is still returned.
func (uc *SessionUseCase) SelectPose(ctx context.Context, userID string, index int) (*SessionOutput, error) {
	store := uc.sessions.Get(userID)
	if err := store.SelectPose(ctx, index, uc.transformer); err != nil {
		if !errors.Is(err, services.ErrValidation) {
			uc.logger.Warn("pose generation failed", "user", userID, "pose", index, "error", err)
		}
		return nil, err
	}
	return newSessionOutput(store), nil
}

// lookupError keeps ErrNotFound visible to callers and marks anything else
// as a persistence failure.
func lookupError(op string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return err
	}
	return &services.PersistenceError{Op: op, Err: err}
}
