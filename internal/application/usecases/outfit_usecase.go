package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/services"
)

type OutfitUseCase struct {
	sessions *SessionRegistry
	outfits  repositories.OutfitRepository
	wardrobe repositories.WardrobeRepository
	logger   *slog.Logger
}

func NewOutfitUseCase(
	sessions *SessionRegistry,
	outfits repositories.OutfitRepository,
	wardrobe repositories.WardrobeRepository,
	logger *slog.Logger,
) *OutfitUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutfitUseCase{
		sessions: sessions,
		outfits:  outfits,
		wardrobe: wardrobe,
		logger:   logger,
	}
}

// Save stores the user's current outfit under name.
func (uc *OutfitUseCase) Save(ctx context.Context, userID, name string) (*entities.SavedOutfit, error) {
	outfit, err := uc.sessions.Get(userID).SaveOutfit(ctx, userID, name, uc.outfits)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("outfit saved", "user", userID, "outfit", outfit.ID(), "layers", len(outfit.Layers()))
	return outfit, nil
}

func (uc *OutfitUseCase) List(ctx context.Context, userID string) ([]*entities.SavedOutfit, error) {
	outfits, err := uc.outfits.ListOutfits(ctx, userID)
	if err != nil {
		return nil, &services.PersistenceError{Op: "list outfits", Err: err}
	}
	return outfits, nil
}

// Load replaces the user's session with a saved outfit and returns the
// loaded session. Garments still in the wardrobe are taken from there so
// later edits show up.
func (uc *OutfitUseCase) Load(ctx context.Context, userID string, id entities.SavedOutfitID) (*SessionOutput, error) {
	store := uc.sessions.Get(userID)

	outfit, err := uc.outfits.FindOutfit(ctx, userID, id)
	if err != nil {
		return nil, lookupError("find outfit", err)
	}

	lookup, err := uc.wardrobeLookup(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := store.LoadOutfit(outfit, lookup); err != nil {
		return nil, err
	}

	uc.logger.Info("outfit loaded", "user", userID, "outfit", id)
	return newSessionOutput(store), nil
}

func (uc *OutfitUseCase) Delete(ctx context.Context, userID string, id entities.SavedOutfitID) error {
	if err := uc.outfits.DeleteOutfit(ctx, userID, id); err != nil {
		return lookupError("delete outfit", err)
	}
	return nil
}

func (uc *OutfitUseCase) wardrobeLookup(ctx context.Context, userID string) (services.WardrobeLookup, error) {
	items, err := uc.wardrobe.ListItems(ctx, userID)
	if err != nil {
		return nil, &services.PersistenceError{Op: "list wardrobe", Err: fmt.Errorf("load catalog: %w", err)}
	}

	catalog := make(map[entities.GarmentID]*entities.GarmentRef, len(items))
	for _, item := range items {
		catalog[item.ID()] = item.Garment()
	}

	return func(id entities.GarmentID) (*entities.GarmentRef, bool) {
		g, ok := catalog[id]
		return g, ok
	}, nil
}
