package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

// WardrobeLookup resolves a garment id against the live catalog.
type WardrobeLookup func(id entities.GarmentID) (*entities.GarmentRef, bool)

// LayerStore holds one user's outfit in progress: the layer history over a
// base model and the pose shown for the top layer. The top layer's image map
// doubles as the pose cache, so adding or removing a garment invalidates it
// structurally.
//
// Mutating calls are single-writer: an overlapping call fails fast with
// ErrOperationInProgress. Reads are safe at any time.
type LayerStore struct {
	catalog *valueobjects.PoseCatalog

	busy atomic.Bool

	mu      sync.RWMutex
	history *entities.OutfitHistory
	modelID entities.ModelID
	pose    int
}

// View is a consistent snapshot of the store for rendering.
type View struct {
	ModelID          entities.ModelID
	Layers           []*entities.OutfitLayer
	PoseIndex        int
	Pose             valueobjects.PoseLabel
	DisplayedImage   valueobjects.ImageRef
	ActiveGarmentIDs []entities.GarmentID
	Busy             bool
}

func NewLayerStore(catalog *valueobjects.PoseCatalog) *LayerStore {
	if catalog == nil {
		catalog = valueobjects.DefaultPoseCatalog()
	}
	return &LayerStore{catalog: catalog, pose: valueobjects.DefaultPoseIndex}
}

func (s *LayerStore) begin() (func(), error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrOperationInProgress
	}
	return func() { s.busy.Store(false) }, nil
}

// Initialize starts over from a bare model image.
func (s *LayerStore) Initialize(modelID entities.ModelID, baseImage valueobjects.ImageRef) error {
	release, err := s.begin()
	if err != nil {
		return err
	}
	defer release()

	history, err := entities.NewOutfitHistory(baseImage)
	if err != nil {
		return validationError("%v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history
	s.modelID = modelID
	s.pose = valueobjects.DefaultPoseIndex
	return nil
}

// ApplyGarment renders garment onto the top layer's default image and pushes
// the result. Alternate poses are never used as a base. On failure the
// history is left exactly as it was.
func (s *LayerStore) ApplyGarment(ctx context.Context, garment *entities.GarmentRef, transform repositories.Transformer) error {
	if garment == nil {
		return validationError("garment is required")
	}

	release, err := s.begin()
	if err != nil {
		return err
	}
	defer release()

	s.mu.RLock()
	if s.history == nil {
		s.mu.RUnlock()
		return ErrNoModelSelected
	}
	base := s.history.Top().DefaultImage()
	s.mu.RUnlock()

	image, err := transform.ApplyGarment(ctx, base, garment)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.history.Push(garment, image); err != nil {
		return fmt.Errorf("apply garment: %w", err)
	}
	s.pose = valueobjects.DefaultPoseIndex
	return nil
}

// SelectPose shows the top layer in the catalog pose at index, generating it
// from the top layer's default image when not yet cached. A failed
// generation falls back to the default pose.
func (s *LayerStore) SelectPose(ctx context.Context, index int, transform repositories.Transformer) error {
	pose, err := s.catalog.At(index)
	if err != nil {
		return validationError("%v", err)
	}

	release, err := s.begin()
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	if s.history == nil {
		s.mu.Unlock()
		return ErrNoModelSelected
	}
	top := s.history.Top()
	if _, ok := top.Image(pose.Label()); ok {
		s.pose = index
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	image, err := transform.VaryPose(ctx, top.DefaultImage(), pose.Instruction())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.pose = valueobjects.DefaultPoseIndex
		return err
	}
	if err := s.history.SetTopImage(pose.Label(), image); err != nil {
		s.pose = valueobjects.DefaultPoseIndex
		return fmt.Errorf("select pose: %w", err)
	}
	s.pose = index
	return nil
}

// RemoveLastGarment pops the top garment. With only the bare model left it
// does nothing.
func (s *LayerStore) RemoveLastGarment() error {
	release, err := s.begin()
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return ErrNoModelSelected
	}
	if s.history.Pop() {
		s.pose = valueobjects.DefaultPoseIndex
	}
	return nil
}

// SaveOutfit persists the current outfit. The preview is the image on
// screen; each layer keeps only its default rendering.
func (s *LayerStore) SaveOutfit(ctx context.Context, userID, name string, outfits repositories.OutfitRepository) (*entities.SavedOutfit, error) {
	release, err := s.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.RLock()
	if s.history == nil {
		s.mu.RUnlock()
		return nil, ErrNoModelSelected
	}
	if s.history.Len() <= 1 {
		s.mu.RUnlock()
		return nil, validationError("add at least one garment before saving")
	}
	layers := s.history.Layers()
	preview := s.displayedLocked()
	modelID := s.modelID
	s.mu.RUnlock()

	saved := make([]entities.SavedLayer, len(layers))
	for i, l := range layers {
		saved[i] = entities.NewSavedLayer(l.Garment(), l.DefaultImage())
	}

	draft, err := entities.NewOutfitDraft(userID, name, modelID, preview, saved)
	if err != nil {
		return nil, validationError("%v", err)
	}

	outfit, err := outfits.SaveOutfit(ctx, draft)
	if err != nil {
		return nil, &PersistenceError{Op: "save outfit", Err: err}
	}
	return outfit, nil
}

// LoadOutfit replaces the history with a saved outfit. Garments are
// refreshed from the live catalog when still present; otherwise the stored
// copy is used. The top layer shows the saved preview.
func (s *LayerStore) LoadOutfit(outfit *entities.SavedOutfit, lookup WardrobeLookup) error {
	if outfit == nil {
		return validationError("outfit is required")
	}

	release, err := s.begin()
	if err != nil {
		return err
	}
	defer release()

	saved := outfit.Layers()
	layers := make([]*entities.OutfitLayer, 0, len(saved))
	for i, sl := range saved {
		image := sl.Image()
		if i == len(saved)-1 {
			image = outfit.Preview()
		}

		var (
			layer *entities.OutfitLayer
			err   error
		)
		if i == 0 {
			layer, err = entities.NewRootLayer(image)
		} else {
			garment := sl.Garment()
			if garment != nil && lookup != nil {
				if live, ok := lookup(garment.ID()); ok && live != nil {
					garment = live
				}
			}
			layer, err = entities.NewGarmentLayer(garment, image)
		}
		if err != nil {
			return validationError("outfit %s layer %d: %v", outfit.ID(), i, err)
		}
		layers = append(layers, layer)
	}

	history, err := entities.RestoreOutfitHistory(layers)
	if err != nil {
		return validationError("outfit %s: %v", outfit.ID(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history
	s.modelID = outfit.ModelID()
	s.pose = valueobjects.DefaultPoseIndex
	return nil
}

func (s *LayerStore) displayedLocked() valueobjects.ImageRef {
	top := s.history.Top()
	if pose, err := s.catalog.At(s.pose); err == nil {
		if image, ok := top.Image(pose.Label()); ok {
			return image
		}
	}
	return top.DefaultImage()
}

// DisplayedImage is the top layer in the current pose, or its default
// rendering. Empty before a model is selected.
func (s *LayerStore) DisplayedImage() valueobjects.ImageRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return ""
	}
	return s.displayedLocked()
}

// ActiveGarmentIDs lists each applied garment once, bottom up.
func (s *LayerStore) ActiveGarmentIDs() []entities.GarmentID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return nil
	}
	return uniqueGarmentIDs(s.history.GarmentIDs())
}

// History returns a copy of the layer history, or nil before a model is
// selected.
func (s *LayerStore) History() *entities.OutfitHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return nil
	}
	return s.history.Clone()
}

func (s *LayerStore) PoseIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose
}

func (s *LayerStore) Catalog() *valueobjects.PoseCatalog {
	return s.catalog
}

func (s *LayerStore) View() (View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return View{Busy: s.busy.Load()}, false
	}

	pose, _ := s.catalog.At(s.pose)
	return View{
		ModelID:          s.modelID,
		Layers:           s.history.Layers(),
		PoseIndex:        s.pose,
		Pose:             pose.Label(),
		DisplayedImage:   s.displayedLocked(),
		ActiveGarmentIDs: uniqueGarmentIDs(s.history.GarmentIDs()),
		Busy:             s.busy.Load(),
	}, true
}

func uniqueGarmentIDs(ids []entities.GarmentID) []entities.GarmentID {
	seen := make(map[entities.GarmentID]struct{}, len(ids))
	out := make([]entities.GarmentID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
