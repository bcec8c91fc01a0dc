package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	domainrepos "github.com/Orelexa/gardrob/internal/domain/repositories"
)

// MemoryStore keeps models, wardrobe items and outfits in process memory.
// Records are partitioned by user id.
type MemoryStore struct {
	models  map[string]map[entities.ModelID]*entities.Model
	items   map[string]map[entities.GarmentID]*entities.WardrobeItem
	outfits map[string]map[entities.SavedOutfitID]*entities.SavedOutfit
	mu      sync.RWMutex
	now     func() time.Time
}

var (
	_ domainrepos.ModelRepository    = (*MemoryStore)(nil)
	_ domainrepos.WardrobeRepository = (*MemoryStore)(nil)
	_ domainrepos.OutfitRepository   = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		models:  make(map[string]map[entities.ModelID]*entities.Model),
		items:   make(map[string]map[entities.GarmentID]*entities.WardrobeItem),
		outfits: make(map[string]map[entities.SavedOutfitID]*entities.SavedOutfit),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryStore) SaveModel(ctx context.Context, model *entities.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.models[model.UserID()]
	if !ok {
		bucket = make(map[entities.ModelID]*entities.Model)
		r.models[model.UserID()] = bucket
	}
	bucket[model.ID()] = model
	return nil
}

func (r *MemoryStore) ListModels(ctx context.Context, userID string) ([]*entities.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.Model, 0, len(r.models[userID]))
	for _, m := range r.models[userID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, nil
}

func (r *MemoryStore) FindModel(ctx context.Context, userID string, id entities.ModelID) (*entities.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	model, exists := r.models[userID][id]
	if !exists {
		return nil, fmt.Errorf("model %s: %w", id, domainrepos.ErrNotFound)
	}
	return model, nil
}

func (r *MemoryStore) DeleteModel(ctx context.Context, userID string, id entities.ModelID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[userID][id]; !exists {
		return fmt.Errorf("model %s: %w", id, domainrepos.ErrNotFound)
	}
	delete(r.models[userID], id)
	return nil
}

func (r *MemoryStore) SaveItem(ctx context.Context, item *entities.WardrobeItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.items[item.UserID()]
	if !ok {
		bucket = make(map[entities.GarmentID]*entities.WardrobeItem)
		r.items[item.UserID()] = bucket
	}
	bucket[item.ID()] = item
	return nil
}

func (r *MemoryStore) ListItems(ctx context.Context, userID string) ([]*entities.WardrobeItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.WardrobeItem, 0, len(r.items[userID]))
	for _, item := range r.items[userID] {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, nil
}

func (r *MemoryStore) FindItem(ctx context.Context, userID string, id entities.GarmentID) (*entities.WardrobeItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[userID][id]
	if !exists {
		return nil, fmt.Errorf("garment %s: %w", id, domainrepos.ErrNotFound)
	}
	return item, nil
}

func (r *MemoryStore) DeleteItem(ctx context.Context, userID string, id entities.GarmentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[userID][id]; !exists {
		return fmt.Errorf("garment %s: %w", id, domainrepos.ErrNotFound)
	}
	delete(r.items[userID], id)
	return nil
}

func (r *MemoryStore) SaveOutfit(ctx context.Context, draft *entities.OutfitDraft) (*entities.SavedOutfit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outfit := draft.Persist(entities.NewSavedOutfitID(), r.now())

	bucket, ok := r.outfits[outfit.UserID()]
	if !ok {
		bucket = make(map[entities.SavedOutfitID]*entities.SavedOutfit)
		r.outfits[outfit.UserID()] = bucket
	}
	bucket[outfit.ID()] = outfit
	return outfit, nil
}

// ListOutfits returns the newest outfit first.
func (r *MemoryStore) ListOutfits(ctx context.Context, userID string) ([]*entities.SavedOutfit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entities.SavedOutfit, 0, len(r.outfits[userID]))
	for _, o := range r.outfits[userID] {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, nil
}

func (r *MemoryStore) FindOutfit(ctx context.Context, userID string, id entities.SavedOutfitID) (*entities.SavedOutfit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	outfit, exists := r.outfits[userID][id]
	if !exists {
		return nil, fmt.Errorf("outfit %s: %w", id, domainrepos.ErrNotFound)
	}
	return outfit, nil
}

func (r *MemoryStore) DeleteOutfit(ctx context.Context, userID string, id entities.SavedOutfitID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.outfits[userID][id]; !exists {
		return fmt.Errorf("outfit %s: %w", id, domainrepos.ErrNotFound)
	}
	delete(r.outfits[userID], id)
	return nil
}
