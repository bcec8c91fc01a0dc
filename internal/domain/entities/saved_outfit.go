package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

type SavedOutfitID string

// SavedLayer is one persisted rung: the garment as it was applied (nil for
// the root) and its default rendering.
type SavedLayer struct {
	garment *GarmentRef
	image   valueobjects.ImageRef
}

func NewSavedLayer(garment *GarmentRef, image valueobjects.ImageRef) SavedLayer {
	return SavedLayer{garment: garment, image: image}
}

func (l SavedLayer) Garment() *GarmentRef {
	return l.garment
}

func (l SavedLayer) Image() valueobjects.ImageRef {
	return l.image
}

// OutfitDraft is an outfit about to be persisted; the store assigns the id
// and creation time.
type OutfitDraft struct {
	userID  string
	name    string
	modelID ModelID
	preview valueobjects.ImageRef
	layers  []SavedLayer
}

func NewOutfitDraft(userID, name string, modelID ModelID, preview valueobjects.ImageRef, layers []SavedLayer) (*OutfitDraft, error) {
	name = strings.TrimSpace(name)

	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	if name == "" {
		return nil, fmt.Errorf("outfit name is required")
	}

	if preview.IsZero() {
		return nil, fmt.Errorf("preview image is required")
	}

	if len(layers) < 2 {
		return nil, fmt.Errorf("outfit needs at least one garment layer")
	}

	if layers[0].garment != nil {
		return nil, fmt.Errorf("first layer must be the bare model")
	}

	for i, l := range layers[1:] {
		if l.garment == nil {
			return nil, fmt.Errorf("layer %d has no garment", i+1)
		}
	}

	return &OutfitDraft{
		userID:  userID,
		name:    name,
		modelID: modelID,
		preview: preview,
		layers:  layers,
	}, nil
}

func (d *OutfitDraft) UserID() string {
	return d.userID
}

func (d *OutfitDraft) Name() string {
	return d.name
}

func (d *OutfitDraft) ModelID() ModelID {
	return d.modelID
}

func (d *OutfitDraft) Preview() valueobjects.ImageRef {
	return d.preview
}

func (d *OutfitDraft) Layers() []SavedLayer {
	out := make([]SavedLayer, len(d.layers))
	copy(out, d.layers)
	return out
}

// Persist assigns identity to the draft.
func (d *OutfitDraft) Persist(id SavedOutfitID, createdAt time.Time) *SavedOutfit {
	return &SavedOutfit{
		id:        id,
		userID:    d.userID,
		name:      d.name,
		modelID:   d.modelID,
		preview:   d.preview,
		layers:    d.Layers(),
		createdAt: createdAt,
	}
}

// NewSavedOutfitID mints an id for stores that do not generate their own.
func NewSavedOutfitID() SavedOutfitID {
	return SavedOutfitID(newID("outfit"))
}

type SavedOutfit struct {
	id        SavedOutfitID
	userID    string
	name      string
	modelID   ModelID
	preview   valueobjects.ImageRef
	layers    []SavedLayer
	createdAt time.Time
}

func (o *SavedOutfit) ID() SavedOutfitID {
	return o.id
}

func (o *SavedOutfit) UserID() string {
	return o.userID
}

func (o *SavedOutfit) Name() string {
	return o.name
}

func (o *SavedOutfit) ModelID() ModelID {
	return o.modelID
}

// Preview is the image displayed when the outfit was saved.
func (o *SavedOutfit) Preview() valueobjects.ImageRef {
	return o.preview
}

func (o *SavedOutfit) Layers() []SavedLayer {
	out := make([]SavedLayer, len(o.layers))
	copy(out, o.layers)
	return out
}

func (o *SavedOutfit) CreatedAt() time.Time {
	return o.createdAt
}
