package entities

import (
	"fmt"
	"time"

	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

type GarmentID string

// GarmentCategories are the wardrobe groupings offered to users. Items may
// carry other categories; these are the ones suggested on upload.
var GarmentCategories = []string{"tops", "bottoms", "outerwear", "dresses", "shoes", "accessories"}

// GarmentRef identifies a wardrobe item as captured by an outfit layer.
// Layers hold their own copy, so later catalog edits never reach them.
type GarmentRef struct {
	id       GarmentID
	name     string
	category string
	image    valueobjects.ImageRef
}

func NewGarmentRef(id GarmentID, name, category string, image valueobjects.ImageRef) (*GarmentRef, error) {
	if id == "" {
		return nil, fmt.Errorf("garment id is required")
	}

	if name == "" {
		return nil, fmt.Errorf("garment name is required")
	}

	if image.IsZero() {
		return nil, fmt.Errorf("garment image is required")
	}

	return &GarmentRef{
		id:       id,
		name:     name,
		category: category,
		image:    image,
	}, nil
}

func (g *GarmentRef) ID() GarmentID {
	return g.id
}

func (g *GarmentRef) Name() string {
	return g.name
}

func (g *GarmentRef) Category() string {
	return g.category
}

func (g *GarmentRef) Image() valueobjects.ImageRef {
	return g.image
}

func (g *GarmentRef) WithName(name string) *GarmentRef {
	c := *g
	c.name = name
	return &c
}

func (g *GarmentRef) WithCategory(category string) *GarmentRef {
	c := *g
	c.category = category
	return &c
}

// WardrobeItem is a garment in a user's catalog.
type WardrobeItem struct {
	garment   *GarmentRef
	userID    string
	createdAt time.Time
}

func NewWardrobeItem(userID, name, category string, image valueobjects.ImageRef) (*WardrobeItem, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	garment, err := NewGarmentRef(GarmentID(newID("garment")), name, category, image)
	if err != nil {
		return nil, err
	}

	return &WardrobeItem{
		garment:   garment,
		userID:    userID,
		createdAt: time.Now().UTC(),
	}, nil
}

// RestoreWardrobeItem rebuilds a persisted item.
func RestoreWardrobeItem(garment *GarmentRef, userID string, createdAt time.Time) *WardrobeItem {
	return &WardrobeItem{
		garment:   garment,
		userID:    userID,
		createdAt: createdAt,
	}
}

func (w *WardrobeItem) ID() GarmentID {
	return w.garment.ID()
}

func (w *WardrobeItem) Garment() *GarmentRef {
	return w.garment
}

func (w *WardrobeItem) UserID() string {
	return w.userID
}

func (w *WardrobeItem) CreatedAt() time.Time {
	return w.createdAt
}

// Rename and Recategorize replace the garment value; layers that captured
// the previous value keep it.
func (w *WardrobeItem) Rename(name string) error {
	if name == "" {
		return fmt.Errorf("garment name is required")
	}
	w.garment = w.garment.WithName(name)
	return nil
}

func (w *WardrobeItem) Recategorize(category string) {
	w.garment = w.garment.WithCategory(category)
}
