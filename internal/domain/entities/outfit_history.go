package entities

import (
	"fmt"

	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

// OutfitLayer is one rung of the outfit: a garment (nil for the bare model)
// and its renderings keyed by pose.
type OutfitLayer struct {
	garment *GarmentRef
	images  map[valueobjects.PoseLabel]valueobjects.ImageRef
}

func NewRootLayer(baseImage valueobjects.ImageRef) (*OutfitLayer, error) {
	if baseImage.IsZero() {
		return nil, fmt.Errorf("base model image is required")
	}
	return newLayer(nil, baseImage), nil
}

func NewGarmentLayer(garment *GarmentRef, image valueobjects.ImageRef) (*OutfitLayer, error) {
	if garment == nil {
		return nil, fmt.Errorf("garment is required")
	}
	if image.IsZero() {
		return nil, fmt.Errorf("layer image is required")
	}
	return newLayer(garment, image), nil
}

func newLayer(garment *GarmentRef, image valueobjects.ImageRef) *OutfitLayer {
	return &OutfitLayer{
		garment: garment,
		images:  map[valueobjects.PoseLabel]valueobjects.ImageRef{valueobjects.DefaultPose: image},
	}
}

func (l *OutfitLayer) Garment() *GarmentRef {
	return l.garment
}

func (l *OutfitLayer) IsRoot() bool {
	return l.garment == nil
}

func (l *OutfitLayer) Image(pose valueobjects.PoseLabel) (valueobjects.ImageRef, bool) {
	ref, ok := l.images[pose]
	return ref, ok
}

func (l *OutfitLayer) DefaultImage() valueobjects.ImageRef {
	return l.images[valueobjects.DefaultPose]
}

// Images returns a copy of the pose → image map.
func (l *OutfitLayer) Images() map[valueobjects.PoseLabel]valueobjects.ImageRef {
	out := make(map[valueobjects.PoseLabel]valueobjects.ImageRef, len(l.images))
	for k, v := range l.images {
		out[k] = v
	}
	return out
}

func (l *OutfitLayer) clone() *OutfitLayer {
	return &OutfitLayer{garment: l.garment, images: l.Images()}
}

// OutfitHistory is the ordered layer stack over a base model. Only the top
// layer carries pose variants; every layer below it holds the default
// rendering alone.
type OutfitHistory struct {
	layers []*OutfitLayer
}

func NewOutfitHistory(baseImage valueobjects.ImageRef) (*OutfitHistory, error) {
	root, err := NewRootLayer(baseImage)
	if err != nil {
		return nil, err
	}
	return &OutfitHistory{layers: []*OutfitLayer{root}}, nil
}

// RestoreOutfitHistory builds a history from already-rendered layers, as when
// a saved outfit is loaded.
func RestoreOutfitHistory(layers []*OutfitLayer) (*OutfitHistory, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("history requires a root layer")
	}

	h := &OutfitHistory{layers: make([]*OutfitLayer, 0, len(layers))}
	for i, layer := range layers {
		if layer == nil {
			return nil, fmt.Errorf("layer %d is nil", i)
		}
		if (i == 0) != layer.IsRoot() {
			return nil, fmt.Errorf("layer %d: only the first layer may omit a garment", i)
		}
		if layer.DefaultImage().IsZero() {
			return nil, fmt.Errorf("layer %d has no default image", i)
		}
		h.layers = append(h.layers, newLayer(layer.garment, layer.DefaultImage()))
	}

	return h, nil
}

func (h *OutfitHistory) Len() int {
	return len(h.layers)
}

// Top returns a copy of the topmost layer.
func (h *OutfitHistory) Top() *OutfitLayer {
	return h.layers[len(h.layers)-1].clone()
}

// Layers returns copies of every layer, root first.
func (h *OutfitHistory) Layers() []*OutfitLayer {
	out := make([]*OutfitLayer, len(h.layers))
	for i, l := range h.layers {
		out[i] = l.clone()
	}
	return out
}

// Push appends a garment layer. The previous top drops its pose variants.
func (h *OutfitHistory) Push(garment *GarmentRef, image valueobjects.ImageRef) error {
	layer, err := NewGarmentLayer(garment, image)
	if err != nil {
		return err
	}

	top := h.layers[len(h.layers)-1]
	h.layers[len(h.layers)-1] = newLayer(top.garment, top.DefaultImage())
	h.layers = append(h.layers, layer)
	return nil
}

// Pop removes the top garment layer. The root layer is never removed.
func (h *OutfitHistory) Pop() bool {
	if len(h.layers) <= 1 {
		return false
	}
	h.layers[len(h.layers)-1] = nil
	h.layers = h.layers[:len(h.layers)-1]
	return true
}

// SetTopImage records a rendering of the top layer under pose.
func (h *OutfitHistory) SetTopImage(pose valueobjects.PoseLabel, image valueobjects.ImageRef) error {
	if image.IsZero() {
		return fmt.Errorf("pose image is required")
	}
	h.layers[len(h.layers)-1].images[pose] = image
	return nil
}

// GarmentIDs lists applied garments from the bottom up.
func (h *OutfitHistory) GarmentIDs() []GarmentID {
	ids := make([]GarmentID, 0, len(h.layers)-1)
	for _, l := range h.layers {
		if l.garment != nil {
			ids = append(ids, l.garment.ID())
		}
	}
	return ids
}

func (h *OutfitHistory) Clone() *OutfitHistory {
	return &OutfitHistory{layers: h.Layers()}
}
