package api

import (
	"time"

	"github.com/Orelexa/gardrob/internal/application/usecases"
	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

type PoseResponse struct {
	Index       int    `json:"index"`
	Label       string `json:"label"`
	Instruction string `json:"instruction,omitempty"`
}

type GarmentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

type LayerResponse struct {
	Garment *GarmentResponse  `json:"garment,omitempty"`
	Images  map[string]string `json:"images"`
}

type SessionResponse struct {
	Ready            bool            `json:"ready"`
	ModelID          string          `json:"modelId,omitempty"`
	PoseIndex        int             `json:"poseIndex"`
	Pose             string          `json:"pose,omitempty"`
	DisplayedImage   string          `json:"displayedImage,omitempty"`
	ActiveGarmentIDs []string        `json:"activeGarmentIds"`
	Layers           []LayerResponse `json:"layers"`
	Busy             bool            `json:"busy"`
	Poses            []PoseResponse  `json:"poses"`
}

type ModelResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SourceImage string    `json:"sourceImage,omitempty"`
	ModelImage  string    `json:"modelImage"`
	CreatedAt   time.Time `json:"createdAt"`
}

type OutfitResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ModelID    string    `json:"modelId"`
	Preview    string    `json:"preview"`
	GarmentIDs []string  `json:"garmentIds"`
	CreatedAt  time.Time `json:"createdAt"`
}

type PrefetchResponse struct {
	GarmentID string `json:"garmentId"`
	URL       string `json:"url"`
	Loaded    bool   `json:"loaded"`
}

func newPoseResponses(poses []valueobjects.Pose) []PoseResponse {
	out := make([]PoseResponse, len(poses))
	for i, p := range poses {
		out[i] = PoseResponse{Index: i, Label: string(p.Label()), Instruction: p.Instruction()}
	}
	return out
}

func newGarmentResponse(g *entities.GarmentRef) *GarmentResponse {
	if g == nil {
		return nil
	}
	return &GarmentResponse{
		ID:       string(g.ID()),
		Name:     g.Name(),
		Category: g.Category(),
		Image:    g.Image().String(),
	}
}

func newItemResponse(item *entities.WardrobeItem) *GarmentResponse {
	resp := newGarmentResponse(item.Garment())
	resp.CreatedAt = item.CreatedAt()
	return resp
}

func newSessionResponse(out *usecases.SessionOutput) SessionResponse {
	v := out.View
	resp := SessionResponse{
		Ready:            out.Ready,
		ModelID:          string(v.ModelID),
		PoseIndex:        v.PoseIndex,
		Pose:             string(v.Pose),
		DisplayedImage:   v.DisplayedImage.String(),
		ActiveGarmentIDs: make([]string, 0, len(v.ActiveGarmentIDs)),
		Layers:           make([]LayerResponse, 0, len(v.Layers)),
		Busy:             v.Busy,
		Poses:            newPoseResponses(out.Poses),
	}

	for _, id := range v.ActiveGarmentIDs {
		resp.ActiveGarmentIDs = append(resp.ActiveGarmentIDs, string(id))
	}
	for _, l := range v.Layers {
		images := make(map[string]string)
		for pose, ref := range l.Images() {
			images[string(pose)] = ref.String()
		}
		resp.Layers = append(resp.Layers, LayerResponse{Garment: newGarmentResponse(l.Garment()), Images: images})
	}
	return resp
}

func newModelResponse(m *entities.Model) ModelResponse {
	return ModelResponse{
		ID:          string(m.ID()),
		Name:        m.Name(),
		SourceImage: m.SourceImage().String(),
		ModelImage:  m.ModelImage().String(),
		CreatedAt:   m.CreatedAt(),
	}
}

func newOutfitResponse(o *entities.SavedOutfit) OutfitResponse {
	resp := OutfitResponse{
		ID:         string(o.ID()),
		Name:       o.Name(),
		ModelID:    string(o.ModelID()),
		Preview:    o.Preview().String(),
		GarmentIDs: []string{},
		CreatedAt:  o.CreatedAt(),
	}
	for _, l := range o.Layers() {
		if g := l.Garment(); g != nil {
			resp.GarmentIDs = append(resp.GarmentIDs, string(g.ID()))
		}
	}
	return resp
}
