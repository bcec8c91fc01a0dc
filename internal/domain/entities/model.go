package entities

import (
	"fmt"
	"time"

	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

type ModelID string

// Model is a photo-derived base image garments are layered onto.
type Model struct {
	id          ModelID
	userID      string
	name        string
	sourceImage valueobjects.ImageRef
	modelImage  valueobjects.ImageRef
	createdAt   time.Time
}

func NewModel(userID, name string, sourceImage, modelImage valueobjects.ImageRef) (*Model, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	if modelImage.IsZero() {
		return nil, fmt.Errorf("model image is required")
	}

	if name == "" {
		name = "Model"
	}

	return &Model{
		id:          ModelID(newID("model")),
		userID:      userID,
		name:        name,
		sourceImage: sourceImage,
		modelImage:  modelImage,
		createdAt:   time.Now().UTC(),
	}, nil
}

func RestoreModel(id ModelID, userID, name string, sourceImage, modelImage valueobjects.ImageRef, createdAt time.Time) *Model {
	return &Model{
		id:          id,
		userID:      userID,
		name:        name,
		sourceImage: sourceImage,
		modelImage:  modelImage,
		createdAt:   createdAt,
	}
}

func (m *Model) ID() ModelID {
	return m.id
}

func (m *Model) UserID() string {
	return m.userID
}

func (m *Model) Name() string {
	return m.name
}

func (m *Model) SourceImage() valueobjects.ImageRef {
	return m.sourceImage
}

func (m *Model) ModelImage() valueobjects.ImageRef {
	return m.modelImage
}

func (m *Model) CreatedAt() time.Time {
	return m.createdAt
}
