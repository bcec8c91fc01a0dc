package entities

import (
	"fmt"
	"time"

	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

type TryOnRequestID string

// TryOnRequest renders one outfit layer with the virtual try-on model: the
// garment worn over base, the default-pose image of the layer beneath it.
// The images are attached by PrepareImages once the caller has loaded them.
type TryOnRequest struct {
	id         TryOnRequestID
	base       valueobjects.ImageRef
	garment    *GarmentRef
	person     *valueobjects.ImageData
	product    *valueobjects.ImageData
	parameters *valueobjects.TryOnParameters
	createdAt  time.Time
}

func NewTryOnRequest(base valueobjects.ImageRef, garment *GarmentRef, parameters *valueobjects.TryOnParameters) (*TryOnRequest, error) {
	if base.IsZero() {
		return nil, fmt.Errorf("base image is required")
	}

	if garment == nil {
		return nil, fmt.Errorf("garment is required")
	}

	if garment.Image().IsZero() {
		return nil, fmt.Errorf("garment %s has no image", garment.ID())
	}

	if parameters == nil {
		parameters = valueobjects.DefaultTryOnParameters()
	}

	return &TryOnRequest{
		id:         TryOnRequestID(newID("tryon")),
		base:       base,
		garment:    garment,
		parameters: parameters,
		createdAt:  time.Now(),
	}, nil
}

func (r *TryOnRequest) ID() TryOnRequestID {
	return r.id
}

// Base is the image the garment is applied over.
func (r *TryOnRequest) Base() valueobjects.ImageRef {
	return r.base
}

func (r *TryOnRequest) Garment() *GarmentRef {
	return r.garment
}

// PersonImage is nil until PrepareImages succeeds.
func (r *TryOnRequest) PersonImage() *valueobjects.ImageData {
	return r.person
}

// GarmentImage is nil until PrepareImages succeeds.
func (r *TryOnRequest) GarmentImage() *valueobjects.ImageData {
	return r.product
}

func (r *TryOnRequest) Parameters() *valueobjects.TryOnParameters {
	return r.parameters
}

func (r *TryOnRequest) CreatedAt() time.Time {
	return r.createdAt
}

func (r *TryOnRequest) Prepared() bool {
	return r.person != nil && r.product != nil
}

// PrepareImages attaches the loaded bytes of Base and Garment().Image(),
// converted to JPEG for the try-on model. The request is left unchanged on
// failure.
func (r *TryOnRequest) PrepareImages(person, product *valueobjects.ImageData) error {
	if person == nil {
		return fmt.Errorf("base image %s was not loaded", r.base)
	}
	if product == nil {
		return fmt.Errorf("image of garment %s was not loaded", r.garment.ID())
	}

	personJPEG, err := person.ToJPEG()
	if err != nil {
		return fmt.Errorf("failed to convert base image to JPEG: %w", err)
	}

	productJPEG, err := product.ToJPEG()
	if err != nil {
		return fmt.Errorf("failed to convert garment %s to JPEG: %w", r.garment.ID(), err)
	}

	r.person = personJPEG
	r.product = productJPEG
	return nil
}
