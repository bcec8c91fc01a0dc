package entities

import (
	"fmt"

	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

const DefaultImageEditModel = "gemini-2.5-flash-image-preview"

// ImageEditRequest is a prompt plus one or more input images for a
// multimodal image-editing model. Input order is significant: the first
// image is the one being edited.
type ImageEditRequest struct {
	model  string
	prompt string
	images []*valueobjects.ImageData
}

func NewImageEditRequest(model, prompt string, images ...*valueobjects.ImageData) (*ImageEditRequest, error) {
	if model == "" {
		model = DefaultImageEditModel
	}

	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("image data is required")
	}

	for i, img := range images {
		if img == nil {
			return nil, fmt.Errorf("image %d is nil", i)
		}
	}

	return &ImageEditRequest{
		model:  model,
		prompt: prompt,
		images: images,
	}, nil
}

func (r *ImageEditRequest) Model() string {
	return r.model
}

func (r *ImageEditRequest) Prompt() string {
	return r.prompt
}

func (r *ImageEditRequest) Images() []*valueobjects.ImageData {
	return r.images
}

// ImageEditResult carries the edited image and any text the model returned
// alongside it.
type ImageEditResult struct {
	response  string
	imageData *valueobjects.ImageData
}

func NewImageEditResult(response string, imageData *valueobjects.ImageData) *ImageEditResult {
	return &ImageEditResult{
		response:  response,
		imageData: imageData,
	}
}

func (r *ImageEditResult) Response() string {
	return r.response
}

func (r *ImageEditResult) ImageData() *valueobjects.ImageData {
	return r.imageData
}

func (r *ImageEditResult) HasImage() bool {
	return r.imageData != nil
}
