package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

// TransformService implements the layer store's transform function on top
// of the generation backends. Inputs are resolved to bytes, outputs are
// written to the blob store and returned as references.
type TransformService struct {
	editor      repositories.ImageEditAIService
	tryOn       repositories.TryOnAIService
	tryOnParams *valueobjects.TryOnParameters
	resolver    repositories.ImageResolver
	blobs       repositories.BlobStore
	editModel   string
}

var (
	_ repositories.Transformer    = (*TransformService)(nil)
	_ repositories.ModelGenerator = (*TransformService)(nil)
)

func NewTransformService(
	editor repositories.ImageEditAIService,
	resolver repositories.ImageResolver,
	blobs repositories.BlobStore,
	editModel string,
) *TransformService {
	return &TransformService{
		editor:    editor,
		resolver:  resolver,
		blobs:     blobs,
		editModel: editModel,
	}
}

// WithTryOn routes garment application through the virtual try-on model
// instead of prompt-based editing. Poses and models still use the editor.
func (s *TransformService) WithTryOn(tryOn repositories.TryOnAIService, params *valueobjects.TryOnParameters) *TransformService {
	s.tryOn = tryOn
	s.tryOnParams = params
	return s
}

func (s *TransformService) ApplyGarment(ctx context.Context, base valueobjects.ImageRef, garment *entities.GarmentRef) (valueobjects.ImageRef, error) {
	const op = "apply garment"

	if garment == nil {
		return "", validationError("garment is required")
	}

	if s.tryOn != nil {
		result, err := s.generateTryOn(ctx, op, base, garment)
		if err != nil {
			return "", err
		}
		return s.store(ctx, op, result)
	}

	baseImage, err := s.resolve(ctx, op, base)
	if err != nil {
		return "", err
	}

	garmentImage, err := s.resolve(ctx, op, garment.Image())
	if err != nil {
		return "", err
	}

	result, err := s.edit(ctx, garmentPrompt(garment), baseImage, garmentImage)
	if err != nil {
		return "", classifyTransformError(op, err)
	}

	return s.store(ctx, op, result)
}

func (s *TransformService) VaryPose(ctx context.Context, base valueobjects.ImageRef, instruction string) (valueobjects.ImageRef, error) {
	const op = "vary pose"

	if strings.TrimSpace(instruction) == "" {
		return "", validationError("pose instruction is required")
	}

	baseImage, err := s.resolve(ctx, op, base)
	if err != nil {
		return "", err
	}

	result, err := s.edit(ctx, posePrompt(instruction), baseImage)
	if err != nil {
		return "", classifyTransformError(op, err)
	}

	return s.store(ctx, op, result)
}

func (s *TransformService) GenerateModel(ctx context.Context, photo *valueobjects.ImageData) (valueobjects.ImageRef, error) {
	const op = "generate model"

	if photo == nil {
		return "", validationError("photo is required")
	}

	result, err := s.edit(ctx, modelPrompt(), photo)
	if err != nil {
		return "", classifyTransformError(op, err)
	}

	return s.store(ctx, op, result)
}

func (s *TransformService) resolve(ctx context.Context, op string, ref valueobjects.ImageRef) (*valueobjects.ImageData, error) {
	if ref.IsZero() {
		return nil, validationError("%s: image reference is empty", op)
	}

	img, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, &TransformError{Op: op, Kind: TransformKindService, Err: fmt.Errorf("failed to load input image: %w", err)}
	}
	return img, nil
}

func (s *TransformService) edit(ctx context.Context, prompt string, images ...*valueobjects.ImageData) (*valueobjects.ImageData, error) {
	request, err := entities.NewImageEditRequest(s.editModel, prompt, images...)
	if err != nil {
		return nil, fmt.Errorf("request validation failed: %w", err)
	}

	result, err := s.editor.EditImage(ctx, request)
	if err != nil {
		return nil, err
	}

	if !result.HasImage() {
		return nil, fmt.Errorf("no image generated: %s", result.Response())
	}

	return result.ImageData(), nil
}

func (s *TransformService) generateTryOn(ctx context.Context, op string, base valueobjects.ImageRef, garment *entities.GarmentRef) (*valueobjects.ImageData, error) {
	request, err := entities.NewTryOnRequest(base, garment, s.tryOnParams)
	if err != nil {
		return nil, validationError("%s: %v", op, err)
	}

	person, err := s.resolve(ctx, op, request.Base())
	if err != nil {
		return nil, err
	}

	product, err := s.resolve(ctx, op, request.Garment().Image())
	if err != nil {
		return nil, err
	}

	if err := request.PrepareImages(person, product); err != nil {
		return nil, &TransformError{Op: op, Kind: TransformKindService, Err: fmt.Errorf("image preparation failed: %w", err)}
	}

	result, err := s.tryOn.GenerateTryOn(ctx, request)
	if err != nil {
		return nil, classifyTransformError(op, err)
	}
	return result, nil
}

func (s *TransformService) store(ctx context.Context, op string, img *valueobjects.ImageData) (valueobjects.ImageRef, error) {
	ref, err := s.blobs.Put(ctx, img.Data(), img.MimeType())
	if err != nil {
		return "", &PersistenceError{Op: op + ": store result", Err: err}
	}
	return ref, nil
}

func classifyTransformError(op string, err error) error {
	var te *TransformError
	if errors.As(err, &te) {
		return err
	}

	kind := TransformKindService
	switch {
	case isContentPolicyError(err):
		kind = TransformKindContentPolicy
	case isQuotaError(err):
		kind = TransformKindQuota
	}

	return &TransformError{Op: op, Kind: kind, Err: err}
}

func isQuotaError(err error) bool {
	if errors.Is(err, repositories.ErrQuotaExceeded) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "resourceexhausted") ||
		strings.Contains(errStr, "resource_exhausted")
}

func isContentPolicyError(err error) bool {
	if errors.Is(err, repositories.ErrContentBlocked) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "prohibited_content") ||
		strings.Contains(errStr, "image_safety") ||
		strings.Contains(errStr, "responsible ai") ||
		strings.Contains(errStr, "safety filter")
}

func garmentPrompt(garment *entities.GarmentRef) string {
	category := garment.Category()
	if category == "" {
		category = "garment"
	}

	return strings.Join([]string{
		"You are an expert virtual try-on assistant.",
		"The first image is a photo of a person (the model). The second image shows a single " + category + ": " + garment.Name() + ".",
		"Create a new photorealistic image of the same person wearing that " + category + ".",
		"**Rules:**",
		"- Keep the person's face, hair, body shape, pose and every other item of clothing unchanged.",
		"- Replace only the clothing the new item would naturally cover; layer it on top where that is how it is worn.",
		"- Keep the original background and lighting.",
		"- Return only the edited image.",
	}, "\n")
}

func posePrompt(instruction string) string {
	return strings.Join([]string{
		"You are an expert fashion photographer.",
		"Regenerate the provided image from a different perspective. The person, their outfit and the background must stay identical.",
		"**New pose:** " + instruction,
		"Return only the final image.",
	}, "\n")
}

func modelPrompt() string {
	return strings.Join([]string{
		"You are an expert fashion photographer preparing an e-commerce model shot.",
		"Transform the person in the photo into a full-body fashion model photo on a clean, light gray studio backdrop.",
		"- Preserve the person's identity, facial features, skin tone and body shape.",
		"- Use a neutral standing pose and soft, even studio lighting.",
		"- Keep their current clothing simple so garments can be layered on later.",
		"Return only the final image.",
	}, "\n")
}
