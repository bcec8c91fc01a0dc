package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

// GeminiImageEditService sends a prompt plus input images to a Gemini image
// model and returns the edited image.
type GeminiImageEditService struct {
	pool repositories.GenAIClientPool
}

var _ repositories.ImageEditAIService = (*GeminiImageEditService)(nil)

func NewGeminiImageEditService(pool repositories.GenAIClientPool) *GeminiImageEditService {
	return &GeminiImageEditService{
		pool: pool,
	}
}

// blockedFinishReasons end a candidate on content-policy grounds.
var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"IMAGE_SAFETY":       true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
}

func (s *GeminiImageEditService) EditImage(ctx context.Context, request *entities.ImageEditRequest) (*entities.ImageEditResult, error) {
	slog.Info("EditImage", "model", request.Model(), "imageCount", len(request.Images()))

	client, err := s.pool.GetGenAIClient(ctx)
	if err != nil {
		return nil, err
	}

	parts := make([]*genai.Part, 0, len(request.Images())+1)
	for _, img := range request.Images() {
		parts = append(parts, genai.NewPartFromBytes(img.Data(), img.MimeType()))
	}
	parts = append(parts, genai.NewPartFromText(request.Prompt()))

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	// Image preview models reject multiple candidates and media resolution,
	// so the config stays empty.
	resp, err := client.Models.GenerateContent(ctx, request.Model(), contents, &genai.GenerateContentConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", classifyAPIError(err))
	}

	return parseEditResponse(resp)
}

func parseEditResponse(resp *genai.GenerateContentResponse) (*entities.ImageEditResult, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		slog.Warn("Prompt blocked", "reason", resp.PromptFeedback.BlockReason, "message", resp.PromptFeedback.BlockReasonMessage)
		return nil, fmt.Errorf("%w: prompt blocked (%s) %s",
			repositories.ErrContentBlocked, resp.PromptFeedback.BlockReason, resp.PromptFeedback.BlockReasonMessage)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	finish := string(candidate.FinishReason)
	if blockedFinishReasons[finish] {
		slog.Warn("Generation stopped by safety filter", "finishReason", finish)
		return nil, fmt.Errorf("%w: generation stopped (%s)", repositories.ErrContentBlocked, finish)
	}

	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no content in response (finish reason %q)", finish)
	}

	var (
		text  []string
		image *valueobjects.ImageData
	)
	for i, part := range candidate.Content.Parts {
		switch {
		case part.Text != "":
			text = append(text, part.Text)
		case part.InlineData != nil && image == nil:
			slog.Debug("Processing image part", "index", i, "mimeType", part.InlineData.MIMEType, "dataSize", len(part.InlineData.Data))

			img, err := valueobjects.NewImageData(part.InlineData.Data, part.InlineData.MIMEType)
			if err != nil {
				return nil, fmt.Errorf("failed to create image data: %w", err)
			}
			image = img
		}
	}

	result := entities.NewImageEditResult(strings.Join(text, "\n"), image)
	if !result.HasImage() {
		slog.Warn("No image data in response", "responseText", result.Response())
	}
	return result, nil
}

// classifyAPIError maps provider status codes onto the repository sentinels.
func classifyAPIError(err error) error {
	code := 0

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}

	if code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", repositories.ErrQuotaExceeded, err)
	}
	return err
}
