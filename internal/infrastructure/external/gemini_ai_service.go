package external

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

const DefaultClassifierModel = "gemini-2.5-flash"

// GeminiGarmentClassifier labels an uploaded garment photo with one of the
// wardrobe categories.
type GeminiGarmentClassifier struct {
	pool       repositories.GenAIClientPool
	model      string
	categories []string
}

var _ repositories.GarmentClassifier = (*GeminiGarmentClassifier)(nil)

func NewGeminiGarmentClassifier(pool repositories.GenAIClientPool, model string, categories []string) *GeminiGarmentClassifier {
	if model == "" {
		model = DefaultClassifierModel
	}
	return &GeminiGarmentClassifier{
		pool:       pool,
		model:      model,
		categories: categories,
	}
}

func (s *GeminiGarmentClassifier) ClassifyGarment(ctx context.Context, img *valueobjects.ImageData) (string, error) {
	client, err := s.pool.GetGenAIClient(ctx)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data(), img.MimeType()),
			genai.NewPartFromText(buildClassifyPrompt(s.categories)),
		}, genai.RoleUser),
	}

	resp, err := client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", classifyAPIError(err))
	}

	category := matchCategory(resp.Text(), s.categories)
	slog.Info("ClassifyGarment", "model", s.model, "category", category)
	return category, nil
}

// matchCategory maps a free-form answer onto the closest known category,
// or "" when nothing matches.
func matchCategory(answer string, categories []string) string {
	answer = strings.ToLower(strings.TrimSpace(answer))
	answer = strings.Trim(answer, ".\"'`* ")

	for _, c := range categories {
		if answer == strings.ToLower(c) {
			return c
		}
	}
	for _, c := range categories {
		if strings.Contains(answer, strings.ToLower(c)) {
			return c
		}
	}
	return ""
}

func buildClassifyPrompt(categories []string) string {
	var sb strings.Builder

	sb.WriteString("You are cataloguing a clothing wardrobe. Look at the garment in the image and classify it.\n")
	sb.WriteString("Answer with exactly one word from this list and nothing else:\n")
	sb.WriteString(strings.Join(categories, ", "))
	sb.WriteString("\n\n")
	sb.WriteString("Expected Output Format:\n")
	sb.WriteString("[category]")

	return sb.String()
}
