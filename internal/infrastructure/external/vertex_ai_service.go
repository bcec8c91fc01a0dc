package external

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/oauth2/google"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	"github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
	"github.com/Orelexa/gardrob/model"
)

const DefaultVTOModel = "virtual-try-on-preview-08-04"

// VertexAIService calls the Vertex AI Virtual Try-On model, either through
// the REST predict endpoint or through the Vertex SDK.
type VertexAIService struct {
	projectID string
	location  string
	vtoModel  string
	pool      repositories.VertexAIClientPool
	useSDK    bool

	endpoint   string
	httpClient *http.Client
	token      func(ctx context.Context) (string, error)
}

var _ repositories.TryOnAIService = (*VertexAIService)(nil)

func NewVertexAIService(config *repositories.AIClientConfig, pool repositories.VertexAIClientPool, vtoModel string, useSDK bool) *VertexAIService {
	if vtoModel == "" {
		vtoModel = DefaultVTOModel
	}

	return &VertexAIService{
		projectID:  config.ProjectID,
		location:   config.Location,
		vtoModel:   vtoModel,
		pool:       pool,
		useSDK:     useSDK,
		endpoint:   fmt.Sprintf("https://%s-aiplatform.googleapis.com", config.Location),
		httpClient: &http.Client{Timeout: 300 * time.Second},
		token:      defaultAccessToken,
	}
}

func (s *VertexAIService) GenerateTryOn(ctx context.Context, request *entities.TryOnRequest) (*valueobjects.ImageData, error) {
	if !request.Prepared() {
		return nil, fmt.Errorf("try-on request %s has no prepared images", request.ID())
	}
	if s.useSDK {
		return s.generateWithSDK(ctx, request)
	}
	return s.generateWithREST(ctx, request)
}

func (s *VertexAIService) generateWithSDK(ctx context.Context, request *entities.TryOnRequest) (*valueobjects.ImageData, error) {
	client, err := s.pool.GetVertexAIClient(ctx)
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(s.vtoModel)

	prompt := []genai.Part{
		genai.Text("person:"),
		genai.ImageData("jpeg", request.PersonImage().Data()),
		genai.Text("garment:"),
		genai.ImageData("jpeg", request.GarmentImage().Data()),
	}

	model.SetTemperature(0.4)
	model.SetTopK(32)
	model.SetTopP(1)
	model.SetMaxOutputTokens(2048)
	model.ResponseMIMEType = "image/jpeg"

	resp, err := model.GenerateContent(ctx, prompt...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", repositories.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: generation stopped by safety filter", repositories.ErrContentBlocked)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	for _, part := range candidate.Content.Parts {
		if blob, ok := part.(genai.Blob); ok {
			if blob.MIMEType == "image/jpeg" || blob.MIMEType == "image/png" {
				imageData, err := valueobjects.NewImageData(blob.Data, blob.MIMEType)
				if err != nil {
					return nil, fmt.Errorf("failed to create image data: %w", err)
				}
				return imageData, nil
			}
		}
	}

	return nil, fmt.Errorf("no image found in response")
}

func (s *VertexAIService) generateWithREST(ctx context.Context, request *entities.TryOnRequest) (*valueobjects.ImageData, error) {
	accessToken, err := s.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	params := request.Parameters()

	apiRequest := map[string]any{
		"instances": []map[string]any{
			{
				"personImage": map[string]any{
					"image": map[string]any{
						"bytesBase64Encoded": request.PersonImage().ToBase64(),
					},
				},
				"productImages": []map[string]any{
					{
						"image": map[string]any{
							"bytesBase64Encoded": request.GarmentImage().ToBase64(),
						},
					},
				},
			},
		},
		"parameters": params.PredictParameters(),
	}

	reqBody, err := json.Marshal(apiRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	slog.Debug("Virtual try-on request",
		"requestID", request.ID(),
		"garment", request.Garment().ID(),
		"base", request.Base(),
		"model", s.vtoModel,
		"parameters", params.PredictParameters(),
	)

	url := fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		s.endpoint, s.projectID, s.location, s.vtoModel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: API request failed with status %d: %s", repositories.ErrQuotaExceeded, resp.StatusCode, string(respBody))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var predResp model.VirtualTryOnResponse
	if err := json.Unmarshal(respBody, &predResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(predResp.Predictions) == 0 {
		return nil, fmt.Errorf("%w: no predictions in response", repositories.ErrContentBlocked)
	}

	for _, prediction := range predResp.Predictions {
		if prediction.RAIFilteredReason != "" {
			return nil, fmt.Errorf("%w: %s", repositories.ErrContentBlocked, prediction.RAIFilteredReason)
		}
		if prediction.BytesBase64Encoded == "" {
			continue
		}

		imageBytes, err := base64.StdEncoding.DecodeString(prediction.BytesBase64Encoded)
		if err != nil {
			slog.Warn("Skipping undecodable prediction", "error", err)
			continue
		}

		imageData, err := valueobjects.NewImageData(imageBytes, prediction.MimeType)
		if err != nil {
			slog.Warn("Skipping invalid prediction image", "error", err)
			continue
		}
		return imageData, nil
	}

	return nil, fmt.Errorf("no valid image data found in response")
}

func defaultAccessToken(ctx context.Context) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx,
		"https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("failed to find default credentials: %w", err)
	}

	token, err := creds.TokenSource.Token()
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}

	return token.AccessToken, nil
}

func (s *VertexAIService) Close() error {
	return s.pool.Close()
}
