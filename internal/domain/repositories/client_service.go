package repositories

import (
	"context"

	"cloud.google.com/go/vertexai/genai"
	genai_std "google.golang.org/genai"
)

// AIClientConfig is shared by every generation client. When GeminiAPIKey is
// set the Gemini Developer API is used; otherwise Vertex AI with
// application default credentials.
type AIClientConfig struct {
	ProjectID    string
	Location     string
	GeminiAPIKey string
}

// VertexAIClientPool lazily creates the Vertex AI SDK client used by the
// try-on backend in SDK mode.
type VertexAIClientPool interface {
	GetVertexAIClient(ctx context.Context) (*genai.Client, error)

	Close() error
}

// GenAIClientPool lazily creates the google.golang.org/genai client used for
// image editing.
type GenAIClientPool interface {
	GetGenAIClient(ctx context.Context) (*genai_std.Client, error)

	Close() error
}

type ClientPoolService interface {
	VertexAIPool() VertexAIClientPool

	GenAIPool() GenAIClientPool

	Config() *AIClientConfig

	Close() error
}
