package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", env(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "us-central1", cfg.Location)
	assert.Equal(t, "virtual-try-on-preview-08-04", cfg.VTOModel)
	assert.Equal(t, 6, cfg.Loader.Limit)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL())
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())

	assert.Error(t, cfg.RequireAI(), "no project or api key configured")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gardrob.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
project_id: file-project
transform_timeout: 45s
poses:
  - Side profile view
database:
  driver: postgres
  dsn: postgres://localhost/gardrob
loader:
  limit: 4
  rewrite_from: https://storage.example.com/
  rewrite_to: https://cdn.example.com
`), 0o644))

	cfg, err := Load(path, env(map[string]string{
		"PROJECT_ID":   "env-project",
		"USE_SDK":      "true",
		"LOADER_LIMIT": "8",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "env-project", cfg.ProjectID)
	assert.True(t, cfg.UseSDK)
	assert.Equal(t, 45*time.Second, cfg.TransformTimeout)
	assert.Equal(t, []string{"Side profile view"}, cfg.Poses)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Loader.Limit)
	assert.Equal(t, "https://cdn.example.com", cfg.Loader.RewriteTo)
	assert.NoError(t, cfg.RequireAI())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DB_DRIVER": "mongo"}},
		{"bad limit", map[string]string{"LOADER_LIMIT": "zero"}},
		{"non-positive limit", map[string]string{"LOADER_LIMIT": "0"}},
		{"bad timeout", map[string]string{"TRANSFORM_TIMEOUT": "soon"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("", env(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.Error(t, err)
}

func TestRequireAI_TryOnNeedsProject(t *testing.T) {
	cfg := Default()
	cfg.GeminiAPIKey = "key"
	assert.NoError(t, cfg.RequireAI())

	cfg.UseTryOn = true
	assert.Error(t, cfg.RequireAI())
}
