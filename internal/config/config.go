package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Defaults are overlaid by an optional
// YAML file and then by environment variables.
type Config struct {
	Port          string `yaml:"port"`
	PublicBaseURL string `yaml:"public_base_url"`

	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	EditModel       string `yaml:"edit_model"`
	ClassifierModel string `yaml:"classifier_model"`
	VTOModel        string `yaml:"vto_model"`
	UseSDK          bool   `yaml:"use_sdk"`
	UseTryOn        bool   `yaml:"use_tryon"`

	TransformTimeout time.Duration `yaml:"transform_timeout"`
	MaxUploadMB      int           `yaml:"max_upload_mb"`
	MaxSessions      int           `yaml:"max_sessions"`
	Poses            []string      `yaml:"poses"`

	Database  DatabaseConfig  `yaml:"database"`
	Blobs     BlobConfig      `yaml:"blobs"`
	Loader    LoaderConfig    `yaml:"loader"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // memory | sqlite | postgres
	DSN    string `yaml:"dsn"`
}

type BlobConfig struct {
	Dir       string `yaml:"dir"`
	PublicURL string `yaml:"public_url"`
}

type LoaderConfig struct {
	Limit       int    `yaml:"limit"`
	RewriteFrom string `yaml:"rewrite_from"`
	RewriteTo   string `yaml:"rewrite_to"`
	MaxImageMB  int    `yaml:"max_image_mb"`
}

// RateLimitConfig bounds generation requests per user.
type RateLimitConfig struct {
	PerMinute float64 `yaml:"per_minute"`
	Burst     int     `yaml:"burst"`
}

type LogConfig struct {
	Format string `yaml:"format"` // text | json
	Level  string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Port:             "8080",
		Location:         "us-central1",
		EditModel:        "gemini-2.5-flash-image-preview",
		ClassifierModel:  "gemini-2.5-flash",
		VTOModel:         "virtual-try-on-preview-08-04",
		TransformTimeout: 2 * time.Minute,
		MaxUploadMB:      10,
		MaxSessions:      1024,
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "gardrob.db",
		},
		Blobs: BlobConfig{
			Dir:       "data/blobs",
			PublicURL: "/blobs",
		},
		Loader: LoaderConfig{
			Limit:      6,
			MaxImageMB: 20,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 10,
			Burst:     3,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load builds the configuration. path may be empty. getenv is usually
// os.Getenv.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Port)
	str("PUBLIC_BASE_URL", &c.PublicBaseURL)
	str("GOOGLE_CLOUD_PROJECT", &c.ProjectID)
	str("PROJECT_ID", &c.ProjectID)
	str("LOCATION", &c.Location)
	str("GEMINI_API_KEY", &c.GeminiAPIKey)
	str("EDIT_MODEL", &c.EditModel)
	str("CLASSIFIER_MODEL", &c.ClassifierModel)
	str("VTO_MODEL", &c.VTOModel)
	str("DB_DRIVER", &c.Database.Driver)
	str("DB_DSN", &c.Database.DSN)
	str("BLOB_DIR", &c.Blobs.Dir)
	str("BLOB_PUBLIC_URL", &c.Blobs.PublicURL)
	str("CDN_REWRITE_FROM", &c.Loader.RewriteFrom)
	str("CDN_REWRITE_TO", &c.Loader.RewriteTo)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_LEVEL", &c.Log.Level)

	if v := getenv("USE_SDK"); v != "" {
		c.UseSDK = v == "true"
	}
	if v := getenv("USE_TRYON"); v != "" {
		c.UseTryOn = v == "true"
	}

	ints := map[string]*int{
		"LOADER_LIMIT":     &c.Loader.Limit,
		"MAX_UPLOAD_MB":    &c.MaxUploadMB,
		"MAX_SESSIONS":     &c.MaxSessions,
		"RATE_LIMIT_BURST": &c.RateLimit.Burst,
	}
	for key, dst := range ints {
		v := getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v := getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_PER_MINUTE: %w", err)
		}
		c.RateLimit.PerMinute = f
	}

	if v := getenv("TRANSFORM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TRANSFORM_TIMEOUT: %w", err)
		}
		c.TransformTimeout = d
	}

	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database.driver %q (use memory, sqlite or postgres)", c.Database.Driver)
	}
	if c.Loader.Limit <= 0 {
		return fmt.Errorf("loader.limit must be > 0")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be > 0")
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log.format %q", c.Log.Format)
	}
	return nil
}

// RequireAI checks the settings the generation backends need.
func (c *Config) RequireAI() error {
	if c.GeminiAPIKey == "" && c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID or GEMINI_API_KEY must be set")
	}
	if c.UseTryOn && c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID is required when use_tryon is enabled")
	}
	return nil
}

func (c *Config) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }

func (c *Config) MaxImageBytes() int64 { return int64(c.Loader.MaxImageMB) << 20 }

func (c *Config) Addr() string { return ":" + c.Port }

// BaseURL is the absolute origin relative image references resolve
// against.
func (c *Config) BaseURL() string {
	if c.PublicBaseURL != "" {
		return strings.TrimSuffix(c.PublicBaseURL, "/")
	}
	return "http://localhost:" + c.Port
}
