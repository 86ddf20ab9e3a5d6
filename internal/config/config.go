package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Provider
	ProviderType     string        `envconfig:"PROVIDER_TYPE" default:"deepface"`
	DeepFaceURL      string        `envconfig:"DEEPFACE_URL" default:"http://localhost:5000"`
	DeepFaceModel    string        `envconfig:"DEEPFACE_MODEL" default:"Facenet"`
	DeepFaceTimeout  time.Duration `envconfig:"DEEPFACE_TIMEOUT" default:"30s"`
	FastDetector     string        `envconfig:"FAST_DETECTOR" default:"opencv"`
	AccurateDetector string        `envconfig:"ACCURATE_DETECTOR" default:"retinaface"`
	AWSRegion        string        `envconfig:"AWS_REGION" default:"us-east-1"`

	// Image retrieval
	FetchTimeout         time.Duration `envconfig:"FETCH_TIMEOUT" default:"5s"`
	FetchRetryCount      int           `envconfig:"FETCH_RETRY_COUNT" default:"1"`
	ImageCacheMaxEntries int           `envconfig:"IMAGE_CACHE_MAX_ENTRIES" default:"256"`
	FetchMaxBodyBytes    int           `envconfig:"FETCH_MAX_BODY_BYTES" default:"10485760"`

	// Extraction
	DecodeTimeout       time.Duration `envconfig:"DECODE_TIMEOUT" default:"10s"`
	ProbeMaxDimension   int           `envconfig:"PROBE_MAX_DIMENSION" default:"640"`
	GalleryMaxDimension int           `envconfig:"GALLERY_MAX_DIMENSION" default:"480"`
	DescriptorDimension int           `envconfig:"DESCRIPTOR_DIMENSION" default:"128"`
	MaxImagePixels      int           `envconfig:"MAX_IMAGE_PIXELS" default:"40000000"`

	// Matching
	BatchSize                int     `envconfig:"MATCH_BATCH_SIZE" default:"5"`
	HighConfidenceDistance   float64 `envconfig:"MATCH_HIGH_CONFIDENCE_DISTANCE" default:"0.45"`
	MediumConfidenceDistance float64 `envconfig:"MATCH_MEDIUM_CONFIDENCE_DISTANCE" default:"0.55"`
	MarginCeilingDistance    float64 `envconfig:"MATCH_MARGIN_CEILING_DISTANCE" default:"0.6"`
	MarginRatio              float64 `envconfig:"MATCH_MARGIN_RATIO" default:"1.2"`
	DescriptorCacheWarnSize  int     `envconfig:"DESCRIPTOR_CACHE_WARN_SIZE" default:"10000"`

	// Preload
	PreloadOnStart    bool          `envconfig:"PRELOAD_ON_START" default:"true"`
	PreloadSampleSize int           `envconfig:"PRELOAD_SAMPLE_SIZE" default:"50"`
	PreloadTimeout    time.Duration `envconfig:"PRELOAD_TIMEOUT" default:"2m"`

	// Rate limiting for the identify endpoint
	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"60"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// Security
	AdminAPIKey string `envconfig:"ADMIN_API_KEY" required:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the matching pipeline cannot run with.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("MATCH_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.DescriptorDimension < 1 {
		return fmt.Errorf("DESCRIPTOR_DIMENSION must be positive, got %d", c.DescriptorDimension)
	}
	if c.ProbeMaxDimension < 1 || c.GalleryMaxDimension < 1 {
		return fmt.Errorf("max dimensions must be positive (probe=%d, gallery=%d)", c.ProbeMaxDimension, c.GalleryMaxDimension)
	}
	if c.FetchTimeout <= 0 || c.DecodeTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT and DECODE_TIMEOUT must be positive")
	}
	if c.HighConfidenceDistance > c.MediumConfidenceDistance {
		return fmt.Errorf("high confidence distance %.3f exceeds medium confidence distance %.3f",
			c.HighConfidenceDistance, c.MediumConfidenceDistance)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
