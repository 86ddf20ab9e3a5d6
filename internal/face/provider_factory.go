package face

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/patientid/internal/config"
	"github.com/saturnino-fabrica-de-software/patientid/internal/extractor"
	"github.com/saturnino-fabrica-de-software/patientid/internal/provider"
	"github.com/saturnino-fabrica-de-software/patientid/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/patientid/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/patientid/internal/provider/rekognition"
)

// ProviderType defines supported face backend combinations
type ProviderType string

const (
	// ProviderTypeDeepFace uses DeepFace for both detectors (opencv, then retinaface)
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeRekognition keeps DeepFace as the fast detector and uses
	// AWS Rekognition to locate faces for the accurate pass
	ProviderTypeRekognition ProviderType = "rekognition"
	// ProviderTypeMock is deterministic and offline (dev/test)
	ProviderTypeMock ProviderType = "mock"
)

// Backends is the fast/accurate pair plus whatever must answer at startup.
type Backends struct {
	Fast     provider.FaceExtractor
	Accurate provider.FaceExtractor
	health   provider.HealthChecker
}

// NewBackends creates the face backends selected by configuration
//
// Environment variables:
//   - PROVIDER_TYPE: "deepface", "rekognition" or "mock" (default: "deepface")
//   - DEEPFACE_URL, DEEPFACE_MODEL, DEEPFACE_TIMEOUT
//   - FAST_DETECTOR, ACCURATE_DETECTOR: DeepFace detector backends
//   - AWS_REGION: AWS region for Rekognition (credentials via the AWS SDK chain)
func NewBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	switch ProviderType(cfg.ProviderType) {
	case ProviderTypeDeepFace, "":
		client := newDeepFaceClient(cfg)
		fast := deepface.NewProviderWithClient(client, cfg.FastDetector)
		return &Backends{
			Fast:     fast,
			Accurate: deepface.NewProviderWithClient(client, cfg.AccurateDetector),
			health:   fast,
		}, nil

	case ProviderTypeRekognition:
		return createRekognitionBackends(ctx, cfg)

	case ProviderTypeMock:
		m := mock.New(cfg.DescriptorDimension)
		return &Backends{
			Fast:     m,
			Accurate: m.Named("mock/accurate"),
			health:   m,
		}, nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s)",
			cfg.ProviderType, ProviderTypeDeepFace, ProviderTypeRekognition, ProviderTypeMock)
	}
}

func createRekognitionBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	rekogConfig := rekognition.DefaultConfig()
	rekogConfig.Region = cfg.AWSRegion

	api, err := rekognition.NewClient(ctx, rekogConfig)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}

	client := newDeepFaceClient(cfg)
	fast := deepface.NewProviderWithClient(client, cfg.FastDetector)
	describer := deepface.NewProviderWithClient(client, deepface.DetectorSkip)

	return &Backends{
		Fast:     fast,
		Accurate: rekognition.NewExtractor(api, describer, rekogConfig),
		health:   fast,
	}, nil
}

func newDeepFaceClient(cfg *config.Config) *deepface.Client {
	deepfaceConfig := deepface.DefaultConfig()
	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}
	if cfg.DeepFaceTimeout > 0 {
		deepfaceConfig.Timeout = cfg.DeepFaceTimeout
	}
	return deepface.NewClient(deepfaceConfig)
}

// Verify checks that the descriptor model answers with the configured
// dimension. Returns domain.ErrModelUnavailable otherwise.
func (b *Backends) Verify(ctx context.Context, dimension int) error {
	if b.health == nil {
		return nil
	}
	return b.health.Ping(ctx, dimension)
}

// NewPipeline builds the backends, verifies the model and returns the
// extraction pipeline used for both probes and gallery portraits.
func NewPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*extractor.Pipeline, error) {
	backends, err := NewBackends(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := backends.Verify(ctx, cfg.DescriptorDimension); err != nil {
		return nil, fmt.Errorf("verify face model: %w", err)
	}

	logger.Info("face backends ready",
		slog.String("fast", backends.Fast.Name()),
		slog.String("accurate", backends.Accurate.Name()),
		slog.Int("dimension", cfg.DescriptorDimension),
	)

	return extractor.New(backends.Fast, backends.Accurate, extractor.Config{
		DecodeTimeout: cfg.DecodeTimeout,
		Dimension:     cfg.DescriptorDimension,
		MaxPixels:     cfg.MaxImagePixels,
	}, logger), nil
}
