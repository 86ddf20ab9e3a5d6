package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
	"github.com/saturnino-fabrica-de-software/patientid/internal/provider"
)

// DetectorSkip tells DeepFace the image is already a face crop.
const DetectorSkip = "skip"

// Provider implements provider.FaceExtractor using one DeepFace detector backend
type Provider struct {
	client   *Client
	detector string
}

// NewProvider creates a new DeepFace provider bound to a detector backend
func NewProvider(config Config, detector string) *Provider {
	return NewProviderWithClient(NewClient(config), detector)
}

// NewProviderWithClient lets several detectors share one HTTP client.
func NewProviderWithClient(client *Client, detector string) *Provider {
	return &Provider{
		client:   client,
		detector: detector,
	}
}

func (p *Provider) Name() string {
	return "deepface/" + p.detector
}

// Extract returns the embedding of the largest face DeepFace finds.
func (p *Provider) Extract(ctx context.Context, image []byte) (domain.Descriptor, error) {
	if len(image) == 0 {
		return nil, domain.ErrInvalidImage
	}

	resp, err := p.client.Represent(ctx, dataURI(image), p.detector, p.detector != DetectorSkip)
	if err != nil {
		if errors.Is(err, ErrNoFaceInResponse) {
			return nil, domain.ErrNoFaceDetected.WithError(err)
		}
		return nil, fmt.Errorf("%s represent: %w", p.Name(), err)
	}

	if len(resp.Results) == 0 {
		return nil, domain.ErrNoFaceDetected.WithError(ErrNoFaceInResponse)
	}

	faces := make([]provider.DetectedFace, len(resp.Results))
	for i, r := range resp.Results {
		faces[i] = provider.DetectedFace{
			BoundingBox: provider.BoundingBox{
				X:      float64(r.FacialArea.X),
				Y:      float64(r.FacialArea.Y),
				Width:  float64(r.FacialArea.W),
				Height: float64(r.FacialArea.H),
			},
			Confidence: r.FaceConfidence,
		}
	}

	best := resp.Results[provider.LargestFace(faces)]
	if len(best.Embedding) == 0 {
		return nil, fmt.Errorf("%s represent: %w: empty embedding", p.Name(), ErrInvalidResponse)
	}

	return domain.FromFloat64(best.Embedding), nil
}

// Ping asks DeepFace for the embedding of a blank image with detection
// disabled. It fails if the service is down or the model produces vectors
// of a different length.
func (p *Provider) Ping(ctx context.Context, dimension int) error {
	resp, err := p.client.Represent(ctx, dataURI(probeImage()), DetectorSkip, false)
	if err != nil {
		return domain.ErrModelUnavailable.WithError(err)
	}
	if len(resp.Results) == 0 {
		return domain.ErrModelUnavailable.WithError(ErrNoFaceInResponse)
	}
	if got := len(resp.Results[0].Embedding); got != dimension {
		return domain.ErrModelUnavailable.WithError(
			fmt.Errorf("model %s returned %d-dimensional embedding, expected %d", p.client.Model(), got, dimension))
	}
	return nil
}

func dataURI(image []byte) string {
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}

func probeImage() []byte {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	img.SetGray(32, 32, color.Gray{Y: 255})

	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

var (
	_ provider.FaceExtractor = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
)
