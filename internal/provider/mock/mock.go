package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
	"github.com/saturnino-fabrica-de-software/patientid/internal/provider"
)

// minImageSize abaixo disso o mock considera que não há face
const minImageSize = 1000

// Provider implementa provider.FaceExtractor para testes e desenvolvimento
type Provider struct {
	name      string
	dimension int
}

// New cria uma nova instância do MockProvider
func New(dimension int) *Provider {
	if dimension <= 0 {
		dimension = domain.DefaultDescriptorDimension
	}
	return &Provider{name: "mock", dimension: dimension}
}

// Named returns a copy reporting a different backend name, so fast and
// accurate slots can be told apart in logs.
func (p *Provider) Named(name string) *Provider {
	return &Provider{name: name, dimension: p.dimension}
}

func (p *Provider) Name() string {
	return p.name
}

// Extract gera descritor determinístico baseado no hash da imagem
func (p *Provider) Extract(ctx context.Context, image []byte) (domain.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(image) < minImageSize {
		return nil, domain.ErrNoFaceDetected
	}
	return generateDescriptor(image, p.dimension), nil
}

// Ping reports ErrModelUnavailable when dimension differs from the one the
// mock was built with.
func (p *Provider) Ping(ctx context.Context, dimension int) error {
	if dimension != p.dimension {
		return domain.ErrModelUnavailable
	}
	return nil
}

// generateDescriptor expands the SHA-256 of the image into a unit vector.
// Identical bytes give identical descriptors.
func generateDescriptor(image []byte, dimension int) domain.Descriptor {
	seed := sha256.Sum256(image)
	values := make([]float64, dimension)

	block := seed
	for i := 0; i < dimension; i++ {
		if i > 0 && i%8 == 0 {
			block = sha256.Sum256(block[:])
		}
		off := (i % 8) * 4
		u := binary.BigEndian.Uint32(block[off : off+4])
		values[i] = float64(u)/math.MaxUint32*2 - 1
	}

	norm := 0.0
	for _, v := range values {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range values {
			values[i] /= norm
		}
	}

	return domain.FromFloat64(values)
}

var (
	_ provider.FaceExtractor = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
)
