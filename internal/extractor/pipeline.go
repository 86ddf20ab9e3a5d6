// Package extractor turns encoded image bytes into a face descriptor:
// decode under a time guard, downscale, then ask a fast face backend and
// fall back to a slower, more accurate one when the fast one sees no face.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
	"github.com/saturnino-fabrica-de-software/patientid/internal/provider"
)

type Config struct {
	DecodeTimeout time.Duration
	Dimension     int
	MaxPixels     int
}

func DefaultConfig() Config {
	return Config{
		DecodeTimeout: 10 * time.Second,
		Dimension:     domain.DefaultDescriptorDimension,
		MaxPixels:     40_000_000,
	}
}

// Pipeline implements the decode, downscale and detect sequence.
type Pipeline struct {
	fast     provider.FaceExtractor
	accurate provider.FaceExtractor
	config   Config
	decode   decodeFunc
	logger   *slog.Logger
}

// New builds a Pipeline. accurate may be nil, in which case a NoFace from
// the fast backend is final.
func New(fast, accurate provider.FaceExtractor, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.DecodeTimeout <= 0 {
		cfg.DecodeTimeout = DefaultConfig().DecodeTimeout
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = domain.DefaultDescriptorDimension
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultConfig().MaxPixels
	}
	return &Pipeline{
		fast:     fast,
		accurate: accurate,
		config:   cfg,
		decode:   boundedDecode(cfg.MaxPixels),
		logger:   logger,
	}
}

// Extract returns the descriptor of the largest face in data after scaling
// the image down to fit maxDimension.
//
// Errors: domain.ErrDecodeFailure, domain.ErrDecodeTimeout,
// domain.ErrNoFaceDetected, domain.ErrInvalidDescriptor, or whatever the
// backends return for transport failures.
func (p *Pipeline) Extract(ctx context.Context, data []byte, maxDimension int) (domain.Descriptor, error) {
	img, err := decodeWithTimeout(ctx, p.decode, data, p.config.DecodeTimeout)
	if err != nil {
		return nil, err
	}

	encoded, err := encodeJPEG(downscale(img, maxDimension))
	if err != nil {
		return nil, domain.ErrDecodeFailure.WithError(err)
	}

	descriptor, err := p.fast.Extract(ctx, encoded)
	if errors.Is(err, domain.ErrNoFaceDetected) && p.accurate != nil {
		p.logger.Debug("fast detector found no face, trying accurate detector",
			slog.String("fast", p.fast.Name()),
			slog.String("accurate", p.accurate.Name()),
		)
		descriptor, err = p.accurate.Extract(ctx, encoded)
	}
	if err != nil {
		return nil, err
	}

	if err := descriptor.Validate(p.config.Dimension); err != nil {
		return nil, fmt.Errorf("backend returned bad descriptor: %w", err)
	}

	return descriptor, nil
}
