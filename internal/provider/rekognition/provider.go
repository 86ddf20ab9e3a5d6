package rekognition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"golang.org/x/image/draw"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
	"github.com/saturnino-fabrica-de-software/patientid/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100
)

// Extractor locates faces with Rekognition DetectFaces, crops the largest
// one locally and hands the crop to a describer. Rekognition never exposes
// embeddings, so the describer must be a backend that does (typically
// DeepFace with detection skipped).
type Extractor struct {
	api       DetectFacesAPI
	describer provider.FaceExtractor
	config    Config
}

// NewExtractor wires a Rekognition detector to a descriptor backend
func NewExtractor(api DetectFacesAPI, describer provider.FaceExtractor, cfg Config) *Extractor {
	return &Extractor{
		api:       api,
		describer: describer,
		config:    cfg,
	}
}

func (e *Extractor) Name() string {
	return "rekognition+" + e.describer.Name()
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrImageRejected, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrImageRejected, len(image), maxImageSize)
	}
	return nil
}

// DetectFaces returns the faces Rekognition reports above MinConfidence,
// with bounding boxes relative to the image size (0-1).
func (e *Extractor) DetectFaces(ctx context.Context, image []byte) ([]provider.DetectedFace, error) {
	if err := validateImage(image); err != nil {
		return nil, err
	}

	output, err := e.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: image},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		return nil, parseDetectError(err)
	}

	faces := make([]provider.DetectedFace, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		if detail.BoundingBox == nil || detail.Confidence == nil {
			continue
		}
		if *detail.Confidence < e.config.MinConfidence {
			continue
		}
		box := detail.BoundingBox
		faces = append(faces, provider.DetectedFace{
			BoundingBox: provider.BoundingBox{
				X:      float64(deref(box.Left)),
				Y:      float64(deref(box.Top)),
				Width:  float64(deref(box.Width)),
				Height: float64(deref(box.Height)),
			},
			Confidence: float64(*detail.Confidence),
		})
	}

	return faces, nil
}

// Extract implements provider.FaceExtractor.
func (e *Extractor) Extract(ctx context.Context, data []byte) (domain.Descriptor, error) {
	faces, err := e.DetectFaces(ctx, data)
	if err != nil {
		if errors.Is(err, ErrImageRejected) {
			return nil, domain.ErrDecodeFailure.WithError(err)
		}
		return nil, err
	}

	idx := provider.LargestFace(faces)
	if idx < 0 {
		return nil, domain.ErrNoFaceDetected
	}

	crop, err := cropFace(data, faces[idx].BoundingBox, e.config.CropMargin)
	if err != nil {
		return nil, err
	}

	return e.describer.Extract(ctx, crop)
}

// cropFace cuts the relative bounding box (grown by margin) out of the
// encoded image and re-encodes it as JPEG.
func cropFace(data []byte, box provider.BoundingBox, margin float64) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrDecodeFailure.WithError(err)
	}

	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	x0 := (box.X - box.Width*margin) * w
	y0 := (box.Y - box.Height*margin) * h
	x1 := (box.X + box.Width*(1+margin)) * w
	y1 := (box.Y + box.Height*(1+margin)) * h

	rect := image.Rect(
		b.Min.X+int(x0), b.Min.Y+int(y0),
		b.Min.X+int(x1), b.Min.Y+int(y1),
	).Intersect(b)
	if rect.Empty() {
		return nil, domain.ErrNoFaceDetected
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encode face crop: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(v *float32) float32 {
	if v == nil {
		return 0
	}
	return *v
}

var _ provider.FaceExtractor = (*Extractor)(nil)
