package provider

import (
	"context"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

// FaceExtractor turns an encoded image into a single face descriptor.
type FaceExtractor interface {
	// Extract returns the descriptor of the largest face in the image.
	// Returns domain.ErrNoFaceDetected when the backend finds no face.
	Extract(ctx context.Context, image []byte) (domain.Descriptor, error)

	// Name identifies the backend in logs ("deepface/opencv", "rekognition", ...)
	Name() string
}

// HealthChecker is implemented by backends that depend on a remote model.
type HealthChecker interface {
	// Ping verifies the model is loaded and answers with descriptors of the
	// given dimension. Returns domain.ErrModelUnavailable otherwise.
	Ping(ctx context.Context, dimension int) error
}

// DetectedFace represents a detected face in the image
type DetectedFace struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
}

// BoundingBox represents the face area in the image
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns Width*Height in whatever unit the box is expressed in.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// LargestFace returns the index of the face with the biggest bounding box,
// or -1 for an empty slice. Ties keep the first face.
func LargestFace(faces []DetectedFace) int {
	best := -1
	for i, f := range faces {
		if best == -1 || f.BoundingBox.Area() > faces[best].BoundingBox.Area() {
			best = i
		}
	}
	return best
}
