package domain

import (
	"fmt"
	"math"
)

// DefaultDescriptorDimension is the length of descriptors produced by the
// reference 128-d face embedding model.
const DefaultDescriptorDimension = 128

// Descriptor is a face embedding. It is never compared for equality, only
// through Euclidean distance.
type Descriptor []float32

// Validate checks the descriptor length against the expected dimension.
func (d Descriptor) Validate(dimension int) error {
	if len(d) != dimension {
		return ErrInvalidDescriptor.WithError(fmt.Errorf("got %d components, want %d", len(d), dimension))
	}
	return nil
}

// Clone returns a copy that shares no memory with d.
func (d Descriptor) Clone() Descriptor {
	if d == nil {
		return nil
	}
	out := make(Descriptor, len(d))
	copy(out, d)
	return out
}

// FromFloat64 converts a provider embedding into a Descriptor.
func FromFloat64(v []float64) Descriptor {
	out := make(Descriptor, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// Euclidean returns the L2 distance between two descriptors of equal length.
// Lower is more similar. Components are accumulated in float64.
func Euclidean(a, b Descriptor) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrInvalidDescriptor.WithError(fmt.Errorf("length mismatch %d != %d", len(a), len(b)))
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum), nil
}
