package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLargestFace(t *testing.T) {
	box := func(w, h float64) DetectedFace {
		return DetectedFace{BoundingBox: BoundingBox{Width: w, Height: h}}
	}

	tests := []struct {
		name  string
		faces []DetectedFace
		want  int
	}{
		{name: "empty", faces: nil, want: -1},
		{name: "single", faces: []DetectedFace{box(10, 10)}, want: 0},
		{name: "largest last", faces: []DetectedFace{box(10, 10), box(5, 5), box(20, 20)}, want: 2},
		{name: "tie keeps first", faces: []DetectedFace{box(4, 5), box(5, 4)}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LargestFace(tt.faces))
		})
	}
}
