package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameCount(t *testing.T) {
	tests := []struct {
		name          string
		n, frame, hop int
		want          int
	}{
		{"even frame", 10, 4, 3, 4},
		{"odd frame", 9, 3, 3, 3},
		{"empty signal even frame", 0, 4, 2, 1},
		{"empty signal odd frame", 0, 3, 1, 0},
		{"zero hop", 10, 4, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FrameCount(tt.n, tt.frame, tt.hop))
		})
	}
}

func TestRMS(t *testing.T) {
	t.Run("edges are zero padded", func(t *testing.T) {
		got := RMS([]float64{1, 1, 1, 1}, 2, 1)
		want := []float64{math.Sqrt(0.5), 1, 1, 1, math.Sqrt(0.5)}
		assert.InDeltaSlice(t, want, got, 1e-12)
	})

	t.Run("mean over the full frame length", func(t *testing.T) {
		got := RMS([]float64{3, 4}, 4, 2)
		assert.InDeltaSlice(t, []float64{2.5, 2.5}, got, 1e-12)
	})

	t.Run("sign does not matter", func(t *testing.T) {
		a := RMS([]float64{0.5, -0.5, 0.25, -0.25, 0.1}, 2, 2)
		b := RMS([]float64{-0.5, 0.5, -0.25, 0.25, -0.1}, 2, 2)
		assert.Equal(t, a, b)
	})

	t.Run("length matches FrameCount", func(t *testing.T) {
		y := make([]float64, 1234)
		assert.Len(t, RMS(y, 30, 10), FrameCount(len(y), 30, 10))
	})
}
