package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidNormalizeConfig is returned when normalization options are out of range.
var ErrInvalidNormalizeConfig = errors.New("audio: invalid normalize configuration")

// NormalizeOpts configures per-segment peak normalization.
type NormalizeOpts struct {
	// MaxAmplitude is the peak level a fully normalized segment reaches.
	// Default: 0.9.
	MaxAmplitude float64

	// AlphaMix blends the normalized signal (1) with the original (0).
	// Default: 0.25.
	AlphaMix float64
}

// DefaultNormalizeOpts returns the default normalization options.
func DefaultNormalizeOpts() NormalizeOpts {
	return NormalizeOpts{MaxAmplitude: 0.9, AlphaMix: 0.25}
}

// Validate checks that both values lie in [0, 1] and the peak is positive.
func (o NormalizeOpts) Validate() error {
	if o.MaxAmplitude <= 0 || o.MaxAmplitude > 1 {
		return fmt.Errorf("%w: max amplitude must be in (0, 1], got %g", ErrInvalidNormalizeConfig, o.MaxAmplitude)
	}
	if o.AlphaMix < 0 || o.AlphaMix > 1 {
		return fmt.Errorf("%w: alpha mix must be in [0, 1], got %g", ErrInvalidNormalizeConfig, o.AlphaMix)
	}
	return nil
}

// Peak returns the largest absolute sample value across all channels.
func Peak(w Waveform) float64 {
	var peak float64
	for _, ch := range w.Channels {
		for _, v := range ch {
			peak = math.Max(peak, math.Abs(v))
		}
	}
	return peak
}

// Normalize returns a scaled copy of w. Signals whose peak exceeds full
// scale are first brought back to it, then the result is
//
//	x/peak*(MaxAmplitude*AlphaMix) + (1-AlphaMix)*x
//
// A silent signal is returned unchanged.
func Normalize(w Waveform, opts NormalizeOpts) Waveform {
	peak := Peak(w)
	out := Waveform{SampleRate: w.SampleRate, Channels: make([][]float64, len(w.Channels))}

	pre := 1.0
	if peak > 1 {
		pre = 1 / peak
		peak = 1
	}
	gain := 0.0
	if peak > 0 {
		gain = opts.MaxAmplitude * opts.AlphaMix / peak
	}

	for c, ch := range w.Channels {
		dst := make([]float64, len(ch))
		for i, v := range ch {
			v *= pre
			if peak > 0 {
				v = v*gain + (1-opts.AlphaMix)*v
			}
			dst[i] = v
		}
		out.Channels[c] = dst
	}
	return out
}

// ToPCM16 quantizes w to signed 16-bit samples, truncating toward zero and
// clamping to the int16 range.
func ToPCM16(w Waveform) [][]int16 {
	out := make([][]int16, len(w.Channels))
	for c, ch := range w.Channels {
		dst := make([]int16, len(ch))
		for i, v := range ch {
			s := math.Trunc(v * math.MaxInt16)
			dst[i] = int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, s)))
		}
		out[c] = dst
	}
	return out
}
