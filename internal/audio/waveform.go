package audio

import "time"

// Waveform is a decoded audio signal held in memory.
// Channels is channel-major: Channels[c][i] is sample i of channel c.
// All channels have the same length.
type Waveform struct {
	SampleRate int
	Channels   [][]float64
}

// NewMono wraps a single channel of samples.
func NewMono(samples []float64, sampleRate int) Waveform {
	return Waveform{SampleRate: sampleRate, Channels: [][]float64{samples}}
}

// Len returns the number of samples per channel.
func (w Waveform) Len() int {
	if len(w.Channels) == 0 {
		return 0
	}
	return len(w.Channels[0])
}

// NumChannels returns the number of channels.
func (w Waveform) NumChannels() int {
	return len(w.Channels)
}

// Duration returns the length of the signal in time.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(w.Len()) / float64(w.SampleRate) * float64(time.Second))
}

// Mono returns the signal averaged across channels.
// A mono waveform returns its only channel without copying.
func (w Waveform) Mono() []float64 {
	switch len(w.Channels) {
	case 0:
		return nil
	case 1:
		return w.Channels[0]
	}

	n := w.Len()
	out := make([]float64, n)
	for _, ch := range w.Channels {
		for i := 0; i < n; i++ {
			out[i] += ch[i]
		}
	}
	scale := 1 / float64(len(w.Channels))
	for i := range out {
		out[i] *= scale
	}
	return out
}

// Slice returns the samples in [begin, end) of every channel, clamped to the
// signal bounds. The returned waveform shares memory with w.
func (w Waveform) Slice(begin, end int) Waveform {
	n := w.Len()
	begin = clamp(begin, 0, n)
	end = clamp(end, begin, n)

	channels := make([][]float64, len(w.Channels))
	for c, ch := range w.Channels {
		channels[c] = ch[begin:end]
	}
	return Waveform{SampleRate: w.SampleRate, Channels: channels}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
