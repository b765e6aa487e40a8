package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSlicerConfig is returned by NewSlicer when the options violate
// min_length >= min_interval >= hop_size or max_sil_kept >= hop_size.
var ErrInvalidSlicerConfig = errors.New("audio: invalid slicer configuration")

// SlicerOpts configures silence-based slicing. Durations are in milliseconds.
type SlicerOpts struct {
	// SampleRate of the signals that will be sliced, in Hz.
	SampleRate int

	// ThresholdDB is the RMS level in dBFS below which a frame is silent.
	// Default: -40.
	ThresholdDB float64

	// MinLengthMs is the minimum length of a kept segment. A segment that
	// would be shorter keeps absorbing the following material.
	// Default: 5000.
	MinLengthMs int

	// MinIntervalMs is the minimum silence length considered as a cut point.
	// Default: 300.
	MinIntervalMs int

	// HopSizeMs is the stride of the loudness analysis.
	// Default: 20.
	HopSizeMs int

	// MaxSilKeptMs is the longest silence retained around a cut.
	// Default: 5000.
	MaxSilKeptMs int
}

// DefaultSlicerOpts returns the default slicing options for sampleRate.
func DefaultSlicerOpts(sampleRate int) SlicerOpts {
	return SlicerOpts{
		SampleRate:    sampleRate,
		ThresholdDB:   -40,
		MinLengthMs:   5000,
		MinIntervalMs: 300,
		HopSizeMs:     20,
		MaxSilKeptMs:  5000,
	}
}

// Chunk is one slice of the input signal. Start and End are sample offsets
// into the original signal, End exclusive.
type Chunk struct {
	Audio Waveform
	Start int
	End   int
}

// Slicer cuts a signal into segments at silent stretches. It holds only
// its derived configuration, so one Slicer may be shared between goroutines.
type Slicer struct {
	threshold   float64 // linear RMS
	hopSize     int     // samples
	winSize     int     // samples
	minLength   int     // frames
	minInterval int     // frames
	maxSilKept  int     // frames
}

// NewSlicer validates opts and converts them to frame units.
func NewSlicer(opts SlicerOpts) (*Slicer, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidSlicerConfig, opts.SampleRate)
	}
	if opts.HopSizeMs <= 0 {
		return nil, fmt.Errorf("%w: hop size must be positive, got %d ms", ErrInvalidSlicerConfig, opts.HopSizeMs)
	}
	if !(opts.MinLengthMs >= opts.MinIntervalMs && opts.MinIntervalMs >= opts.HopSizeMs) {
		return nil, fmt.Errorf("%w: min_length (%d) >= min_interval (%d) >= hop_size (%d) must hold",
			ErrInvalidSlicerConfig, opts.MinLengthMs, opts.MinIntervalMs, opts.HopSizeMs)
	}
	if opts.MaxSilKeptMs < opts.HopSizeMs {
		return nil, fmt.Errorf("%w: max_sil_kept (%d) >= hop_size (%d) must hold",
			ErrInvalidSlicerConfig, opts.MaxSilKeptMs, opts.HopSizeMs)
	}

	sr := float64(opts.SampleRate)
	hop := round(sr * float64(opts.HopSizeMs) / 1000)
	if hop <= 0 {
		return nil, fmt.Errorf("%w: hop size of %d ms is below one sample at %d Hz",
			ErrInvalidSlicerConfig, opts.HopSizeMs, opts.SampleRate)
	}
	minInterval := sr * float64(opts.MinIntervalMs) / 1000

	return &Slicer{
		threshold:   math.Pow(10, opts.ThresholdDB/20),
		hopSize:     hop,
		winSize:     min(round(minInterval), 4*hop),
		minLength:   round(sr * float64(opts.MinLengthMs) / 1000 / float64(hop)),
		minInterval: round(minInterval / float64(hop)),
		maxSilKept:  round(sr * float64(opts.MaxSilKeptMs) / 1000 / float64(hop)),
	}, nil
}

// HopSize returns the analysis stride in samples.
func (s *Slicer) HopSize() int { return s.hopSize }

// WindowSize returns the RMS frame length in samples.
func (s *Slicer) WindowSize() int { return s.winSize }

// Slice splits w into chunks separated by trimmed silence. Chunks are
// returned in order; together with the trimmed gaps they cover every
// sample of w exactly once.
func (s *Slicer) Slice(w Waveform) []Chunk {
	samples := w.Mono()
	totalFrames := FrameCount(len(samples), s.winSize, s.hopSize)
	if totalFrames <= s.minLength {
		return []Chunk{{Audio: w, Start: 0, End: w.Len()}}
	}

	rms := RMS(samples, s.winSize, s.hopSize)
	return s.applyTags(w, s.silenceTags(rms), len(rms))
}

// silenceTag is a range of frames removed from the output. start == end
// marks a cut at a single frame. An end beyond the curve means the tag runs
// to the end of the signal.
type silenceTag struct {
	start int
	end   int
}

const noSilence = -1

// scanState is the state of the single pass over the loudness curve.
type scanState struct {
	silenceStart int // first frame of the open silence run, or noSilence
	clipStart    int // right edge of the last emitted tag
	tags         []silenceTag
}

func (s *Slicer) silenceTags(rms []float64) []silenceTag {
	st := scanState{silenceStart: noSilence}

	for i, level := range rms {
		if level < s.threshold {
			if st.silenceStart == noSilence {
				st.silenceStart = i
			}
			continue
		}
		if st.silenceStart == noSilence {
			continue
		}

		// A silence run ends at i.
		leading := st.silenceStart == 0 && i > s.maxSilKept
		needCut := i-st.silenceStart >= s.minInterval && i-st.clipStart >= s.minLength
		if !leading && !needCut {
			st.silenceStart = noSilence
			continue
		}

		tag := s.trim(rms, st.silenceStart, i)
		st.tags = append(st.tags, tag)
		st.clipStart = tag.end
		st.silenceStart = noSilence
	}

	total := len(rms)
	if st.silenceStart != noSilence && total-st.silenceStart >= s.minInterval {
		silenceEnd := min(total, st.silenceStart+s.maxSilKept)
		pos := argmin(rms, st.silenceStart, silenceEnd+1)
		st.tags = append(st.tags, silenceTag{start: pos, end: total + 1})
	}

	return st.tags
}

// trim picks the part of the silence run [start, i) to cut so that at most
// maxSilKept frames of it survive on either side of the cut.
func (s *Slicer) trim(rms []float64, start, i int) silenceTag {
	keep := s.maxSilKept
	runLen := i - start

	if runLen <= keep {
		pos := argmin(rms, start, i+1)
		if start == 0 {
			return silenceTag{start: 0, end: pos}
		}
		return silenceTag{start: pos, end: pos}
	}

	posL := argmin(rms, start, start+keep+1)
	posR := argmin(rms, i-keep, i+1)
	if start == 0 {
		return silenceTag{start: 0, end: posR}
	}

	if runLen <= 2*keep {
		pos := argmin(rms, i-keep, start+keep+1)
		return silenceTag{start: min(posL, pos), end: max(posR, pos)}
	}
	return silenceTag{start: posL, end: posR}
}

func (s *Slicer) applyTags(w Waveform, tags []silenceTag, totalFrames int) []Chunk {
	if len(tags) == 0 {
		return []Chunk{s.chunk(w, 0, totalFrames)}
	}

	chunks := make([]Chunk, 0, len(tags)+1)
	if tags[0].start > 0 {
		chunks = append(chunks, s.chunk(w, 0, tags[0].start))
	}
	for k := 0; k < len(tags)-1; k++ {
		chunks = append(chunks, s.chunk(w, tags[k].end, tags[k+1].start))
	}
	if last := tags[len(tags)-1]; last.end < totalFrames {
		chunks = append(chunks, s.chunk(w, last.end, totalFrames))
	}
	return chunks
}

// chunk converts the frame range [begin, end) to samples, clamped to w.
func (s *Slicer) chunk(w Waveform, begin, end int) Chunk {
	n := w.Len()
	start := min(begin*s.hopSize, n)
	stop := clamp(end*s.hopSize, start, n)
	return Chunk{Audio: w.Slice(start, stop), Start: start, End: stop}
}

// argmin returns the index of the first minimum of rms[lo:hi], with hi
// clamped to the curve length.
func argmin(rms []float64, lo, hi int) int {
	hi = min(hi, len(rms))
	best := lo
	for i := lo + 1; i < hi; i++ {
		if rms[i] < rms[best] {
			best = i
		}
	}
	return best
}

// round rounds half to even.
func round(x float64) int {
	return int(math.RoundToEven(x))
}
