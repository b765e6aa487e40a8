// Package audio provides silence-based slicing of audio files.
package audio

import "context"

// SplitOpts configures the behavior of audio splitting.
type SplitOpts struct {
	// Slicer controls where the audio is cut.
	Slicer SlicerOpts

	// Normalize controls per-segment loudness normalization.
	Normalize NormalizeOpts

	// Prefix starts every output file name. Callers that write several
	// inputs to the same directory concurrently must pass distinct prefixes.
	// Default: the current Unix timestamp.
	Prefix string
}

// DefaultSplitOpts returns the default options for splitting audio at sampleRate.
func DefaultSplitOpts(sampleRate int) SplitOpts {
	return SplitOpts{
		Slicer:    DefaultSlicerOpts(sampleRate),
		Normalize: DefaultNormalizeOpts(),
	}
}

// Segment is one slice of an input file written to disk.
type Segment struct {
	// Path of the written 16-bit WAV file.
	Path string
	// Start is the first sample of the segment in the input signal.
	Start int
	// End is one past the last sample of the segment in the input signal.
	End int
	// SampleRate of the written file.
	SampleRate int
}

// Splitter defines the interface for splitting audio files at silence boundaries.
type Splitter interface {
	// Split cuts inputPath into segments at silent stretches and writes each
	// one to outputDir as <prefix>_<start>_<end>.wav, with start and end as
	// zero-padded sample offsets.
	//
	// Segments are returned in order. The caller is responsible for
	// cleaning up these files.
	Split(ctx context.Context, inputPath, outputDir string, opts SplitOpts) ([]Segment, error)
}
