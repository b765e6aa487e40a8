package audio

import "math"

// FrameCount returns how many analysis frames RMS produces for a signal of
// n samples.
func FrameCount(n, frameLength, hopLength int) int {
	padded := n + 2*(frameLength/2)
	if frameLength <= 0 || hopLength <= 0 || padded < frameLength {
		return 0
	}
	return 1 + (padded-frameLength)/hopLength
}

// RMS computes the root-mean-square loudness of y over frames of
// frameLength samples taken every hopLength samples. The signal is
// zero-padded by frameLength/2 on both sides, so frame k is centred on
// sample k*hopLength.
func RMS(y []float64, frameLength, hopLength int) []float64 {
	frames := FrameCount(len(y), frameLength, hopLength)
	out := make([]float64, frames)
	pad := frameLength / 2

	for k := 0; k < frames; k++ {
		// Frame covers padded[k*hop : k*hop+frameLength]; shift back into y.
		start := k*hopLength - pad
		end := start + frameLength
		lo := max(start, 0)
		hi := min(end, len(y))

		var power float64
		for i := lo; i < hi; i++ {
			power += y[i] * y[i]
		}
		out[k] = math.Sqrt(power / float64(frameLength))
	}
	return out
}
