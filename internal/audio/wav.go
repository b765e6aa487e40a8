package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Static errors for WAV handling.
var (
	// ErrInvalidWAV is returned when the input is not a readable PCM WAV stream.
	ErrInvalidWAV = errors.New("audio: invalid WAV data")
	// ErrUnsupportedFormat is returned for non-PCM encodings or bit depths.
	ErrUnsupportedFormat = errors.New("audio: unsupported WAV format")
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// DecodeWAV reads a PCM WAV stream into a waveform scaled to [-1, 1).
func DecodeWAV(r io.ReadSeeker) (Waveform, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Waveform{}, ErrInvalidWAV
	}

	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return Waveform{}, fmt.Errorf("%w: audio format %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}
	numChans := int(d.NumChans)
	if numChans == 0 {
		return Waveform{}, fmt.Errorf("%w: no channels", ErrInvalidWAV)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	var offset, scale float64
	switch d.BitDepth {
	case 8:
		// 8-bit WAV samples are unsigned.
		offset, scale = 128, 128
	case 16, 24, 32:
		scale = float64(int64(1) << (d.BitDepth - 1))
	default:
		return Waveform{}, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, d.BitDepth)
	}

	frames := len(buf.Data) / numChans
	channels := make([][]float64, numChans)
	for c := range channels {
		channels[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < numChans; c++ {
			channels[c][i] = (float64(buf.Data[i*numChans+c]) - offset) / scale
		}
	}

	return Waveform{SampleRate: int(d.SampleRate), Channels: channels}, nil
}

// EncodeWAV writes 16-bit PCM samples, given channel-major, as a WAV stream.
func EncodeWAV(w io.WriteSeeker, pcm [][]int16, sampleRate int) error {
	if len(pcm) == 0 {
		return errors.New("audio: cannot encode zero channels")
	}
	if sampleRate <= 0 {
		return fmt.Errorf("audio: sample rate must be positive, got %d", sampleRate)
	}

	numChans := len(pcm)
	frames := len(pcm[0])
	data := make([]int, frames*numChans)
	for c, ch := range pcm {
		if len(ch) != frames {
			return fmt.Errorf("audio: channel %d has %d samples, want %d", c, len(ch), frames)
		}
		for i, v := range ch {
			data[i*numChans+c] = int(v)
		}
	}

	enc := wav.NewEncoder(w, sampleRate, 16, numChans, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: numChans},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
