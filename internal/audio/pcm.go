// Package audio plays announcer clips and background music as raw PCM.
//
// Output is interleaved stereo signed 16-bit little-endian at SampleRate,
// written in fixed frames to any io.Writer (an ffmpeg pipe or a file).
package audio

import (
	"encoding/binary"
	"errors"

	"github.com/gopxl/beep"
)

// Output format
const (
	SampleRate    = beep.SampleRate(44100)
	Channels      = 2
	BytesPerFrame = Channels * 2
)

// ErrPipeClosed is reported when the output writer fails
var ErrPipeClosed = errors.New("audio output closed")

// Format is the beep format every source is converted to
var Format = beep.Format{SampleRate: SampleRate, NumChannels: Channels, Precision: 2}

// floatToInt16 converts a sample in -1..1 to int16 with soft clipping above
// ±30000 to leave mixing headroom
func floatToInt16(sample float64) int16 {
	scaled := sample * 32767.0

	if scaled > 30000 {
		scaled = 30000 + (scaled-30000)/4
	} else if scaled < -30000 {
		scaled = -30000 + (scaled+30000)/4
	}

	if scaled > 32767 {
		scaled = 32767
	} else if scaled < -32768 {
		scaled = -32768
	}
	return int16(scaled)
}

// encodeS16LE writes stereo samples into out, which must hold
// len(samples)*BytesPerFrame bytes
func encodeS16LE(samples [][2]float64, out []byte) {
	for i, s := range samples {
		idx := i * BytesPerFrame
		binary.LittleEndian.PutUint16(out[idx:], uint16(floatToInt16(s[0])))
		binary.LittleEndian.PutUint16(out[idx+2:], uint16(floatToInt16(s[1])))
	}
}

// toFormat resamples a decoded source to SampleRate when needed
func toFormat(s beep.Streamer, f beep.Format) beep.Streamer {
	if f.SampleRate == SampleRate {
		return s
	}
	return beep.Resample(4, f.SampleRate, SampleRate, s)
}
