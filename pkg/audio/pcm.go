// Package audio provides the PCM16 codec and format conversion primitives for
// the Verbascape audio pipeline.
//
// The codec converts between three representations of the same audio:
//
//   - little-endian signed 16-bit PCM byte buffers (the wire format of the
//     live session and the unit of scheduling),
//   - normalized float32 sample buffers in [-1, 1] (the capture device and
//     playback output representation),
//   - a transport-safe base64 text encoding (what actually crosses the
//     session boundary).
//
// BytesToSamples and SamplesToBytes are exact inverses for any value
// representable in 16 bits. Out-of-range floats are clamped, not wrapped —
// wraparound produces loud full-scale noise whereas clamping merely flattens
// peaks.
package audio

import (
	"encoding/base64"
	"encoding/binary"
)

// pcmScale maps the int16 range onto [-1, 1). 32768 rather than 32767 so the
// mapping is a pure power-of-two scale and round trips exactly in float32.
const pcmScale = 32768

// BytesToSamples decodes little-endian PCM16 bytes into normalized float32
// samples. A trailing odd byte is ignored.
func BytesToSamples(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(s) / pcmScale
	}
	return out
}

// SamplesToBytes quantizes normalized float32 samples into little-endian
// PCM16 bytes. Values outside [-1, 1] are clamped before quantization.
func SamplesToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * pcmScale)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// EncodeTransport encodes raw bytes into the transport-safe text form used on
// the live session wire. The round trip through DecodeTransport is the
// identity for arbitrary byte sequences, including embedded zero bytes.
func EncodeTransport(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodeTransport decodes the transport text form back into raw bytes.
func DecodeTransport(text string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(text)
}

// Deinterleave splits frame-major interleaved samples (sample 0 of every
// channel, then sample 1 of every channel, …) into per-channel buffers.
// Trailing samples that do not fill a complete frame are dropped.
func Deinterleave(samples []float32, channels int) [][]float32 {
	if channels <= 0 {
		return nil
	}
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := range frames {
		for c := range channels {
			out[c][i] = samples[i*channels+c]
		}
	}
	return out
}

// Interleave merges per-channel sample buffers into a frame-major interleaved
// buffer. All channels must have equal length; the shortest wins otherwise.
func Interleave(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) < frames {
			frames = len(ch)
		}
	}
	out := make([]float32, frames*len(channels))
	for i := range frames {
		for c, ch := range channels {
			out[i*len(channels)+c] = ch[i]
		}
	}
	return out
}
