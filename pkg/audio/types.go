package audio

import "time"

// AudioFrame represents a single frame of audio data flowing through the pipeline.
// Frames are the atomic unit of audio transport — captured from the input device,
// encoded by the codec, sent over the live session uplink, and scheduled for
// playback on arrival. A frame is immutable once produced and is owned by
// whichever stage last produced it; stages never share a frame.
type AudioFrame struct {
	// PCM audio data, little-endian signed 16-bit samples.
	Data []byte

	// SampleRate in Hz (16000 for capture, 24000 for playback).
	SampleRate int

	// Channels: 1 for mono capture and playback.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame's PCM data.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Seconds returns the duration in seconds of a PCM16 byte buffer in this format.
func (f Format) Seconds(pcmLen int) float64 {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	return float64(pcmLen/2/f.Channels) / float64(f.SampleRate)
}

// CaptureFormat is the fixed uplink format expected by the live session:
// 16 kHz mono PCM16.
var CaptureFormat = Format{SampleRate: 16000, Channels: 1}

// PlaybackFormat is the fixed downlink format produced by the live session:
// 24 kHz mono PCM16.
var PlaybackFormat = Format{SampleRate: 24000, Channels: 1}
