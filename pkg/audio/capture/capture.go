// Package capture acquires live microphone audio and feeds it to the uplink.
//
// The two abstractions are:
//
//   - [Device] — opens a live input stream on the host's audio hardware.
//   - [Stream] — delivers fixed-size blocks of normalized samples until closed.
//
// Hardware bindings (PortAudio, ALSA, browser bridges, …) implement these in
// adapter packages; the [Pipeline] in this package is the portable part: it
// pulls blocks in capture order, coerces them to the 16 kHz mono uplink format,
// quantizes to PCM16, and hands each block to a [FrameSink] exactly once. It
// holds no audio beyond the block in flight.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verbascape/verbascape/pkg/audio"
)

// DefaultBlockSize is the number of samples per capture block.
const DefaultBlockSize = 4096

// ErrDeviceUnavailable is returned (wrapped) by [Pipeline.Start] when the
// input device cannot be acquired. Session open fails as a whole in that case;
// nothing is retried automatically.
var ErrDeviceUnavailable = errors.New("capture: input device unavailable")

// Block is one fixed-size block of normalized float32 samples delivered by a
// [Stream]. Samples are frame-major interleaved when Format.Channels > 1.
type Block struct {
	Samples   []float32
	Format    audio.Format
	Timestamp time.Duration
}

// Device is the entry point for an audio input provider.
//
// Implementations must be safe for concurrent use.
type Device interface {
	// Open acquires the input device and starts a live stream delivering
	// blockSize samples per block in the device's native format (which need
	// not match format; the pipeline converts). The stream runs until
	// [Stream.Close] or ctx cancellation.
	//
	// Returns an error wrapping [ErrDeviceUnavailable] if the device cannot
	// be acquired.
	Open(ctx context.Context, format audio.Format, blockSize int) (Stream, error)
}

// Stream is a live input stream on an open device.
type Stream interface {
	// Blocks returns the channel on which capture blocks arrive in order.
	// The channel is closed when the stream ends; check Err afterwards.
	Blocks() <-chan Block

	// Err returns the error that terminated the stream, or nil after a clean
	// close.
	Err() error

	// Close releases the input device. Safe to call more than once.
	Close() error
}

// FrameSink consumes capture frames. The session uplink implements this.
type FrameSink interface {
	// SendFrame delivers one PCM16 frame. Must not block; capture is
	// latency-sensitive and the pipeline never buffers historical blocks.
	SendFrame(frame audio.AudioFrame)
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithBlockSize overrides [DefaultBlockSize].
func WithBlockSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.blockSize = n
		}
	}
}

// Pipeline runs the capture loop: device blocks → format coercion → PCM16 →
// sink, one delivery per block, in capture order.
//
// Start and Stop are safe for concurrent use; the conversion loop itself is
// single-goroutine.
type Pipeline struct {
	device    Device
	sink      FrameSink
	blockSize int

	mu      sync.Mutex
	stream  Stream
	running bool
	wg      sync.WaitGroup
}

// NewPipeline creates a capture pipeline reading from device and delivering
// converted frames to sink.
func NewPipeline(device Device, sink FrameSink, opts ...Option) *Pipeline {
	p := &Pipeline{
		device:    device,
		sink:      sink,
		blockSize: DefaultBlockSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start opens the input device and begins the capture loop. It returns an
// error wrapping [ErrDeviceUnavailable] when the device cannot be acquired,
// and an error if the pipeline is already running.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("capture: pipeline already running")
	}

	stream, err := p.device.Open(ctx, audio.CaptureFormat, p.blockSize)
	if err != nil {
		return fmt.Errorf("capture: open device: %w", err)
	}

	p.stream = stream
	p.running = true
	p.wg.Add(1)
	go p.run(stream)
	return nil
}

// run is the capture loop. It exits when the stream's block channel closes.
func (p *Pipeline) run(stream Stream) {
	defer p.wg.Done()

	conv := audio.FormatConverter{Target: audio.CaptureFormat}
	for block := range stream.Blocks() {
		frame := conv.Convert(audio.AudioFrame{
			Data:       audio.SamplesToBytes(block.Samples),
			SampleRate: block.Format.SampleRate,
			Channels:   block.Format.Channels,
			Timestamp:  block.Timestamp,
		})
		if len(frame.Data) == 0 {
			continue
		}
		p.sink.SendFrame(frame)
	}

	if err := stream.Err(); err != nil {
		slog.Warn("capture stream ended with error", "err", err)
	}
}

// Stop closes the input stream, waits for the capture loop to drain, and
// releases the device. Idempotent; returns the stream close error if any.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stream := p.stream
	p.stream = nil
	p.mu.Unlock()

	err := stream.Close()
	p.wg.Wait()
	return err
}

// Running reports whether the capture loop is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
