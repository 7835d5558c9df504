// Package mock provides test doubles for the capture package interfaces.
//
// Use Device to verify Open calls and feed controlled capture streams, and
// Stream.Push to inject blocks as if the hardware delivered them.
//
// Example:
//
//	stream := mock.NewStream(4)
//	dev := &mock.Device{Stream: stream}
//	pipe := capture.NewPipeline(dev, sink)
//	_ = pipe.Start(ctx)
//	stream.Push(capture.Block{Samples: samples, Format: audio.CaptureFormat})
package mock

import (
	"context"
	"sync"

	"github.com/verbascape/verbascape/pkg/audio"
	"github.com/verbascape/verbascape/pkg/audio/capture"
)

// OpenCall records a single invocation of Device.Open.
type OpenCall struct {
	// Format is the requested capture format.
	Format audio.Format
	// BlockSize is the requested samples-per-block.
	BlockSize int
}

// Device is a mock implementation of capture.Device.
type Device struct {
	mu sync.Mutex

	// Stream is returned by Open. If nil, Open returns a new unbuffered Stream.
	Stream *Stream

	// OpenErr, if non-nil, is returned as the error from Open.
	OpenErr error

	// OpenCalls records every call to Open in order.
	OpenCalls []OpenCall
}

// Open records the call and returns Stream, OpenErr.
func (d *Device) Open(_ context.Context, format audio.Format, blockSize int) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenCalls = append(d.OpenCalls, OpenCall{Format: format, BlockSize: blockSize})
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	if d.Stream == nil {
		d.Stream = NewStream(0)
	}
	return d.Stream, nil
}

// Stream is a mock implementation of capture.Stream fed by the test.
type Stream struct {
	blocks chan capture.Block

	mu     sync.Mutex
	err    error
	closed bool
}

// NewStream creates a Stream whose block channel has the given buffer depth.
func NewStream(buf int) *Stream {
	return &Stream{blocks: make(chan capture.Block, buf)}
}

// Push delivers one block to the pipeline as if captured from hardware.
// Pushing after Close panics, like the real callback would.
func (s *Stream) Push(b capture.Block) {
	s.blocks <- b
}

// SetErr records the stream error reported by Err after the channel closes.
func (s *Stream) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Blocks implements capture.Stream.
func (s *Stream) Blocks() <-chan capture.Block { return s.blocks }

// Err implements capture.Stream.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements capture.Stream. Closing twice is safe.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.blocks)
	return nil
}
