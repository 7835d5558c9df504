// Package nullio provides do-nothing audio adapters.
//
// The null [Device] yields silence at real-time pace and the null [Output]
// discards everything it is asked to play while still honouring scheduling
// callbacks. They stand in for real hardware adapters in headless deployments
// and in development, where the session pipeline should run end to end
// without a sound card.
package nullio

import (
	"context"
	"sync"
	"time"

	"github.com/verbascape/verbascape/pkg/audio"
	"github.com/verbascape/verbascape/pkg/audio/capture"
	"github.com/verbascape/verbascape/pkg/audio/playback"
)

// Device is a capture device that produces silent blocks at the pace a real
// microphone would. The zero value is ready to use.
type Device struct{}

// Open starts a silence generator stream in the requested format.
func (d *Device) Open(ctx context.Context, format audio.Format, blockSize int) (capture.Stream, error) {
	if blockSize <= 0 {
		blockSize = capture.DefaultBlockSize
	}
	s := &stream{
		blocks:  make(chan capture.Block),
		done:    make(chan struct{}),
		started: time.Now(),
	}
	go s.generate(ctx, format, blockSize)
	return s, nil
}

type stream struct {
	blocks    chan capture.Block
	done      chan struct{}
	started   time.Time
	closeOnce sync.Once
}

func (s *stream) Blocks() <-chan capture.Block { return s.blocks }

// Err always returns nil; a silence generator cannot fail mid-stream.
func (s *stream) Err() error { return nil }

func (s *stream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// generate emits one silent block per block duration until the stream is
// closed or ctx is cancelled.
func (s *stream) generate(ctx context.Context, format audio.Format, blockSize int) {
	defer close(s.blocks)

	frames := blockSize / format.Channels
	interval := time.Duration(float64(frames) / float64(format.SampleRate) * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			block := capture.Block{
				Samples:   make([]float32, blockSize),
				Format:    format,
				Timestamp: time.Since(s.started),
			}
			select {
			case s.blocks <- block:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}
}

// Output discards audio but fires completion callbacks when the scheduled
// audio would have finished playing, keeping the playback timeline honest.
type Output struct {
	clock playback.Clock
}

// NewOutput creates an Output timed by clock. A nil clock selects [NewClock].
func NewOutput(clock playback.Clock) *Output {
	if clock == nil {
		clock = NewClock()
	}
	return &Output{clock: clock}
}

// PlayAt discards frame and schedules onComplete for when playback would end.
func (o *Output) PlayAt(frame audio.AudioFrame, startAt float64, onComplete func()) (playback.Voice, error) {
	end := startAt + frame.Duration().Seconds()
	delay := time.Duration((end - o.clock.Now()) * float64(time.Second))
	if delay < 0 {
		delay = 0
	}

	v := &voice{}
	v.timer = time.AfterFunc(delay, func() {
		v.mu.Lock()
		stopped := v.stopped
		v.mu.Unlock()
		if !stopped && onComplete != nil {
			onComplete()
		}
	})
	return v, nil
}

type voice struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func (v *voice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped = true
	if v.timer != nil {
		v.timer.Stop()
	}
}

// Clock is a monotonic wall clock measured from its creation.
type Clock struct {
	start time.Time
}

// NewClock creates a Clock starting at zero.
func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// Now returns seconds elapsed since the clock was created.
func (c *Clock) Now() float64 {
	return time.Since(c.start).Seconds()
}

var (
	_ capture.Device  = (*Device)(nil)
	_ capture.Stream  = (*stream)(nil)
	_ playback.Output = (*Output)(nil)
	_ playback.Clock  = (*Clock)(nil)
)
