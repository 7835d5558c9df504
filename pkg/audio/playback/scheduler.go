// Package playback implements gapless scheduling of downlink audio chunks.
//
// The live session delivers the tutor's speech as a stream of transport-encoded
// PCM16 chunks. The [Scheduler] maintains a monotonically advancing "next
// start" timeline so consecutive chunks play back-to-back with no gaps or
// overlaps, tracks every currently sounding chunk, and exposes a hard-stop for
// barge-in. It is written against the [Clock] and [Output] interfaces so the
// core algorithm is testable without an audio device; hardware adapters live in
// their own packages, mirroring the capture side.
package playback

import (
	"fmt"
	"sync"

	"github.com/verbascape/verbascape/pkg/audio"
)

// Clock reports the audio output device's monotonic time in seconds. Scheduled
// start times share this clock.
type Clock interface {
	Now() float64
}

// Output schedules decoded PCM buffers on the audio device.
//
// Implementations must be safe for concurrent use.
type Output interface {
	// PlayAt schedules frame to begin playing at startAt (device clock
	// seconds, never in the past) and invokes onComplete exactly once when
	// playback finishes naturally. Stopping the returned [Voice] suppresses
	// the completion callback.
	PlayAt(frame audio.AudioFrame, startAt float64, onComplete func()) (Voice, error)
}

// Voice is one sounding buffer on the output device.
type Voice interface {
	// Stop halts playback immediately, discarding any remaining audio.
	// Stopping an already-finished voice is a no-op.
	Stop()
}

// Handle represents one scheduled downlink chunk: its start time on the device
// clock, its duration, and the voice playing it. Handles live in the
// scheduler's live set from scheduling until natural completion or a flush.
type Handle struct {
	Start    float64
	Duration float64

	voice Voice
}

// End returns the device-clock time at which the handle's audio ends.
func (h *Handle) End() float64 { return h.Start + h.Duration }

// Scheduler owns the downlink playback timeline.
//
// Chunks are expected to arrive from a single ordered event stream; the
// internal mutex only guards against completion callbacks racing that stream.
type Scheduler struct {
	out    Output
	clock  Clock
	format audio.Format

	mu        sync.Mutex
	nextStart float64 // 0 means unset: next chunk schedules at clock-now
	live      map[*Handle]struct{}

	onSpeaking func(bool)
}

// NewScheduler creates a Scheduler that plays chunks in format (normally
// [audio.PlaybackFormat]) on out, timed by clock.
func NewScheduler(out Output, clock Clock, format audio.Format) *Scheduler {
	return &Scheduler{
		out:    out,
		clock:  clock,
		format: format,
		live:   make(map[*Handle]struct{}),
	}
}

// OnSpeakingChange registers cb to be invoked whenever the speaking signal
// flips: true when the live set becomes non-empty, false when it empties.
// Only one callback may be registered; subsequent calls replace it. The
// callback must not call back into the Scheduler.
func (s *Scheduler) OnSpeakingChange(cb func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSpeaking = cb
}

// OnChunk decodes one transport-encoded PCM16 chunk and schedules it at
// max(nextStartTime, clock-now), guaranteeing the chunk neither starts in the
// past nor overlaps the previous chunk. It returns the created [Handle].
//
// A malformed payload is dropped without touching the timeline; the returned
// error wraps the decode failure so the caller can log and carry on.
func (s *Scheduler) OnChunk(transport string) (*Handle, error) {
	pcm, err := audio.DecodeTransport(transport)
	if err != nil {
		return nil, fmt.Errorf("playback: decode chunk: %w", err)
	}
	if len(pcm) == 0 || len(pcm)%2 != 0 {
		return nil, fmt.Errorf("playback: malformed PCM payload of %d bytes", len(pcm))
	}

	frame := audio.AudioFrame{
		Data:       pcm,
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
	}

	s.mu.Lock()
	startAt := s.clock.Now()
	if s.nextStart > startAt {
		startAt = s.nextStart
	}

	h := &Handle{Start: startAt, Duration: s.format.Seconds(len(pcm))}
	voice, err := s.out.PlayAt(frame, startAt, func() { s.complete(h) })
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("playback: schedule chunk: %w", err)
	}
	h.voice = voice

	wasSilent := len(s.live) == 0
	s.live[h] = struct{}{}
	s.nextStart = h.End()
	cb := s.onSpeaking
	s.mu.Unlock()

	if wasSilent && cb != nil {
		cb(true)
	}
	return h, nil
}

// OnInterrupt hard-stops every live handle, discarding all buffered audio,
// and unsets the timeline so the next chunk schedules purely from clock-now.
// Idempotent: with an empty live set it is a no-op.
func (s *Scheduler) OnInterrupt() {
	s.mu.Lock()
	stopped := make([]*Handle, 0, len(s.live))
	for h := range s.live {
		stopped = append(stopped, h)
	}
	clear(s.live)
	hadLive := len(stopped) > 0
	s.nextStart = 0
	cb := s.onSpeaking
	s.mu.Unlock()

	for _, h := range stopped {
		h.voice.Stop()
	}
	if hadLive && cb != nil {
		cb(false)
	}
}

// complete removes h from the live set after natural completion. A handle
// already evicted by OnInterrupt is ignored, so a late device callback cannot
// corrupt the speaking signal.
func (s *Scheduler) complete(h *Handle) {
	s.mu.Lock()
	if _, ok := s.live[h]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.live, h)
	silent := len(s.live) == 0
	cb := s.onSpeaking
	s.mu.Unlock()

	if silent && cb != nil {
		cb(false)
	}
}

// Speaking reports whether any downlink audio is currently live. Derivable at
// any time without polling device state.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live) > 0
}

// LiveCount returns the number of currently sounding chunks.
func (s *Scheduler) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// NextStart returns the earliest device-clock time the next chunk may begin,
// or 0 when the timeline is unset (after a flush or before the first chunk).
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}
