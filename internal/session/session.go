// Package session owns the lifecycle of one duplex tutoring conversation.
//
// A [Session] ties together the capture pipeline, the uplink, the playback
// scheduler, and the transcript aggregator around a single live provider
// connection. All inbound provider events flow through one ordered event loop;
// the loop is the only writer of the aggregator and the scheduler timeline,
// so no state is shared across asynchronous callback boundaries.
//
// Sessions are single-use: after Closed or Errored, a new Session must be
// constructed. There is no implicit reconnect.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/verbascape/verbascape/internal/observe"
	"github.com/verbascape/verbascape/internal/transcript"
	"github.com/verbascape/verbascape/pkg/audio"
	"github.com/verbascape/verbascape/pkg/audio/capture"
	"github.com/verbascape/verbascape/pkg/audio/playback"
	"github.com/verbascape/verbascape/pkg/provider/live"
)

// ErrAlreadyStarted is returned by Open on a session that left the Idle state.
var ErrAlreadyStarted = errors.New("session: already started")

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateOpening
	StateActive
	StateClosing
	StateClosed
	StateErrored
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Config collects the collaborators of a Session.
type Config struct {
	// Provider opens the live conversation.
	Provider live.Provider

	// ProviderName tags metrics and logs, e.g. "gemini-live".
	ProviderName string

	// Live is the provider session configuration (voice, instructions).
	Live live.SessionConfig

	// Device is the audio input device.
	Device capture.Device

	// Output plays scheduled downlink audio.
	Output playback.Output

	// Clock is the output device's monotonic clock.
	Clock playback.Clock

	// BlockSize overrides the capture block size when non-zero.
	BlockSize int

	// Metrics receives domain instruments. Nil disables recording.
	Metrics *observe.Metrics
}

// Session is one duplex tutoring conversation.
type Session struct {
	id       string
	provider live.Provider
	provName string
	liveCfg  live.SessionConfig
	metrics  *observe.Metrics

	uplink   *Uplink
	pipeline *capture.Pipeline
	sched    *playback.Scheduler
	agg      *transcript.Aggregator

	mu       sync.Mutex
	state    State
	errVal   error
	handle   live.SessionHandle
	openedAt time.Time

	wg      sync.WaitGroup
	endOnce sync.Once
}

// New assembles an Idle session from cfg.
func New(cfg Config) *Session {
	s := &Session{
		id:       uuid.NewString(),
		provider: cfg.Provider,
		provName: cfg.ProviderName,
		liveCfg:  cfg.Live,
		metrics:  cfg.Metrics,
		agg:      transcript.New(),
	}
	s.uplink = NewUplink(cfg.Metrics)
	s.sched = playback.NewScheduler(cfg.Output, cfg.Clock, audio.PlaybackFormat)

	var opts []capture.Option
	if cfg.BlockSize > 0 {
		opts = append(opts, capture.WithBlockSize(cfg.BlockSize))
	}
	s.pipeline = capture.NewPipeline(cfg.Device, s.uplink, opts...)

	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session to Errored, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// Speaking reports whether agent audio is currently live on the output.
func (s *Session) Speaking() bool { return s.sched.Speaking() }

// Transcript returns the finalized turn history, oldest first.
func (s *Session) Transcript() []transcript.Turn { return s.agg.History() }

// Partial returns the in-progress, not yet finalized transcript text of both
// parties.
func (s *Session) Partial() (user, agent string) { return s.agg.InProgress() }

// Open dials the provider and acquires the input device, moving the session
// from Idle to Opening. The session becomes Active when the provider
// acknowledges the connection; until then, captured frames are dropped.
//
// A device acquisition failure fails the whole open: the provider connection
// is torn down, the session ends Errored, and the returned error wraps
// [capture.ErrDeviceUnavailable].
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateOpening
	s.mu.Unlock()

	handle, err := s.provider.Connect(ctx, s.liveCfg)
	if err != nil {
		err = fmt.Errorf("session: connect: %w", err)
		s.fail(err)
		return err
	}

	if err := s.pipeline.Start(ctx); err != nil {
		_ = handle.Close()
		err = fmt.Errorf("session: %w", err)
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.handle = handle
	s.openedAt = time.Now()
	s.mu.Unlock()
	s.uplink.Bind(handle)

	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, 1)
	}

	s.wg.Add(1)
	go s.eventLoop(handle)

	return nil
}

// Close stops capture, flushes playback, and closes the provider connection.
// Idempotent; closing an Idle session just moves it to Closed.
func (s *Session) Close() error {
	s.mu.Lock()
	switch s.state {
	case StateClosed, StateErrored, StateClosing:
		s.mu.Unlock()
		return nil
	case StateIdle:
		s.state = StateClosed
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	handle := s.handle
	s.mu.Unlock()

	s.uplink.Deactivate()
	_ = s.pipeline.Stop()
	s.sched.OnInterrupt()

	if handle != nil {
		_ = handle.Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	if s.state == StateClosing {
		s.state = StateClosed
	}
	s.mu.Unlock()

	s.finish(StateClosed)
	return nil
}

// eventLoop is the single ordered consumer of the provider's inbound stream.
func (s *Session) eventLoop(handle live.SessionHandle) {
	defer s.wg.Done()

	log := slog.With("session_id", s.id, "provider", s.provName)
	ctx := context.Background()

	for evt := range handle.Events() {
		switch evt.Type {
		case live.EventOpened:
			s.mu.Lock()
			if s.state == StateOpening {
				s.state = StateActive
			}
			s.mu.Unlock()
			s.uplink.Activate()
			log.Info("session active")

		case live.EventAudioChunk:
			prevNext := s.sched.NextStart()
			h, err := s.sched.OnChunk(evt.Audio)
			if err != nil {
				// One malformed chunk does not tear down the session.
				log.Warn("dropped malformed audio chunk", "error", err)
				if s.metrics != nil {
					s.metrics.RecordDecodeError(ctx)
				}
				continue
			}
			if s.metrics != nil {
				gap := 0.0
				if prevNext > 0 && h.Start > prevNext {
					gap = h.Start - prevNext
				}
				s.metrics.RecordChunkScheduled(ctx, gap)
			}

		case live.EventTranscript:
			s.agg.Append(evt.Source, evt.Text)

		case live.EventTurnComplete:
			s.agg.CompleteTurn()
			if s.metrics != nil {
				s.metrics.RecordTurn(ctx, s.provName)
			}

		case live.EventInterrupted:
			s.sched.OnInterrupt()
			if s.metrics != nil {
				s.metrics.RecordBargeIn(ctx)
			}
			log.Debug("barge-in: playback flushed")

		case live.EventError:
			log.Error("transport error", "error", evt.Err)
			s.fail(fmt.Errorf("session: transport: %w", evt.Err))
			return

		case live.EventClosed:
			s.remoteClosed()
			return
		}
	}

	// Stream ended without a terminal event.
	if err := handle.Err(); err != nil {
		s.fail(fmt.Errorf("session: transport: %w", err))
		return
	}
	s.remoteClosed()
}

// fail moves the session to Errored and releases capture and playback.
// Sessions already Closing or terminal keep their state.
func (s *Session) fail(err error) {
	s.mu.Lock()
	switch s.state {
	case StateClosing, StateClosed, StateErrored:
		s.mu.Unlock()
		return
	}
	s.state = StateErrored
	if s.errVal == nil {
		s.errVal = err
	}
	handle := s.handle
	s.mu.Unlock()

	s.uplink.Deactivate()
	_ = s.pipeline.Stop()
	s.sched.OnInterrupt()
	if handle != nil {
		_ = handle.Close()
	}

	s.finish(StateErrored)
}

// remoteClosed handles the provider ending the stream cleanly.
func (s *Session) remoteClosed() {
	s.mu.Lock()
	switch s.state {
	case StateClosed, StateErrored:
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.uplink.Deactivate()
	_ = s.pipeline.Stop()
	s.sched.OnInterrupt()

	s.finish(StateClosed)
}

// finish records end-of-session metrics exactly once.
func (s *Session) finish(terminal State) {
	s.endOnce.Do(func() {
		if s.metrics == nil {
			return
		}
		ctx := context.Background()
		s.mu.Lock()
		opened := s.openedAt
		s.mu.Unlock()
		if !opened.IsZero() {
			s.metrics.ActiveSessions.Add(ctx, -1)
			s.metrics.RecordSessionEnd(ctx, time.Since(opened).Seconds(), terminal.String())
		}
	})
}
