package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verbascape/verbascape/internal/observe"
	"github.com/verbascape/verbascape/internal/session"
	"github.com/verbascape/verbascape/internal/transcript"
	"github.com/verbascape/verbascape/pkg/audio/capture"
	"github.com/verbascape/verbascape/pkg/audio/playback"
	"github.com/verbascape/verbascape/pkg/provider/live"
)

// SessionInfo holds metadata about the current session.
type SessionInfo struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	// Provider is the name of the live provider backing the session.
	Provider string

	// StartedAt is when the session was opened.
	StartedAt time.Time
}

// SessionManager manages the lifecycle of conversation sessions.
// Only one session can be live at a time; sessions are single use, so a new
// Start after a session ended creates a fresh one. All exported methods are
// safe for concurrent use.
type SessionManager struct {
	mu      sync.Mutex
	current *session.Session
	info    SessionInfo

	// Dependencies injected at construction.
	provider  live.Provider
	provName  string
	liveCfg   live.SessionConfig
	device    capture.Device
	output    playback.Output
	clock     playback.Clock
	blockSize int
	metrics   *observe.Metrics
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Provider     live.Provider
	ProviderName string
	Live         live.SessionConfig
	Device       capture.Device
	Output       playback.Output
	Clock        playback.Clock
	BlockSize    int
	Metrics      *observe.Metrics
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	return &SessionManager{
		provider:  cfg.Provider,
		provName:  cfg.ProviderName,
		liveCfg:   cfg.Live,
		device:    cfg.Device,
		output:    cfg.Output,
		clock:     cfg.Clock,
		blockSize: cfg.BlockSize,
		metrics:   cfg.Metrics,
	}
}

// Start opens a new conversation session. Returns an error if a session is
// already live or if the provider or audio device cannot be opened.
func (sm *SessionManager) Start(ctx context.Context) (SessionInfo, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.provider == nil {
		return SessionInfo{}, fmt.Errorf("app: no live provider configured")
	}
	if sm.current != nil && !terminal(sm.current.State()) {
		return SessionInfo{}, fmt.Errorf("app: a session is already active (id=%s)", sm.info.SessionID)
	}

	s := session.New(session.Config{
		Provider:     sm.provider,
		ProviderName: sm.provName,
		Live:         sm.liveCfg,
		Device:       sm.device,
		Output:       sm.output,
		Clock:        sm.clock,
		BlockSize:    sm.blockSize,
		Metrics:      sm.metrics,
	})

	if err := s.Open(ctx); err != nil {
		return SessionInfo{}, fmt.Errorf("app: open session: %w", err)
	}

	sm.current = s
	sm.info = SessionInfo{
		SessionID: s.ID(),
		Provider:  sm.provName,
		StartedAt: time.Now().UTC(),
	}

	slog.Info("session started",
		"session_id", sm.info.SessionID,
		"provider", sm.provName,
	)

	return sm.info, nil
}

// Stop closes the live session. Returns an error if no session is live.
func (sm *SessionManager) Stop(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current == nil || terminal(sm.current.State()) {
		return fmt.Errorf("app: no active session to stop")
	}

	sessionID := sm.info.SessionID
	if err := sm.current.Close(); err != nil {
		slog.Warn("session close error", "session_id", sessionID, "err", err)
	}

	slog.Info("session stopped", "session_id", sessionID)
	return nil
}

// Active reports whether a session is currently live.
func (sm *SessionManager) Active() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current != nil && !terminal(sm.current.State())
}

// Info returns metadata about the most recent session.
// Returns the zero value if no session has ever been started.
func (sm *SessionManager) Info() (SessionInfo, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == nil {
		return SessionInfo{}, false
	}
	return sm.info, true
}

// State returns the current session's state, or false if no session exists.
func (sm *SessionManager) State() (session.State, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == nil {
		return 0, false
	}
	return sm.current.State(), true
}

// Speaking reports whether tutor audio is currently live on the session's
// output. False when no session exists.
func (sm *SessionManager) Speaking() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current != nil && sm.current.Speaking()
}

// Partial returns the in-progress transcript text of both parties. Empty
// when no session exists.
func (sm *SessionManager) Partial() (user, agent string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == nil {
		return "", ""
	}
	return sm.current.Partial()
}

// Transcript returns the most recent session's finalized turn history.
// The history survives session end so the transcript endpoint can serve the
// last conversation after the learner hangs up.
func (sm *SessionManager) Transcript() ([]transcript.Turn, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == nil {
		return nil, false
	}
	return sm.current.Transcript(), true
}

// Close stops any live session. Used during application shutdown.
func (sm *SessionManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current != nil && !terminal(sm.current.State()) {
		if err := sm.current.Close(); err != nil {
			slog.Warn("session close error during shutdown", "err", err)
		}
	}
}

// terminal reports whether st is an end state.
func terminal(st session.State) bool {
	return st == session.StateClosed || st == session.StateErrored
}
