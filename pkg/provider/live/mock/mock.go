// Package mock provides test doubles for the live package interfaces.
//
// Use Provider to verify Connect calls and feed controlled sessions.
// Use Session to script the inbound event stream and inspect which methods
// were invoked by the session core.
//
// Example:
//
//	sess := mock.NewSession(8)
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, cfg)
//	sess.Emit(live.SessionEvent{Type: live.EventOpened})
package mock

import (
	"context"
	"sync"

	"github.com/verbascape/verbascape/pkg/provider/live"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Connect.
	Cfg live.SessionConfig
}

// Provider is a mock implementation of live.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by Connect. If nil, Connect returns
	// a new default Session with a buffered event channel.
	Session live.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ProviderCapabilities is returned by Capabilities.
	ProviderCapabilities live.Capabilities

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

// Connect records the call and returns Session, ConnectErr.
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(64), nil
}

// Capabilities returns ProviderCapabilities.
func (p *Provider) Capabilities() live.Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ProviderCapabilities
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = nil
}

// Ensure Provider implements live.Provider at compile time.
var _ live.Provider = (*Provider)(nil)

// SendFrameCall records a single invocation of Session.SendFrame.
type SendFrameCall struct {
	// Frame holds a copy of the frame passed to SendFrame.
	Frame live.Frame
}

// Session is a mock implementation of live.SessionHandle.
// Tests script the inbound stream with Emit and end it with CloseEvents.
type Session struct {
	mu sync.Mutex

	events chan live.SessionEvent
	closed bool

	// SendFrameErr, if non-nil, is returned by every SendFrame call.
	SendFrameErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// ErrVal is returned by Err.
	ErrVal error

	// SendFrameCalls records every call to SendFrame in order.
	SendFrameCalls []SendFrameCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSession creates a Session whose event channel holds buf events.
func NewSession(buf int) *Session {
	return &Session{events: make(chan live.SessionEvent, buf)}
}

// Emit places one event on the stream. Must not be called after CloseEvents.
func (s *Session) Emit(evt live.SessionEvent) {
	s.events <- evt
}

// CloseEvents ends the inbound stream. Idempotent.
func (s *Session) CloseEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// SendFrame records the call and returns SendFrameErr.
func (s *Session) SendFrame(frame live.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := live.Frame{MIMEType: frame.MIMEType, Data: make([]byte, len(frame.Data))}
	copy(cp.Data, frame.Data)
	s.SendFrameCalls = append(s.SendFrameCalls, SendFrameCall{Frame: cp})
	return s.SendFrameErr
}

// Events returns the scripted event stream.
func (s *Session) Events() <-chan live.SessionEvent { return s.events }

// Err returns ErrVal.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrVal
}

// Close records the call, ends the event stream, and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CloseCallCount++
	err := s.CloseErr
	alreadyClosed := s.closed
	s.closed = true
	s.mu.Unlock()

	if !alreadyClosed {
		close(s.events)
	}
	return err
}

// Frames returns copies of all frames passed to SendFrame. Thread-safe.
func (s *Session) Frames() []live.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]live.Frame, len(s.SendFrameCalls))
	for i, c := range s.SendFrameCalls {
		out[i] = c.Frame
	}
	return out
}

// Ensure Session implements live.SessionHandle at compile time.
var _ live.SessionHandle = (*Session)(nil)
