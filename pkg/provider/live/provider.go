// Package live defines the Provider interface for realtime duplex
// conversation backends.
//
// A live provider wraps a voice AI service that accepts a continuous stream of
// raw audio input and returns synthesised speech plus incremental transcripts
// in a single, stateful session. Examples include Gemini Live and the OpenAI
// Realtime API.
//
// The central abstraction is [SessionHandle]: an open bidirectional session
// whose inbound traffic — audio chunks, partial transcripts, turn boundaries,
// interruptions, errors — is delivered as tagged [SessionEvent] values on one
// ordered channel. Modelling the provider's callbacks as a single event stream
// keeps consumers to one dispatch path instead of scattered closures.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"
	"time"

	"github.com/verbascape/verbascape/pkg/audio"
)

// MIMEPCMCapture is the MIME tag attached to uplink frames: raw little-endian
// PCM16 at the capture rate.
const MIMEPCMCapture = "audio/pcm;rate=16000"

// Source identifies which party an incremental transcript fragment belongs to.
type Source int

const (
	// SourceUser is speech recognised from the user's uplink audio.
	SourceUser Source = iota

	// SourceAgent is the text form of the agent's synthesised speech.
	SourceAgent
)

// String returns the human-readable name of the source.
func (s Source) String() string {
	switch s {
	case SourceUser:
		return "user"
	case SourceAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// EventType discriminates the variants of [SessionEvent].
type EventType int

const (
	// EventOpened signals that the session handshake completed and the
	// provider is accepting audio.
	EventOpened EventType = iota

	// EventAudioChunk carries one transport-encoded PCM16 chunk of agent
	// speech at the playback rate.
	EventAudioChunk

	// EventTranscript carries an incremental transcript fragment.
	EventTranscript

	// EventTurnComplete marks the end of a user/agent exchange.
	EventTurnComplete

	// EventInterrupted signals barge-in: all pending agent audio must be
	// discarded immediately.
	EventInterrupted

	// EventError carries a session-level error. The session is dead; the
	// event channel closes after this event.
	EventError

	// EventClosed signals that the session ended cleanly.
	EventClosed
)

// String returns the human-readable name of the event type.
func (t EventType) String() string {
	switch t {
	case EventOpened:
		return "OPENED"
	case EventAudioChunk:
		return "AUDIO_CHUNK"
	case EventTranscript:
		return "TRANSCRIPT"
	case EventTurnComplete:
		return "TURN_COMPLETE"
	case EventInterrupted:
		return "INTERRUPTED"
	case EventError:
		return "ERROR"
	case EventClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// SessionEvent is one inbound event from the live session. Exactly which
// fields are populated depends on Type.
type SessionEvent struct {
	Type EventType

	// Audio is the transport-encoded PCM16 payload for EventAudioChunk.
	Audio string

	// Source and Text are set for EventTranscript.
	Source Source
	Text   string

	// Err is set for EventError.
	Err error
}

// Frame is one outbound audio unit: a raw PCM16 block plus its MIME tag.
// The provider applies the transport encoding at the wire boundary.
type Frame struct {
	MIMEType string
	Data     []byte
}

// SessionConfig is the initial configuration for a new live session.
type SessionConfig struct {
	// Voice selects the agent's synthesised voice by provider-specific name.
	Voice string

	// Instructions is the system-level prompt defining the agent's persona
	// and behaviour for the whole session.
	Instructions string
}

// Capabilities describes static properties of a live provider. The values are
// assumed constant for the lifetime of the Provider instance.
type Capabilities struct {
	// InputFormat is the PCM format the provider expects on the uplink.
	InputFormat audio.Format

	// OutputFormat is the PCM format of downlink audio chunks.
	OutputFormat audio.Format

	// MaxSessionDuration is the provider-imposed ceiling on session lifetime.
	// Zero means no documented limit.
	MaxSessionDuration time.Duration

	// Voices lists the voice names available for [SessionConfig.Voice].
	Voices []string
}

// SessionHandle represents an open live session.
//
// The session is the hot path of the audio pipeline — every method must return
// quickly. Inbound traffic is channel-based so consumers dispatch events in
// strict arrival order. All methods must be safe for concurrent use.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendFrame delivers one uplink audio frame, fire-and-forget. Returns an
	// error if the session is closed or the transport rejects the write.
	SendFrame(frame Frame) error

	// Events returns the ordered inbound event stream. The channel is closed
	// when the session ends; after it closes, call [SessionHandle.Err] to
	// check whether the session ended cleanly. Consumers must drain promptly
	// to keep downlink handling within the scheduling latency budget.
	Events() <-chan SessionEvent

	// Err returns the error that terminated the session, or nil after a
	// clean close.
	Err() error

	// Close terminates the session and releases all resources. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any realtime conversation backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Connect establishes a new live session. The returned handle is ready
	// to accept frames once EventOpened is observed; frames sent earlier may
	// be dropped by the service.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about the provider.
	Capabilities() Capabilities
}
