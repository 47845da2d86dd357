// Package live defines the Provider interface for real-time conversational
// audio backends.
//
// A live provider wraps a speech-to-speech voice AI service that accepts raw
// audio input and returns synthesised audio output in a single, stateful
// session. The central abstraction is Session: a bidirectional, multiplexed
// channel that carries audio, interruption signals, transcripts, and tool
// calls concurrently.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"
	"time"
)

// ToolCallHandler is a callback invoked by the session whenever the model
// requests a tool call. The handler receives the tool name and a JSON-encoded
// arguments string and must return either a result string (injected back into
// the session as tool output) or an error.
//
// The handler may be called from the session's internal receive goroutine —
// implementors must not call blocking session methods from within the handler
// to avoid deadlocks.
type ToolCallHandler func(name string, args string) (string, error)

// ToolDefinition describes a tool offered to the model at session setup.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is a JSON Schema object describing the tool's arguments.
	Parameters map[string]any
}

// Transcript is a recognised piece of speech from either side of the
// conversation.
type Transcript struct {
	// Role is "user" for recognised caller speech and "model" for the
	// assistant's spoken output.
	Role      string
	Text      string
	Timestamp time.Time
}

// SessionConfig is the initial configuration for a new live session.
type SessionConfig struct {
	// Instructions is the system-level prompt grounding the conversation,
	// typically built from the organization directory.
	Instructions string

	// Voice selects the prebuilt voice for synthesised speech output.
	Voice string

	// Tools is the set of tool definitions offered to the model. Tool calls
	// are surfaced via the handler set with OnToolCall.
	Tools []ToolDefinition
}

// Capabilities describes static properties of a live provider.
type Capabilities struct {
	// ContextWindow is the maximum token count the model can maintain across
	// the session.
	ContextWindow int

	// MaxSessionDuration is the provider's hard upper bound on session
	// lifetime. Zero means no documented limit.
	MaxSessionDuration time.Duration

	// Voices lists the prebuilt voice names available for this provider.
	Voices []string
}

// Session represents an open full-duplex voice session.
//
// The session is the hot path of the voice pipeline — every method must
// return quickly. Audio I/O is channel-based to avoid blocking the caller's
// audio goroutines. All methods must be safe for concurrent use.
//
// Callers must call Close when the session is no longer needed.
type Session interface {
	// SendAudio delivers a raw PCM chunk (16 kHz, s16le, mono) to the model.
	// A send failure does not necessarily end the session; callers may treat
	// it as transient and continue with subsequent chunks.
	SendAudio(chunk []byte) error

	// Audio returns a read-only channel emitting raw PCM chunks (24 kHz,
	// s16le, mono) as the model speaks. The channel is closed when the
	// session ends, whether by Close, remote close, or a fatal error. After
	// it closes, call Err to check whether the session ended cleanly.
	// Consumers must drain this channel promptly.
	Audio() <-chan []byte

	// Interruptions returns a read-only channel that signals each time the
	// model's response is cut off by new user speech (barge-in). Consumers
	// should stop any pending playback on receipt. Signals may coalesce if
	// the consumer is slow. Closed when the session ends.
	Interruptions() <-chan struct{}

	// Transcripts returns a read-only channel emitting recognised text for
	// both user speech and model output. Closed when the session ends.
	Transcripts() <-chan Transcript

	// OnToolCall registers the handler invoked when the model requests a tool
	// call. Only one handler is active at a time; calling OnToolCall again
	// replaces it. Passing nil clears the handler.
	OnToolCall(handler ToolCallHandler)

	// OnError registers a callback for non-fatal error events reported by the
	// provider mid-session.
	OnError(handler func(error))

	// Err returns the error that caused the Audio channel to close
	// prematurely, or nil if the session ended cleanly.
	Err() error

	// Close terminates the session, releases all resources, and closes the
	// Audio, Interruptions, and Transcripts channels. Calling Close more than
	// once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any live voice backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Connect establishes a new live session with the given configuration.
	// The returned Session is ready to accept audio immediately. The caller
	// owns the Session and is responsible for calling Close.
	Connect(ctx context.Context, cfg SessionConfig) (Session, error)

	// Capabilities returns static metadata about this provider's model.
	Capabilities() Capabilities
}
