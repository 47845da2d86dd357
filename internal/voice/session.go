// Package voice implements the live voice session: a full-duplex audio
// conversation between the local microphone/speaker and a remote
// conversational endpoint, grounded in the organization directory.
//
// A Session owns the whole pipeline for one conversation: microphone capture,
// outbound PCM encoding, the provider session, inbound decoding, gapless
// playback scheduling, and barge-in handling. It moves through three states:
//
//	Idle → Connecting → Streaming → Idle
//
// Connect performs all setup before reporting success; any failure unwinds
// fully back to Idle with no partial resources and no status report.
// Disconnect is idempotent and reports the disconnected status exactly once
// per active session, whether teardown was initiated locally or by the
// remote side.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opora-ua/opora/internal/directory"
	"github.com/opora-ua/opora/internal/observe"
	"github.com/opora-ua/opora/pkg/audio"
	"github.com/opora-ua/opora/pkg/audio/capture"
	"github.com/opora-ua/opora/pkg/audio/playout"
	"github.com/opora-ua/opora/pkg/provider/live"
)

// ErrSessionActive is returned by Connect while a session is already
// connecting or streaming.
var ErrSessionActive = errors.New("voice: session already active")

// State is the lifecycle state of a [Session].
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// OrganizationLister supplies the directory snapshot used to ground the
// session's instructions at connect time.
type OrganizationLister interface {
	List(ctx context.Context) ([]directory.Organization, error)
}

// ToolHost supplies tool definitions for session setup and executes tool
// calls requested by the model mid-conversation.
type ToolHost interface {
	Definitions() []live.ToolDefinition
	Execute(ctx context.Context, name, args string) (string, error)
}

// Config assembles the collaborators of a [Session].
type Config struct {
	// Provider opens the remote conversational session. Required.
	Provider live.Provider

	// Directory supplies the organization snapshot. Required.
	Directory OrganizationLister

	// NewSource opens the microphone stream for one session. Required.
	NewSource func() (capture.Source, error)

	// NewSink opens the playback device for one session. Required.
	NewSink func() (playout.Sink, error)

	// Tools is the optional tool host offered to the model.
	Tools ToolHost

	// Voice selects the provider's prebuilt voice. Optional.
	Voice string

	// OnStatus, when set, is called with true once the session is streaming
	// and with false exactly once when it ends.
	OnStatus func(connected bool)

	// OnTranscript, when set, receives recognised text from both sides of
	// the conversation. Called from an internal goroutine; must not block.
	OnTranscript func(live.Transcript)

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// Session is a start/stop-controlled full-duplex voice conversation.
// One conversation runs at a time; after Disconnect the same Session can
// Connect again. All methods are safe for concurrent use.
type Session struct {
	cfg     Config
	log     *slog.Logger
	metrics *observe.Metrics

	mu        sync.Mutex
	state     State
	sess      live.Session
	src       capture.Source
	sched     *playout.Scheduler
	cancel    context.CancelFunc
	pumps     *errgroup.Group
	startedAt time.Time
}

// New validates cfg and creates an idle Session.
func New(cfg Config) (*Session, error) {
	var errs []error
	if cfg.Provider == nil {
		errs = append(errs, errors.New("voice: Provider is required"))
	}
	if cfg.Directory == nil {
		errs = append(errs, errors.New("voice: Directory is required"))
	}
	if cfg.NewSource == nil {
		errs = append(errs, errors.New("voice: NewSource is required"))
	}
	if cfg.NewSink == nil {
		errs = append(errs, errors.New("voice: NewSink is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Session{cfg: cfg, log: cfg.Logger, metrics: cfg.Metrics}, nil
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect opens the microphone, the playback device, and the remote session,
// then starts the streaming pumps. On success the status callback fires with
// true. On any setup failure all partially acquired resources are released,
// the session returns to Idle, and no status is reported.
//
// ctx governs setup only; a streaming session outlives it and runs until
// Disconnect or remote close.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.state = StateConnecting
	s.mu.Unlock()

	toIdle := func() {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
	}

	src, err := s.cfg.NewSource()
	if err != nil {
		toIdle()
		return fmt.Errorf("voice: open capture: %w", err)
	}

	sink, err := s.cfg.NewSink()
	if err != nil {
		_ = src.Close()
		toIdle()
		return fmt.Errorf("voice: open playback: %w", err)
	}
	sched := playout.NewScheduler(sink, audio.PlaybackRate)

	orgs, err := s.cfg.Directory.List(ctx)
	if err != nil {
		_ = sched.Close()
		_ = src.Close()
		toIdle()
		return fmt.Errorf("voice: load directory: %w", err)
	}

	liveCfg := live.SessionConfig{
		Instructions: directory.Instructions(orgs),
		Voice:        s.cfg.Voice,
	}
	if s.cfg.Tools != nil {
		liveCfg.Tools = s.cfg.Tools.Definitions()
	}

	sess, err := s.cfg.Provider.Connect(ctx, liveCfg)
	if err != nil {
		_ = sched.Close()
		_ = src.Close()
		toIdle()
		s.metrics.RecordProviderError(ctx, "live", "connect")
		return fmt.Errorf("voice: connect live session: %w", err)
	}

	sess.OnError(func(err error) {
		s.log.Warn("live session reported error", "error", err)
		s.metrics.RecordProviderError(context.Background(), "live", "session")
	})
	if s.cfg.Tools != nil {
		sess.OnToolCall(func(name, args string) (string, error) {
			return s.runTool(name, args)
		})
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(pumpCtx)

	s.mu.Lock()
	s.state = StateStreaming
	s.sess = sess
	s.src = src
	s.sched = sched
	s.cancel = cancel
	s.pumps = g
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.metrics.ActiveSessions.Add(ctx, 1)
	s.log.Info("voice session streaming", "organizations", len(orgs), "voice", s.cfg.Voice)
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(true)
	}

	g.Go(func() error { return s.pumpCapture(gctx, src, sess) })
	g.Go(func() error { return s.pumpPlayback(gctx, sess, sched) })
	g.Go(func() error { return s.pumpInterruptions(gctx, sess, sched) })
	g.Go(func() error { return s.pumpTranscripts(gctx, sess) })

	return nil
}

// Disconnect tears the session down: pumps stop, the capture source, remote
// session, and playback scheduler are closed, and the status callback fires
// with false. Calling Disconnect on an idle session is a no-op. The same
// teardown runs when the remote side closes the session.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	sess, src, sched := s.sess, s.src, s.sched
	cancel, pumps := s.cancel, s.pumps
	startedAt := s.startedAt
	s.state = StateIdle
	s.sess, s.src, s.sched, s.cancel, s.pumps = nil, nil, nil, nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var errs []error
	if src != nil {
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if sess != nil {
		if err := sess.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if pumps != nil {
		_ = pumps.Wait()
	}
	if sched != nil {
		if err := sched.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	ctx := context.Background()
	s.metrics.ActiveSessions.Add(ctx, -1)
	s.metrics.SessionDuration.Record(ctx, time.Since(startedAt).Seconds())
	s.log.Info("voice session ended", "duration", time.Since(startedAt))
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(false)
	}
	return errors.Join(errs...)
}

// pumpCapture forwards microphone frames to the remote session. Send
// failures are transient: the frame is dropped, the session continues.
func (s *Session) pumpCapture(ctx context.Context, src capture.Source, sess live.Session) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-src.Frames():
			if !ok {
				s.log.Info("capture stream ended")
				return nil
			}
			if err := sess.SendAudio(audio.EncodePCM16(frame.Samples)); err != nil {
				s.log.Warn("dropping audio frame", "error", err)
				s.metrics.RecordProviderError(ctx, "live", "send")
				continue
			}
			s.metrics.AudioFramesSent.Add(ctx, 1)
		}
	}
}

// pumpPlayback decodes inbound model audio and queues it for gapless
// playback. The Audio channel closing means the session is over, whether by
// local Close or remote teardown; either way the full disconnect path runs.
func (s *Session) pumpPlayback(ctx context.Context, sess live.Session, sched *playout.Scheduler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-sess.Audio():
			if !ok {
				if err := sess.Err(); err != nil {
					s.log.Error("live session terminated", "error", err)
					s.metrics.RecordProviderError(ctx, "live", "receive")
				}
				// Teardown must not run on this goroutine: Disconnect
				// waits for the pumps to exit.
				go func() { _ = s.Disconnect() }()
				return nil
			}
			if err := sched.Schedule(audio.DecodePCM16(chunk)); err != nil {
				if errors.Is(err, playout.ErrClosed) {
					return nil
				}
				s.log.Warn("failed to schedule playback", "error", err)
				continue
			}
			s.metrics.AudioChunksReceived.Add(ctx, 1)
		}
	}
}

// pumpInterruptions flushes pending playback whenever the model reports that
// the user barged in.
func (s *Session) pumpInterruptions(ctx context.Context, sess live.Session, sched *playout.Scheduler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sess.Interruptions():
			if !ok {
				return nil
			}
			sched.Flush()
			s.metrics.Interruptions.Add(ctx, 1)
			s.log.Debug("barge-in: flushed pending playback")
		}
	}
}

// pumpTranscripts forwards recognised text to the transcript callback.
func (s *Session) pumpTranscripts(ctx context.Context, sess live.Session) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case tr, ok := <-sess.Transcripts():
			if !ok {
				return nil
			}
			if s.cfg.OnTranscript != nil {
				s.cfg.OnTranscript(tr)
			}
		}
	}
}

// runTool executes a model-requested tool call through the tool host.
func (s *Session) runTool(name, args string) (string, error) {
	ctx := context.Background()
	start := time.Now()
	result, err := s.cfg.Tools.Execute(ctx, name, args)
	s.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordToolCall(ctx, name, "error")
		s.log.Warn("tool call failed", "tool", name, "error", err)
		return "", err
	}
	s.metrics.RecordToolCall(ctx, name, "ok")
	return result, nil
}
