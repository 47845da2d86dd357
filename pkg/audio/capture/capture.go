// Package capture provides push-based microphone sources for the live voice
// pipeline. A [Source] delivers fixed-size 16 kHz mono frames on a channel;
// the consumer owns pacing on its side only — a slow consumer causes frame
// drops, never capture stalls.
package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/opora-ua/opora/pkg/audio"
)

// BlockSamples is the number of samples per delivered frame (256 ms at 16 kHz).
const BlockSamples = 4096

// frameBuffer is the channel depth before the reader starts dropping frames.
const frameBuffer = 8

// Source is a live microphone stream. The Frames channel is closed when the
// underlying input ends or the source is closed.
type Source interface {
	// Frames returns the channel delivering captured audio. Each frame holds
	// BlockSamples mono samples at 16 kHz, except possibly a shorter final
	// frame before the channel closes.
	Frames() <-chan audio.Frame

	// Close stops capture and releases the underlying input. Safe to call
	// more than once.
	Close() error
}

// ReaderSource adapts a raw s16le mono 16 kHz PCM stream (typically the
// stdout of an external capture process) into a [Source].
type ReaderSource struct {
	r      io.Reader
	frames chan audio.Frame

	mu     sync.Mutex
	closed bool

	done        chan struct{}
	droppedOnce sync.Once
}

var _ Source = (*ReaderSource)(nil)

// NewReaderSource starts a reader goroutine over r and returns the source.
// If r implements io.Closer, Close closes it to unblock the reader.
func NewReaderSource(r io.Reader) *ReaderSource {
	s := &ReaderSource{
		r:      r,
		frames: make(chan audio.Frame, frameBuffer),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Frames returns the capture channel.
func (s *ReaderSource) Frames() <-chan audio.Frame {
	return s.frames
}

// Close stops the reader and closes the underlying input if it is closable.
func (s *ReaderSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var err error
	if c, ok := s.r.(io.Closer); ok {
		err = c.Close()
	}
	<-s.done
	return err
}

func (s *ReaderSource) readLoop() {
	defer close(s.done)
	defer close(s.frames)

	buf := make([]byte, BlockSamples*2)
	start := time.Now()
	for {
		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			// A trailing odd byte cannot form a sample; DecodePCM16 drops it.
			frame := audio.Frame{
				Samples:    audio.DecodePCM16(buf[:n]),
				SampleRate: audio.CaptureRate,
				Timestamp:  time.Since(start),
			}
			select {
			case s.frames <- frame:
			default:
				s.droppedOnce.Do(func() {
					slog.Warn("capture: consumer behind, dropping frames")
				})
			}
		}
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				slog.Error("capture: read failed", "error", err)
			}
			return
		}
	}
}

// CommandSource captures microphone audio by running an external command
// (e.g. arecord or ffmpeg) that writes raw s16le mono 16 kHz PCM to stdout.
type CommandSource struct {
	cmd    *exec.Cmd
	reader *ReaderSource

	closeOnce sync.Once
	closeErr  error
}

var _ Source = (*CommandSource)(nil)

// NewCommandSource starts the capture command and begins reading its stdout.
func NewCommandSource(name string, args ...string) (*CommandSource, error) {
	cmd := exec.Command(name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture: open stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("capture: start %q: %w", name, err)
	}
	return &CommandSource{
		cmd:    cmd,
		reader: NewReaderSource(stdout),
	}, nil
}

// Frames returns the capture channel.
func (s *CommandSource) Frames() <-chan audio.Frame {
	return s.reader.Frames()
}

// Close kills the capture process and waits for the reader to finish.
func (s *CommandSource) Close() error {
	s.closeOnce.Do(func() {
		if err := s.cmd.Process.Kill(); err != nil {
			s.closeErr = fmt.Errorf("capture: kill process: %w", err)
		}
		// Wait reaps the process and closes the stdout pipe, which
		// unblocks the reader goroutine.
		_ = s.cmd.Wait()
		_ = s.reader.Close()
	})
	return s.closeErr
}
