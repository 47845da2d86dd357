package playout

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/opora-ua/opora/pkg/audio"
)

// SpeakerSink plays scheduled buffers through the system speaker via beep.
//
// The sink is itself a [beep.Streamer]: the speaker pulls samples from it
// continuously, and the sink mixes whatever buffers overlap the current
// stream position, filling the rest with silence. The stream position doubles
// as the playback clock.
type SpeakerSink struct {
	rate beep.SampleRate

	mu       sync.Mutex
	streamed int64
	active   []*speakerHandle
	closed   bool
}

var _ Sink = (*SpeakerSink)(nil)
var _ beep.Streamer = (*SpeakerSink)(nil)

// NewSpeakerSink initializes the speaker at 24 kHz and starts pulling from
// the sink. The speaker device is a process-wide singleton; create at most
// one SpeakerSink per process.
func NewSpeakerSink() (*SpeakerSink, error) {
	sr := beep.SampleRate(audio.PlaybackRate)
	if err := speaker.Init(sr, sr.N(time.Second/20)); err != nil {
		return nil, fmt.Errorf("playout: init speaker: %w", err)
	}
	s := &SpeakerSink{rate: sr}
	speaker.Play(s)
	return s, nil
}

// Now returns the number of seconds of audio streamed to the speaker so far.
func (s *SpeakerSink) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.streamed) / float64(s.rate)
}

// Play schedules mono samples at the given clock position. A position already
// behind the stream cursor is clamped forward so playback never skips the
// start of a buffer.
func (s *SpeakerSink) Play(samples []float32, at float64) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("playout: speaker sink closed")
	}

	start := int64(at * float64(s.rate))
	if start < s.streamed {
		start = s.streamed
	}
	h := &speakerHandle{
		samples: samples,
		start:   start,
		done:    make(chan struct{}),
	}
	s.active = append(s.active, h)
	return h, nil
}

// Stream implements beep.Streamer. Mono buffers are duplicated onto both
// output channels.
func (s *SpeakerSink) Stream(out [][2]float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false
	}

	for i := range out {
		out[i] = [2]float64{}
		pos := s.streamed + int64(i)
		for _, h := range s.active {
			if h.stopped.Load() || pos < h.start || pos >= h.start+int64(len(h.samples)) {
				continue
			}
			v := float64(h.samples[pos-h.start])
			out[i][0] += v
			out[i][1] += v
		}
	}
	s.streamed += int64(len(out))

	remaining := s.active[:0]
	for _, h := range s.active {
		if h.stopped.Load() || h.start+int64(len(h.samples)) <= s.streamed {
			h.finish()
			continue
		}
		remaining = append(remaining, h)
	}
	s.active = remaining
	return len(out), true
}

// Err implements beep.Streamer.
func (s *SpeakerSink) Err() error { return nil }

// Close stops streaming and shuts the speaker down.
func (s *SpeakerSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, h := range s.active {
		h.finish()
	}
	s.active = nil
	s.mu.Unlock()

	speaker.Close()
	return nil
}

type speakerHandle struct {
	samples []float32
	start   int64

	stopped atomic.Bool
	done    chan struct{}
	once    sync.Once
}

func (h *speakerHandle) Stop() {
	h.stopped.Store(true)
	h.finish()
}

func (h *speakerHandle) Done() <-chan struct{} { return h.done }

func (h *speakerHandle) finish() {
	h.once.Do(func() { close(h.done) })
}
