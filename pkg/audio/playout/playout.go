// Package playout schedules decoded model audio for gapless playback.
//
// The [Scheduler] owns the playback clock: consecutive buffers are queued
// back to back on a [Sink] so that each starts exactly where the previous one
// ends, regardless of network jitter in chunk arrival. A barge-in flushes
// everything pending and resets the clock so the next response plays
// immediately.
package playout

import (
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Schedule after the scheduler has been closed.
var ErrClosed = errors.New("playout: scheduler closed")

// Handle is a single scheduled buffer on a [Sink].
type Handle interface {
	// Stop cancels playback. Safe to call more than once and after natural
	// completion.
	Stop()

	// Done is closed when the buffer finishes playing or is stopped.
	Done() <-chan struct{}
}

// Sink is a playback device with a monotonic stream clock.
//
// Implementations must be safe for concurrent use.
type Sink interface {
	// Now returns the current position of the playback clock in seconds.
	Now() float64

	// Play schedules mono samples to start at the given clock position.
	// A position already in the past plays as soon as possible.
	Play(samples []float32, at float64) (Handle, error)

	// Close releases the device. Safe to call more than once.
	Close() error
}

// Scheduler queues audio buffers on a Sink so that playback is gapless.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	sink Sink
	rate int

	mu        sync.Mutex
	nextStart float64
	pending   map[uint64]Handle
	seq       uint64
	closed    bool

	wg sync.WaitGroup
}

// NewScheduler creates a scheduler playing mono audio at the given sample
// rate through sink.
func NewScheduler(sink Sink, sampleRate int) *Scheduler {
	return &Scheduler{
		sink:    sink,
		rate:    sampleRate,
		pending: make(map[uint64]Handle),
	}
}

// Schedule queues samples directly after the last scheduled buffer, or at the
// current clock position if the queue has drained (or was flushed). Empty
// buffers are ignored.
func (s *Scheduler) Schedule(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	start := s.sink.Now()
	if s.nextStart > start {
		start = s.nextStart
	}

	h, err := s.sink.Play(samples, start)
	if err != nil {
		return fmt.Errorf("playout: schedule buffer: %w", err)
	}
	s.nextStart = start + float64(len(samples))/float64(s.rate)

	id := s.seq
	s.seq++
	s.pending[id] = h

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-h.Done()
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()
	return nil
}

// Flush stops every pending buffer, clears the queue, and resets the clock so
// the next Schedule starts playing immediately. Used on barge-in.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	handles := make([]Handle, 0, len(s.pending))
	for _, h := range s.pending {
		handles = append(handles, h)
	}
	clear(s.pending)
	s.nextStart = 0
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

// Pending reports the number of buffers scheduled but not yet finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close flushes pending playback, waits for bookkeeping to settle, and closes
// the sink. Safe to call more than once.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Flush()
	s.wg.Wait()
	return s.sink.Close()
}
