// Package audio defines the frame type and PCM codecs shared by the capture
// and playout pipelines.
package audio

import "time"

// Capture and playback rates used by the live voice pipeline. Outbound
// microphone audio is sent at 16 kHz; inbound model audio arrives at 24 kHz.
const (
	CaptureRate  = 16000
	PlaybackRate = 24000
)

// Frame is a block of mono audio flowing through the pipeline. Samples are
// normalized float32 in [-1, 1]; SampleRate is fixed per direction (capture
// frames at 16 kHz, playback frames at 24 kHz).
type Frame struct {
	Samples    []float32
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the frame's play time at its sample rate.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}
