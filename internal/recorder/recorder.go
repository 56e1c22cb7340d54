// Package recorder buffers microphone samples between speech boundaries
// and emits finished utterances as encoded audio segments.
package recorder

import (
	"log/slog"
	"sync"
	"time"

	"github.com/talkrally/platform/internal/audio"
)

// DefaultMaxUtterance caps a single utterance. Recording is force-stopped
// at the ceiling even if the speaker has not paused.
const DefaultMaxUtterance = 5000 * time.Millisecond

// Segment is one finished utterance, encoded and ready for transcription.
type Segment struct {
	Data     []byte
	Mime     string
	Samples  int
	Duration time.Duration
}

// Recorder captures samples between OnSpeechStart and OnSpeechStop.
// It only records while armed; Disarm discards any partial utterance.
type Recorder struct {
	sampleRate int
	maxSamples int
	segCh      chan Segment

	mu        sync.Mutex
	armed     bool
	recording bool
	buf       []float32
}

// New creates a recorder for mono audio at the given sample rate.
// A non-positive maxUtterance falls back to DefaultMaxUtterance.
func New(sampleRate int, maxUtterance time.Duration) *Recorder {
	if maxUtterance <= 0 {
		maxUtterance = DefaultMaxUtterance
	}
	return &Recorder{
		sampleRate: sampleRate,
		maxSamples: int(float64(sampleRate) * maxUtterance.Seconds()),
		segCh:      make(chan Segment, 4),
	}
}

// Output returns the channel of finished segments.
func (r *Recorder) Output() <-chan Segment {
	return r.segCh
}

// Arm enables recording of the next utterance.
func (r *Recorder) Arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = true
}

// Disarm stops accepting utterances. A partially captured utterance is
// discarded, not emitted.
func (r *Recorder) Disarm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = false
	r.recording = false
	r.buf = nil
}

// Recording reports whether an utterance capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// OnSpeechStart begins capturing if armed.
func (r *Recorder) OnSpeechStart(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed || r.recording {
		return
	}
	r.recording = true
	r.buf = r.buf[:0]
}

// OnSpeechStop finalizes the current utterance and emits it.
func (r *Recorder) OnSpeechStop(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizeLocked()
}

// Append adds one frame of samples to the utterance in progress. Hitting
// the utterance ceiling force-stops the capture and emits the segment.
func (r *Recorder) Append(frame []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	r.buf = append(r.buf, frame...)
	if len(r.buf) >= r.maxSamples {
		r.buf = r.buf[:r.maxSamples]
		slog.Debug("utterance ceiling reached", "samples", len(r.buf))
		r.finalizeLocked()
	}
}

func (r *Recorder) finalizeLocked() {
	if !r.recording {
		return
	}
	r.recording = false

	if len(r.buf) == 0 {
		return
	}
	samples := make([]float32, len(r.buf))
	copy(samples, r.buf)
	r.buf = r.buf[:0]

	data, err := audio.EncodeWAV(samples, r.sampleRate)
	if err != nil {
		slog.Error("utterance encode failed", "error", err)
		return
	}

	seg := Segment{
		Data:     data,
		Mime:     audio.MimeWAV,
		Samples:  len(samples),
		Duration: time.Duration(len(samples)) * time.Second / time.Duration(r.sampleRate),
	}
	select {
	case r.segCh <- seg:
	default:
		slog.Warn("segment channel full, dropping utterance", "samples", seg.Samples)
	}
}
