// Package vad detects speech boundaries in a live microphone stream.
package vad

import (
	"sync"
	"time"
)

const (
	// DefaultThreshold is the normalized volume above which a frame
	// counts as speech.
	DefaultThreshold = 0.01

	// DefaultHangover is how long the signal must stay below the
	// threshold before the utterance is considered finished.
	DefaultHangover = 2000 * time.Millisecond
)

// Listener receives speech boundary events.
type Listener interface {
	OnSpeechStart(at time.Time)
	OnSpeechStop(at time.Time)
}

// Detector tracks whether the user is speaking based on per-frame volume.
// Speech begins on the first frame above the threshold and ends once the
// signal has stayed below it for the full hangover window. A single loud
// frame during the hangover cancels the pending stop.
type Detector struct {
	threshold float64
	hangover  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	listener  Listener
	speaking  bool
	silenceAt time.Time // deadline for the pending speech-stop; zero when none
}

// New creates a detector. Non-positive arguments fall back to defaults.
func New(threshold float64, hangover time.Duration) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if hangover <= 0 {
		hangover = DefaultHangover
	}
	return &Detector{
		threshold: threshold,
		hangover:  hangover,
		now:       time.Now,
	}
}

// Attach registers the listener and resets detection state.
func (d *Detector) Attach(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = l
	d.speaking = false
	d.silenceAt = time.Time{}
}

// Detach removes the listener. If an utterance is in progress its
// speech-stop is flushed so downstream state never dangles.
func (d *Detector) Detach() {
	d.mu.Lock()
	l := d.listener
	wasSpeaking := d.speaking
	at := d.now()
	d.listener = nil
	d.speaking = false
	d.silenceAt = time.Time{}
	d.mu.Unlock()

	if wasSpeaking && l != nil {
		l.OnSpeechStop(at)
	}
}

// Speaking reports whether an utterance is currently in progress.
func (d *Detector) Speaking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speaking
}

// Process evaluates one audio frame and fires boundary events as needed.
func (d *Detector) Process(frame []float32) {
	vol := Volume(frame)

	d.mu.Lock()
	l := d.listener
	now := d.now()

	var started, stopped bool
	if vol > d.threshold {
		if !d.speaking {
			d.speaking = true
			started = true
		}
		// Renewed speech cancels any pending stop.
		d.silenceAt = time.Time{}
	} else if d.speaking {
		if d.silenceAt.IsZero() {
			d.silenceAt = now.Add(d.hangover)
		} else if !now.Before(d.silenceAt) {
			d.speaking = false
			d.silenceAt = time.Time{}
			stopped = true
		}
	}
	d.mu.Unlock()

	if l == nil {
		return
	}
	if started {
		l.OnSpeechStart(now)
	}
	if stopped {
		l.OnSpeechStop(now)
	}
}

// Volume returns the mean absolute amplitude of the frame, normalized
// to [0, 1] for full-scale float32 PCM.
func Volume(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		if s < 0 {
			s = -s
		}
		sum += float64(s)
	}
	return sum / float64(len(frame))
}
