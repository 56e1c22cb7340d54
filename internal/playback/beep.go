package playback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"github.com/talkrally/platform/internal/speech"
)

// Sink is the primary audio output path.
type Sink interface {
	// Unlock opens the audio device and proves it can emit samples.
	Unlock() error
	// Play blocks until the clip finishes or ctx is cancelled.
	Play(ctx context.Context, clip speech.Clip) error
}

// speakerSink plays through the default output device via beep.
type speakerSink struct{}

// NewSpeakerSink returns the beep-backed output path.
func NewSpeakerSink() Sink {
	return &speakerSink{}
}

func (s *speakerSink) Unlock() error {
	sr := beep.SampleRate(44100)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return fmt.Errorf("open output device: %w", err)
	}

	// A short burst of silence proves the device actually renders.
	done := make(chan struct{})
	speaker.Play(beep.Seq(beep.Silence(sr.N(20*time.Millisecond)), beep.Callback(func() {
		close(done)
	})))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		return fmt.Errorf("output device did not render silence probe")
	}
	return nil
}

func (s *speakerSink) Play(ctx context.Context, clip speech.Clip) error {
	streamer, format, err := decodeClip(clip)
	if err != nil {
		return err
	}
	defer streamer.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("reopen output device: %w", err)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func decodeClip(clip speech.Clip) (beep.StreamSeekCloser, beep.Format, error) {
	r := io.NopCloser(bytes.NewReader(clip.Data))
	switch clip.Mime {
	case "audio/mpeg":
		return mp3.Decode(r)
	case "audio/wav":
		return wav.Decode(r)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported clip type %s", clip.Mime)
	}
}
