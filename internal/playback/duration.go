package playback

import (
	"bytes"
	"fmt"
	"time"

	gowav "github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/talkrally/platform/internal/speech"
)

// ClipDuration probes the clip's play time without playing it. Used for
// the silent fallback tier, which must occupy the speaking slot for as
// long as the audible clip would have.
func ClipDuration(clip speech.Clip) (time.Duration, error) {
	switch clip.Mime {
	case "audio/mpeg":
		dec, err := gomp3.NewDecoder(bytes.NewReader(clip.Data))
		if err != nil {
			return 0, fmt.Errorf("probe mp3: %w", err)
		}
		// Length is in bytes of 16-bit stereo output.
		samples := dec.Length() / 4
		return time.Duration(samples) * time.Second / time.Duration(dec.SampleRate()), nil
	case "audio/wav":
		dec := gowav.NewDecoder(bytes.NewReader(clip.Data))
		dur, err := dec.Duration()
		if err != nil {
			return 0, fmt.Errorf("probe wav: %w", err)
		}
		return dur, nil
	default:
		return 0, fmt.Errorf("cannot probe duration of %s", clip.Mime)
	}
}
