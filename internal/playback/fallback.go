package playback

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/talkrally/platform/internal/speech"
)

// Fallback plays a clip when the primary audio device path fails.
type Fallback interface {
	Play(ctx context.Context, clip speech.Clip) error
}

// playerSpec describes one external player candidate.
type playerSpec struct {
	name  string
	args  []string
	mimes map[string]bool
}

var playerSpecs = []playerSpec{
	{name: "afplay", mimes: map[string]bool{"audio/mpeg": true, "audio/wav": true}},
	{name: "mpg123", args: []string{"-q"}, mimes: map[string]bool{"audio/mpeg": true}},
	{name: "aplay", args: []string{"-q"}, mimes: map[string]bool{"audio/wav": true}},
	{name: "paplay", mimes: map[string]bool{"audio/wav": true}},
	{name: "ffplay", args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}, mimes: map[string]bool{"audio/mpeg": true, "audio/wav": true}},
	{name: "mpv", args: []string{"--no-video", "--really-quiet"}, mimes: map[string]bool{"audio/mpeg": true, "audio/wav": true}},
}

// SystemPlayer shells out to whatever audio player the host provides.
type SystemPlayer struct {
	specs []playerSpec
	look  func(string) (string, error)
}

// NewSystemPlayer creates a fallback over the known player binaries.
func NewSystemPlayer() *SystemPlayer {
	return &SystemPlayer{specs: playerSpecs, look: exec.LookPath}
}

// Available reports whether any known player binary is on PATH.
func (p *SystemPlayer) Available() bool {
	for _, spec := range p.specs {
		if _, err := p.look(spec.name); err == nil {
			return true
		}
	}
	return false
}

func (p *SystemPlayer) pick(mime string) (playerSpec, string, error) {
	for _, spec := range p.specs {
		if !spec.mimes[mime] {
			continue
		}
		path, err := p.look(spec.name)
		if err != nil {
			continue
		}
		return spec, path, nil
	}
	return playerSpec{}, "", fmt.Errorf("no system player for %s", mime)
}

// Play writes the clip to a temp file and hands it to a system player.
func (p *SystemPlayer) Play(ctx context.Context, clip speech.Clip) error {
	spec, path, err := p.pick(clip.Mime)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "clip-*"+extForMime(clip.Mime))
	if err != nil {
		return fmt.Errorf("temp clip: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(clip.Data); err != nil {
		f.Close()
		return fmt.Errorf("write clip: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close clip: %w", err)
	}

	args := append(append([]string{}, spec.args...), f.Name())
	cmd := exec.CommandContext(ctx, path, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", spec.name, err)
	}
	return nil
}

func extForMime(mime string) string {
	if mime == "audio/wav" {
		return ".wav"
	}
	return ".mp3"
}
