// Package speech talks to the remote transcription, chat, and synthesis
// collaborators.
package speech

import (
	"context"

	"github.com/talkrally/platform/internal/conversation"
)

// Clip is synthesized speech ready for playback.
type Clip struct {
	Data []byte
	Mime string
}

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mime string) (string, error)
}

// Generator produces the assistant's next reply for a conversation.
type Generator interface {
	Reply(ctx context.Context, msgs []conversation.Message) (string, error)
}

// Synthesizer renders text as spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Clip, error)
}

// Engine bundles the three collaborators a conversation turn needs.
type Engine interface {
	Transcriber
	Generator
	Synthesizer
}
