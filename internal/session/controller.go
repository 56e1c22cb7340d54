// Package session drives the talk loop: listen for an utterance, turn it
// into text, generate the persona's reply, and speak it, then go back to
// listening. One turn runs at a time; the user cannot interrupt the
// assistant mid-reply.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/talkrally/platform/internal/audio"
	"github.com/talkrally/platform/internal/config"
	"github.com/talkrally/platform/internal/conversation"
	apperrors "github.com/talkrally/platform/internal/errors"
	"github.com/talkrally/platform/internal/recorder"
	"github.com/talkrally/platform/internal/speech"
	"github.com/talkrally/platform/internal/syncx"
	"github.com/talkrally/platform/internal/trace"
	"github.com/talkrally/platform/internal/vad"
)

// Phase is where the session currently is in the turn cycle.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseListening    Phase = "listening"
	PhaseRecording    Phase = "recording"
	PhaseTranscribing Phase = "transcribing"
	PhaseGenerating   Phase = "generating"
	PhaseSpeaking     Phase = "speaking"
)

// turnTimeout bounds one full transcribe/generate/speak cycle.
const turnTimeout = 60 * time.Second

// EventType tags session events sent to observers.
type EventType string

const (
	EventState   EventType = "state"
	EventMessage EventType = "message"
	EventNotice  EventType = "notice"
)

// Event is a session observation for the UI layer.
type Event struct {
	Type  EventType `json:"type"`
	Phase Phase     `json:"phase,omitempty"`
	Role  string    `json:"role,omitempty"`
	Text  string    `json:"text,omitempty"`
}

// Source produces microphone chunks. audio.Capturer satisfies it.
type Source interface {
	Start(ctx context.Context) error
	Stop()
	Output() <-chan audio.Chunk
}

// Player renders clips. playback.Manager satisfies it.
type Player interface {
	Unlock() error
	Play(ctx context.Context, clip speech.Clip) error
	Stop()
}

// Controller owns one conversation session.
type Controller struct {
	cfg      *config.Config
	src      Source
	detector *vad.Detector
	rec      *recorder.Recorder
	store    *conversation.Store
	engine   speech.Engine
	player   Player

	phase   *syncx.RWGuard[Phase]
	events  chan Event
	cancel  *syncx.RWGuard[context.CancelFunc]
	stopped chan struct{}
}

// New assembles a controller from its collaborators.
func New(cfg *config.Config, src Source, engine speech.Engine, player Player, store *conversation.Store) *Controller {
	c := &Controller{
		cfg:      cfg,
		src:      src,
		detector: vad.New(cfg.VADThreshold, cfg.Hangover),
		rec:      recorder.New(cfg.SampleRate, cfg.MaxUtterance),
		store:    store,
		engine:   engine,
		player:   player,
		phase:    syncx.NewGuard(PhaseIdle),
		events:   make(chan Event, 32),
		cancel:   syncx.NewGuard[context.CancelFunc](nil),
	}
	return c
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.phase.Get()
}

// Events returns the observer channel. Events are dropped, not queued,
// when the observer falls behind.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// History exposes the conversation so far.
func (c *Controller) History() []conversation.Message {
	return c.store.History()
}

// Clear wipes the conversation history.
func (c *Controller) Clear() {
	c.store.Clear()
}

// Start unlocks audio output and begins listening. It fails if output
// cannot be unlocked or the capture device will not start. Starting an
// already running session is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	phaseEq := func(a, b Phase) bool { return a == b }
	if !c.phase.CompareAndSwap(PhaseIdle, PhaseListening, phaseEq) {
		return nil
	}

	if err := c.player.Unlock(); err != nil {
		c.phase.Set(PhaseIdle)
		return err
	}

	sctx, cancel := context.WithCancel(ctx)
	if err := c.src.Start(sctx); err != nil {
		cancel()
		c.phase.Set(PhaseIdle)
		return apperrors.Wrap(err, apperrors.CodeCaptureDeviceUnavailable, "start capture")
	}

	c.cancel.Set(cancel)
	c.stopped = make(chan struct{})
	c.drainSegments()
	c.detector.Attach(c)
	c.rec.Arm()
	c.emit(Event{Type: EventState, Phase: PhaseListening})

	go c.loop(sctx)
	return nil
}

// Stop ends the session. Any in-flight turn is cancelled and its results
// discarded; playback in progress is halted.
func (c *Controller) Stop() {
	cancel := c.cancel.Swap(nil)
	if cancel == nil {
		return
	}
	cancel()
	c.player.Stop()
	c.src.Stop()
	<-c.stopped

	// Disarm before detaching so the detach-flushed speech-stop cannot
	// turn a half-captured utterance into a stale segment.
	c.rec.Disarm()
	c.detector.Detach()
	c.setPhase(PhaseIdle)
}

// OnSpeechStart implements vad.Listener: the user started talking.
func (c *Controller) OnSpeechStart(at time.Time) {
	c.rec.OnSpeechStart(at)
	if c.phase.Get() == PhaseListening {
		c.setPhase(PhaseRecording)
	}
}

// OnSpeechStop implements vad.Listener: the utterance closed.
func (c *Controller) OnSpeechStop(at time.Time) {
	c.rec.OnSpeechStop(at)
	if c.phase.Get() == PhaseRecording {
		c.setPhase(PhaseListening)
	}
}

// drainSegments drops utterances left over from a previous session.
func (c *Controller) drainSegments() {
	for {
		select {
		case <-c.rec.Output():
		default:
			return
		}
	}
}

// Say speaks arbitrary text without touching the conversation history.
func (c *Controller) Say(ctx context.Context, text string) error {
	clip, err := c.engine.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	return c.player.Play(ctx, clip)
}

// loop is the session event loop. A turn runs inline, so chunks arriving
// mid-turn pile up against the capturer's backpressure and are dropped
// at the device, never half-processed.
func (c *Controller) loop(ctx context.Context) {
	defer close(c.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-c.src.Output():
			if !ok {
				return
			}
			c.detector.Process(chunk.Data)
			c.rec.Append(chunk.Data)
		case seg := <-c.rec.Output():
			c.runTurn(ctx, seg)
		}
	}
}

// runTurn handles one utterance end to end. The recorder stays disarmed
// for the duration so the user's voice cannot queue a second turn.
func (c *Controller) runTurn(ctx context.Context, seg recorder.Segment) {
	c.rec.Disarm()
	defer c.resumeListening(ctx)

	tctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()
	tctx, span := trace.StartSpan(tctx, "session.turn")
	defer span.End()
	log := trace.Logger(tctx)

	c.setPhase(PhaseTranscribing)
	text, err := c.engine.Transcribe(tctx, seg.Data, seg.Mime)
	if err != nil {
		c.failTurn(tctx, err)
		return
	}
	if text == "" {
		log.Debug("empty transcript discarded", "duration", seg.Duration)
		c.emit(Event{Type: EventNotice, Text: "聞き取れませんでした"})
		return
	}
	if tctx.Err() != nil {
		return
	}

	c.store.Append(conversation.RoleUser, text)
	c.emit(Event{Type: EventMessage, Role: string(conversation.RoleUser), Text: text})
	log.Info("utterance transcribed", "chars", len(text), "duration", seg.Duration)

	c.setPhase(PhaseGenerating)
	reply, err := c.engine.Reply(tctx, c.store.Messages())
	if err != nil {
		c.failTurn(tctx, err)
		return
	}
	if tctx.Err() != nil {
		return
	}

	c.store.Append(conversation.RoleAssistant, reply)
	c.emit(Event{Type: EventMessage, Role: string(conversation.RoleAssistant), Text: reply})

	c.setPhase(PhaseSpeaking)
	clip, err := c.engine.Synthesize(tctx, reply)
	if err != nil {
		c.failTurn(tctx, err)
		return
	}
	if err := c.player.Play(tctx, clip); err != nil {
		// The reply is already in the history; a playback problem is
		// not worth an apology, just surface it and keep going.
		log.Warn("reply playback failed", "error", err, "code", apperrors.CodeOf(err))
		c.emit(Event{Type: EventNotice, Text: "音声を再生できませんでした"})
	}
}

// failTurn speaks the configured apology for a failed turn. The apology
// is recorded in the history exactly once per turn.
func (c *Controller) failTurn(ctx context.Context, cause error) {
	if ctx.Err() != nil {
		return
	}
	log := trace.Logger(ctx)
	log.Error("turn failed", "error", cause, "code", apperrors.CodeOf(cause))
	c.emit(Event{Type: EventNotice, Text: "エラーが発生しました"})

	apology := c.cfg.ApologyText
	if apology == "" {
		return
	}
	c.store.Append(conversation.RoleAssistant, apology)
	c.emit(Event{Type: EventMessage, Role: string(conversation.RoleAssistant), Text: apology})

	c.setPhase(PhaseSpeaking)
	clip, err := c.engine.Synthesize(ctx, apology)
	if err != nil {
		log.Warn("apology synthesis failed", "error", err)
		return
	}
	if err := c.player.Play(ctx, clip); err != nil {
		log.Warn("apology playback failed", "error", err)
	}
}

func (c *Controller) resumeListening(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	c.rec.Arm()
	c.setPhase(PhaseListening)
}

func (c *Controller) setPhase(p Phase) {
	c.phase.Set(p)
	c.emit(Event{Type: EventState, Phase: p})
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		slog.Debug("event observer behind, dropping", "type", ev.Type)
	}
}
