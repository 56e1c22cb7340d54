// Package playback turns synthesized clips into sound. Output must be
// unlocked once before anything plays; the device path has an audible
// fallback through a system player when the primary path fails.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/talkrally/platform/internal/errors"
	"github.com/talkrally/platform/internal/speech"
)

// Manager owns the output device. At most one clip plays at a time:
// starting a new clip stops the previous one first.
type Manager struct {
	sink     Sink
	fallback Fallback
	policy   PolicyFunc

	unlocked atomic.Bool
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewManager wires the primary sink, the fallback player, and the policy.
func NewManager(sink Sink, fallback Fallback, policy PolicyFunc) *Manager {
	return &Manager{sink: sink, fallback: fallback, policy: policy}
}

// Unlock opens the output device. It must succeed once before Play is
// usable; calling it again after success is a no-op.
func (m *Manager) Unlock() error {
	if m.unlocked.Load() {
		return nil
	}
	if err := m.sink.Unlock(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeNotUnlocked, "unlock audio output")
	}
	m.unlocked.Store(true)
	slog.Info("audio output unlocked")
	return nil
}

// Unlocked reports whether the output device has been opened.
func (m *Manager) Unlocked() bool {
	return m.unlocked.Load()
}

// Play renders one clip and blocks until it finishes, is stopped, or
// fails on both tiers. Playing before Unlock is an error.
func (m *Manager) Play(ctx context.Context, clip speech.Clip) error {
	if !m.unlocked.Load() {
		return apperrors.New(apperrors.CodeNotUnlocked, "audio output not unlocked")
	}

	pctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	prevCancel, prevDone := m.cancel, m.done
	m.cancel, m.done = cancel, done
	m.mu.Unlock()

	// The previous clip must fully release the device before the new
	// one touches it, or their speaker teardowns interleave.
	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	defer func() {
		cancel()
		close(done)
		m.mu.Lock()
		// Another Play may have taken over already; only the owner
		// clears the slot.
		if m.done == done {
			m.cancel, m.done = nil, nil
		}
		m.mu.Unlock()
	}()

	err := m.sink.Play(pctx, clip)
	if err == nil || pctx.Err() != nil {
		return err
	}
	slog.Warn("primary playback failed, trying fallback", "error", err)

	switch m.policy() {
	case PolicyDisallowed:
		return apperrors.New(apperrors.CodeAutoplayBlocked, "playback policy forbids fallback")
	case PolicyAllowedMuted:
		return m.playSilently(pctx, clip)
	default:
		if err := m.fallback.Play(pctx, clip); err != nil {
			if pctx.Err() != nil {
				return pctx.Err()
			}
			return apperrors.Wrap(err, apperrors.CodePlaybackFailed, "fallback playback")
		}
		return nil
	}
}

// playSilently occupies the speaking slot for the clip's duration
// without emitting sound, so turn pacing stays natural.
func (m *Manager) playSilently(ctx context.Context, clip speech.Clip) error {
	dur, err := ClipDuration(clip)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodePlaybackFailed, "silent playback")
	}
	slog.Debug("playing clip silently", "duration", dur)

	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop halts the clip in progress, if any. The owning Play call clears
// the slot on its way out.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
