// Package audio handles microphone capture with backpressure
package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/talkrally/platform/internal/errors"
)

// Chunk represents one captured frame of mono float32 samples.
type Chunk struct {
	Data      []float32
	Timestamp int64
}

// Capturer owns the default input device for the lifetime of one session.
// Frames are pushed to Output with a non-blocking send; when the consumer
// falls behind (a turn is in flight) frames are dropped rather than queued.
type Capturer struct {
	outCh        chan Chunk
	sampleRate   int
	framesPerBuf int

	mu      sync.Mutex
	running bool
	stream  *portaudio.Stream
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewCapturer creates a capturer. bufferSize is the Output channel depth.
func NewCapturer(sampleRate, framesPerBuf, bufferSize int) (*Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCaptureDeviceUnavailable, "portaudio init failed")
	}

	return &Capturer{
		outCh:        make(chan Chunk, bufferSize),
		sampleRate:   sampleRate,
		framesPerBuf: framesPerBuf,
	}, nil
}

// Output returns the channel for receiving audio chunks.
func (c *Capturer) Output() <-chan Chunk { return c.outCh }

// Start opens the default input device and begins the read loop.
func (c *Capturer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	buf := make([]float32, c.framesPerBuf)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.sampleRate), len(buf), buf)
	if err != nil {
		return errors.Wrap(err, errors.CodeCaptureDeviceUnavailable, "cannot open default input device")
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return errors.Wrap(err, errors.CodeCaptureDeviceUnavailable, "cannot start input stream")
	}

	capCtx, cancel := context.WithCancel(ctx)
	c.stream = stream
	c.cancel = cancel
	c.running = true
	c.done = make(chan struct{})

	slog.Info("started audio capture", "sample_rate", c.sampleRate, "frames_per_buffer", c.framesPerBuf)

	go func() {
		defer close(c.done)
		for {
			select {
			case <-capCtx.Done():
				return
			default:
			}

			if err := stream.Read(); err != nil {
				slog.Debug("audio read error", "error", err)
				return
			}

			chunk := Chunk{
				Data:      append([]float32(nil), buf...),
				Timestamp: time.Now().UnixNano(),
			}

			select {
			case c.outCh <- chunk:
			default:
				slog.Debug("audio buffer full, dropping chunk")
			}
		}
	}()

	return nil
}

// Stop halts capture and releases the device. A later session must be able
// to reacquire the microphone, so the stream is fully stopped and closed.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	c.cancel()
	_ = c.stream.Stop()
	<-c.done
	_ = c.stream.Close()
	c.stream = nil
	c.running = false
}

// Close tears down the audio backend. The capturer is unusable after.
func (c *Capturer) Close() {
	c.Stop()
	_ = portaudio.Terminate()
}
