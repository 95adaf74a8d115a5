// Package capture owns the microphone for the duration of one SOS voice recording.
package capture

import (
	"bytes"
	"context"
	"sync"
	"time"

	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/errs"

	"github.com/pkg/errors"
)

// Microphone opens a capture device. Open fails when access is refused.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open device. Close stops the device and closes the Chunks channel.
type Stream interface {
	Chunks() <-chan []byte
	Close() error
}

// State of a Controller.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateCaptured
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateCaptured:
		return "captured"
	default:
		return "idle"
	}
}

// Recording is a finished capture ready for upload.
type Recording struct {
	Data        []byte
	ContentType string
	StartedAt   time.Time
	Duration    time.Duration
	Truncated   bool
}

// Size returns the recording length in bytes.
func (r *Recording) Size() int { return len(r.Data) }

// Controller runs at most one recording session at a time.
type Controller struct {
	mic      Microphone
	maxBytes int
	now      func() time.Time

	mu        sync.Mutex
	state     State
	stream    Stream
	release   *sync.Once
	collected chan struct{}
	buf       bytes.Buffer
	truncated bool
	startedAt time.Time
	recording *Recording
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxBytes caps a session. Audio past the cap is dropped and the recording marked truncated.
// Zero means unbounded.
func WithMaxBytes(n int) Option {
	return func(c *Controller) { c.maxBytes = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(mic Microphone, opts ...Option) *Controller {
	c := &Controller{mic: mic, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens the microphone and begins buffering. It is a no-op while already recording.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRecording:
		return nil
	case StateCaptured:
		return errs.ErrRecordingCaptured
	}

	stream, err := c.mic.Open(ctx)
	if err != nil {
		return errors.Wrapf(errs.ErrMicrophonePermissionDenied, "open microphone: %v", err)
	}

	c.stream = stream
	c.release = &sync.Once{}
	c.collected = make(chan struct{})
	c.buf.Reset()
	c.truncated = false
	c.startedAt = c.now()
	c.state = StateRecording

	go c.collect(stream.Chunks(), c.collected)
	return nil
}

func (c *Controller) collect(chunks <-chan []byte, done chan struct{}) {
	defer close(done)
	for chunk := range chunks {
		c.mu.Lock()
		if c.maxBytes > 0 && c.buf.Len()+len(chunk) > c.maxBytes {
			c.buf.Write(chunk[:c.maxBytes-c.buf.Len()])
			c.truncated = true
		} else {
			c.buf.Write(chunk)
		}
		c.mu.Unlock()
	}
}

// Stop releases the microphone and returns the captured audio.
// Calling Stop again returns the same recording without touching the device.
func (c *Controller) Stop() (*Recording, error) {
	c.mu.Lock()
	switch c.state {
	case StateCaptured:
		rec := c.recording
		c.mu.Unlock()
		return rec, nil
	case StateIdle:
		c.mu.Unlock()
		return nil, nil
	}
	stream, release, collected := c.stream, c.release, c.collected
	c.mu.Unlock()

	closeErr := c.releaseStream(stream, release)
	<-collected

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		// a concurrent Stop finished first
		return c.recording, nil
	}
	c.recording = &Recording{
		Data:        append([]byte(nil), c.buf.Bytes()...),
		ContentType: config.RecordingContentType,
		StartedAt:   c.startedAt,
		Duration:    c.now().Sub(c.startedAt),
		Truncated:   c.truncated,
	}
	c.stream = nil
	c.state = StateCaptured
	c.buf.Reset()
	if closeErr != nil {
		return c.recording, errors.Wrap(closeErr, "release microphone")
	}
	return c.recording, nil
}

// Recording returns the captured audio, or nil unless the controller is Captured.
func (c *Controller) Recording() *Recording {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCaptured {
		return nil
	}
	return c.recording
}

// Discard drops a captured recording and returns to Idle. An active session is stopped first.
func (c *Controller) Discard() {
	if c.State() == StateRecording {
		_, _ = c.Stop()
	}
	c.mu.Lock()
	c.recording = nil
	c.state = StateIdle
	c.mu.Unlock()
}

// Take hands the captured recording to the caller and resets the controller.
func (c *Controller) Take() *Recording {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCaptured {
		return nil
	}
	rec := c.recording
	c.recording = nil
	c.state = StateIdle
	return rec
}

// Close releases the device on teardown. Buffered audio is dropped.
func (c *Controller) Close() error {
	c.mu.Lock()
	stream, release, collected := c.stream, c.release, c.collected
	recording := c.state == StateRecording
	c.mu.Unlock()

	var err error
	if recording {
		err = c.releaseStream(stream, release)
		<-collected
	}

	c.mu.Lock()
	c.stream = nil
	c.recording = nil
	c.buf.Reset()
	c.state = StateIdle
	c.mu.Unlock()
	return err
}

func (c *Controller) releaseStream(s Stream, once *sync.Once) error {
	var err error
	once.Do(func() { err = s.Close() })
	return err
}
