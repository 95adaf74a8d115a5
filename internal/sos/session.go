// Package sos runs the citizen side of an SOS: location, nearest station, message and voice
// recording, and the send lifecycle around them.
package sos

import (
	"context"
	"sync"
	"time"

	"crimewatch/backend/internal/capture"
	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/dispatch"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/geo"
)

// Sender delivers a request. *dispatch.Dispatcher and *HTTPSender implement it.
type Sender interface {
	Send(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusError   Status = "error"
)

// State is a snapshot of a Session for rendering.
type State struct {
	Status       Status
	Location     *geo.Point
	Station      *geo.Station
	Message      string
	Recorder     capture.State
	HasRecording bool
	Result       *dispatch.Result
	Err          error
}

type Session struct {
	resolver *geo.Resolver
	recorder *capture.Controller
	sender   Sender
	reporter dispatch.Reporter
	window   time.Duration
	onChange func(State)

	mu       sync.Mutex
	location *geo.Point
	station  *geo.Station
	message  string
	status   Status
	result   *dispatch.Result
	err      error
	reset    *time.Timer
}

type Option func(*Session)

// WithSuccessWindow sets how long the sent state is shown before the session resets.
func WithSuccessWindow(d time.Duration) Option { return func(s *Session) { s.window = d } }

func WithReporter(r dispatch.Reporter) Option { return func(s *Session) { s.reporter = r } }

// WithOnChange is called after each status transition, outside the session lock.
func WithOnChange(f func(State)) Option { return func(s *Session) { s.onChange = f } }

func NewSession(resolver *geo.Resolver, recorder *capture.Controller, sender Sender, opts ...Option) *Session {
	s := &Session{
		resolver: resolver,
		recorder: recorder,
		sender:   sender,
		window:   config.SuccessDisplayWindow,
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateLocation records a fresh fix and re-resolves the nearest station.
func (s *Session) UpdateLocation(p geo.Point) *geo.Station {
	st := s.resolver.Resolve(p)
	s.mu.Lock()
	s.location = &p
	s.station = st
	s.mu.Unlock()
	return st
}

func (s *Session) SetMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

// StartRecording is refused with ErrInFlight while an alert is sending or its success is shown.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusSending || s.status == StatusSent {
		return errs.ErrInFlight
	}
	return s.recorder.Start(ctx)
}

func (s *Session) StopRecording() (*capture.Recording, error) { return s.recorder.Stop() }

func (s *Session) DiscardRecording() { s.recorder.Discard() }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		Status:       s.status,
		Location:     s.location,
		Station:      s.station,
		Message:      s.message,
		Recorder:     s.recorder.State(),
		HasRecording: s.recorder.Recording() != nil,
		Result:       s.result,
		Err:          s.err,
	}
}

// Send submits the current location, message and captured recording. Validation errors are
// returned without a status change. While a send is pending or its success is displayed,
// Send returns ErrInFlight.
func (s *Session) Send(ctx context.Context) (*dispatch.Result, error) {
	s.mu.Lock()
	if s.status == StatusSending || s.status == StatusSent {
		s.mu.Unlock()
		return nil, errs.ErrInFlight
	}
	if s.recorder.State() == capture.StateRecording {
		if _, err := s.recorder.Stop(); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	req := dispatch.Request{
		Location:  s.location,
		Station:   s.station,
		Message:   s.message,
		Recording: s.recorder.Recording(),
		Reporter:  s.reporter,
	}
	if err := dispatch.Validate(req); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.status = StatusSending
	s.err = nil
	st := s.stateLocked()
	s.mu.Unlock()
	s.changed(st)

	res, err := s.sender.Send(ctx, req)

	s.mu.Lock()
	if err != nil {
		// keep message and recording for a retry
		s.status = StatusError
		s.err = err
		st = s.stateLocked()
		s.mu.Unlock()
		s.changed(st)
		return nil, err
	}
	s.status = StatusSent
	s.result = res
	s.recorder.Take()
	s.reset = time.AfterFunc(s.window, s.expireSuccess)
	st = s.stateLocked()
	s.mu.Unlock()
	s.changed(st)
	return res, nil
}

func (s *Session) expireSuccess() {
	s.mu.Lock()
	if s.status != StatusSent {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	st := s.stateLocked()
	s.mu.Unlock()
	s.changed(st)
}

func (s *Session) resetLocked() {
	if s.reset != nil {
		s.reset.Stop()
		s.reset = nil
	}
	s.status = StatusIdle
	s.message = ""
	s.result = nil
	s.err = nil
	s.recorder.Discard()
}

// Dismiss clears a displayed success or failure. A dismissed failure keeps the entered data.
func (s *Session) Dismiss() {
	s.mu.Lock()
	switch s.status {
	case StatusSent:
		s.resetLocked()
	case StatusError:
		s.status = StatusIdle
		s.err = nil
	default:
		s.mu.Unlock()
		return
	}
	st := s.stateLocked()
	s.mu.Unlock()
	s.changed(st)
}

// Close stops timers and releases the microphone.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.reset != nil {
		s.reset.Stop()
		s.reset = nil
	}
	s.mu.Unlock()
	return s.recorder.Close()
}

func (s *Session) changed(st State) {
	if s.onChange != nil {
		s.onChange(st)
	}
}
