package changefeed

import (
	"context"
	"sync"
	"time"

	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Source opens connections to a change feed.
type Source interface {
	Connect(ctx context.Context) (Conn, error)
}

// Conn is one live connection. Events is closed when the connection drops; Err then reports why.
type Conn interface {
	Events() <-chan Event
	Err() error
	Close() error
}

var errConnClosed = errors.New("change feed connection closed")

// Subscription is a filtered, self-reconnecting stream of events.
// Close must be called when the consumer goes away.
type Subscription struct {
	filter      Filter
	src         Source
	log         *logrus.Entry
	maxFailures int
	newBackOff  func() backoff.BackOff

	events chan Event
	errors chan error
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Option configures a Subscription.
type Option func(*Subscription)

// WithMaxFailures sets how many consecutive connection failures are absorbed before ErrSubscription is reported.
func WithMaxFailures(n int) Option {
	return func(s *Subscription) { s.maxFailures = n }
}

// WithBackOff replaces the exponential reconnect policy.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(s *Subscription) { s.newBackOff = f }
}

func WithLogger(l *logrus.Entry) Option {
	return func(s *Subscription) { s.log = l }
}

// Subscribe starts delivering events matching f until ctx ends or Close is called.
func Subscribe(ctx context.Context, src Source, f Filter, opts ...Option) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		filter:      f,
		src:         src,
		log:         logger.Discard(),
		maxFailures: config.SubscriptionMaxFailures,
		newBackOff:  defaultBackOff,
		events:      make(chan Event, 64),
		errors:      make(chan error, 1),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("filter", f.String())

	go s.run(ctx)
	return s
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Events yields matching events. It is closed after Close.
func (s *Subscription) Events() <-chan Event { return s.events }

// Errors yields ErrSubscription each time reconnection keeps failing. Reconnection continues regardless.
func (s *Subscription) Errors() <-chan error { return s.errors }

// Close stops the subscription and waits for its goroutine to exit. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	b := s.newBackOff()
	failures := 0
	for {
		conn, err := s.src.Connect(ctx)
		if err == nil {
			failures = 0
			b.Reset()
			err = s.pump(ctx, conn)
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			return
		}

		failures++
		s.log.WithError(err).WithField("attempt", failures).Warn("change feed dropped, reconnecting")
		if failures >= s.maxFailures {
			s.report(errors.Wrapf(errs.ErrSubscription, "%d consecutive failures: %v", failures, err))
			failures = 0
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			s.report(errors.Wrap(errs.ErrSubscription, "reconnect budget exhausted"))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *Subscription) pump(ctx context.Context, conn Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-conn.Events():
			if !ok {
				if err := conn.Err(); err != nil {
					return err
				}
				return errConnClosed
			}
			if !s.filter.Match(e) {
				continue
			}
			select {
			case s.events <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (s *Subscription) report(err error) {
	s.log.WithError(err).Error("change feed subscription failing")
	select {
	case s.errors <- err:
	default:
	}
}
