package changefeed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"crimewatch/backend/internal/config"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RowLoader reads a row by primary key as JSON. PGSource uses it for keyed payloads.
type RowLoader interface {
	LoadRow(ctx context.Context, table, key string) (json.RawMessage, error)
}

// PGSource listens for NOTIFY payloads sent by the row triggers installed in the storage migration.
type PGSource struct {
	dsn     string
	channel string
	rows    RowLoader
	log     *logrus.Entry
}

func NewPGSource(dsn string, rows RowLoader, log *logrus.Entry) *PGSource {
	return &PGSource{dsn: dsn, channel: config.PGNotifyChannel, rows: rows, log: log}
}

func (s *PGSource) Connect(ctx context.Context) (Conn, error) {
	c := &pgConn{events: make(chan Event), failed: make(chan error, 1)}

	l := pq.NewListener(s.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			select {
			case c.failed <- err:
			default:
			}
		case pq.ListenerEventReconnected:
			s.log.Info("postgres listener reconnected")
		}
	})
	if err := l.Listen(s.channel); err != nil {
		_ = l.Close()
		return nil, errors.Wrapf(err, "listen %s", s.channel)
	}
	c.l = l

	go c.loop(ctx, s.rows, s.log)
	return c, nil
}

type pgConn struct {
	l      *pq.Listener
	events chan Event
	failed chan error

	mu   sync.Mutex
	err  error
	once sync.Once
}

func (c *pgConn) loop(ctx context.Context, rows RowLoader, log *logrus.Entry) {
	defer close(c.events)
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-c.failed:
			c.setErr(errors.Wrap(err, "postgres listener"))
			return
		case <-ping.C:
			go func() { _ = c.l.Ping() }()
		case n, ok := <-c.l.Notify:
			if !ok {
				return
			}
			if n == nil {
				// connection was re-established; notifications in between are lost
				continue
			}
			e, err := decodeNotify(ctx, n.Extra, rows)
			if err != nil {
				log.WithError(err).Warn("skipping notify payload")
				continue
			}
			select {
			case c.events <- e:
			case <-ctx.Done():
				return
			}
		}
	}
}

// decodeNotify parses a trigger payload. Rows over the NOTIFY size limit arrive as a key only
// and are loaded from rows.
func decodeNotify(ctx context.Context, payload string, rows RowLoader) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, errors.Wrap(err, "decode notify payload")
	}
	if len(e.Record) > 0 && string(e.Record) != "null" {
		return e, nil
	}
	if e.Key == "" {
		return Event{}, errors.New("notify payload without record or key")
	}
	if rows == nil {
		return Event{}, errors.Errorf("no row loader for %s %s", e.Table, e.Key)
	}
	rec, err := rows.LoadRow(ctx, e.Table, e.Key)
	if err != nil {
		return Event{}, errors.Wrapf(err, "load %s %s", e.Table, e.Key)
	}
	e.Record = rec
	return e, nil
}

func (c *pgConn) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *pgConn) Events() <-chan Event { return c.events }

func (c *pgConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *pgConn) Close() error {
	var err error
	c.once.Do(func() { err = c.l.Close() })
	return err
}
