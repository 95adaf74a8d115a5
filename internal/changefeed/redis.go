package changefeed

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"crimewatch/backend/internal/config"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Publisher pushes row changes to subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops events. Used when the database emits its own notifications.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// RedisPublisher publishes each event on "changes:<table>".
type RedisPublisher struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, prefix: config.ChangeChannelPrefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	if err := p.rdb.Publish(ctx, p.prefix+e.Table, payload).Err(); err != nil {
		return errors.Wrapf(err, "publish %s", e.Table)
	}
	return nil
}

// RedisSource pattern-subscribes to every change channel.
type RedisSource struct {
	rdb    *redis.Client
	prefix string
	log    *logrus.Entry
}

func NewRedisSource(rdb *redis.Client, log *logrus.Entry) *RedisSource {
	return &RedisSource{rdb: rdb, prefix: config.ChangeChannelPrefix, log: log}
}

func (s *RedisSource) Connect(ctx context.Context) (Conn, error) {
	ps := s.rdb.PSubscribe(ctx, s.prefix+"*")
	// Receive blocks until the subscription is confirmed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "psubscribe")
	}

	c := &redisConn{ps: ps, events: make(chan Event)}
	go c.loop(s.prefix, s.log)
	return c, nil
}

type redisConn struct {
	ps     *redis.PubSub
	events chan Event
	once   sync.Once
}

func (c *redisConn) loop(prefix string, log *logrus.Entry) {
	defer close(c.events)
	for msg := range c.ps.Channel() {
		e, err := decodeRedisMessage(prefix, msg.Channel, msg.Payload)
		if err != nil {
			log.WithError(err).WithField("channel", msg.Channel).Warn("skipping malformed change event")
			continue
		}
		c.events <- e
	}
}

// decodeRedisMessage fills in the table from the channel name when the payload omits it.
func decodeRedisMessage(prefix, channel, payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, errors.Wrap(err, "decode event")
	}
	if e.Table == "" {
		e.Table = strings.TrimPrefix(channel, prefix)
	}
	if len(e.Record) == 0 {
		return Event{}, errors.New("event without record")
	}
	return e, nil
}

func (c *redisConn) Events() <-chan Event { return c.events }

func (c *redisConn) Err() error { return nil }

func (c *redisConn) Close() error {
	var err error
	c.once.Do(func() {
		err = c.ps.Close()
		// unblock loop if it is mid-send
		go func() {
			for range c.events {
			}
		}()
	})
	return err
}
