package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Local is an in-process Store.
type Local struct {
	c *gocache.Cache
}

// NewLocal expires snapshots after maxAge.
func NewLocal(maxAge time.Duration) *Local {
	return &Local{c: gocache.New(maxAge, 2*maxAge)}
}

func (l *Local) Get(_ context.Context, key string) (*Snapshot, bool) {
	v, found := l.c.Get(key)
	if !found {
		return nil, false
	}
	s, ok := v.(Snapshot)
	if !ok {
		return nil, false
	}
	return clone(s), true
}

func (l *Local) Set(_ context.Context, key string, s Snapshot) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	l.c.Set(key, *clone(s), gocache.DefaultExpiration)
	return nil
}

func (l *Local) Invalidate(_ context.Context, key string) error {
	l.c.Delete(key)
	return nil
}
