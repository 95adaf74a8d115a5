// Package notify keeps the bounded, de-duplicated notification list behind a bell icon.
package notify

import (
	"context"
	"sort"
	"sync"

	"crimewatch/backend/internal/cache"
	"crimewatch/backend/internal/changefeed"
	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/logger"
	"crimewatch/backend/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FeedStore is the server side of a notification feed.
type FeedStore interface {
	ListNotifications(ctx context.Context, feed models.Feed, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, feed models.Feed, id string) error
	MarkAllNotificationsRead(ctx context.Context, feed models.Feed) error
}

// View is what a bell renders.
type View struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
	// Stale is set when Items came from the snapshot cache instead of the server.
	Stale bool `json:"stale"`
}

type Bell struct {
	feed      models.Feed
	store     FeedStore
	snapshots cache.Store
	limit     int
	log       *logrus.Entry
	onChange  func(View)

	mu     sync.Mutex
	items  []models.Notification
	unread int
	stale  bool
	// seen maps recently delivered ids to their read flag
	seen *lru.Cache[string, bool]
}

type Option func(*Bell)

// WithLimit bounds the list. Defaults to config.NotificationFeedLimit.
func WithLimit(n int) Option {
	return func(b *Bell) {
		if n > 0 {
			b.limit = n
		}
	}
}

func WithLogger(l *logrus.Entry) Option { return func(b *Bell) { b.log = l } }

// WithOnChange registers a callback run after every state change, outside the lock.
func WithOnChange(f func(View)) Option { return func(b *Bell) { b.onChange = f } }

func NewBell(feed models.Feed, store FeedStore, snapshots cache.Store, opts ...Option) *Bell {
	seen, _ := lru.New[string, bool](config.SeenWindowSize)
	b := &Bell{
		feed:      feed,
		store:     store,
		snapshots: snapshots,
		limit:     config.NotificationFeedLimit,
		log:       logger.Discard(),
		seen:      seen,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// View returns a copy of the current state.
func (b *Bell) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

func (b *Bell) viewLocked() View {
	return View{
		Items:  append([]models.Notification(nil), b.items...),
		Unread: b.unread,
		Stale:  b.stale,
	}
}

// Load performs the initial bounded fetch. When the fetch fails the last snapshot is used
// and the view is marked stale. Without a snapshot it returns ErrFetchFailed.
func (b *Bell) Load(ctx context.Context) error {
	items, err := b.store.ListNotifications(ctx, b.feed, b.limit)
	if err != nil {
		snap, ok := b.snapshots.Get(ctx, b.feed.Key())
		if !ok {
			return errors.Wrapf(errs.ErrFetchFailed, "%v", err)
		}
		b.log.WithError(err).Warn("notification fetch failed, using cached snapshot")
		b.mu.Lock()
		b.replaceLocked(snap.Items)
		b.unread = snap.Unread
		b.stale = true
		v := b.viewLocked()
		b.mu.Unlock()
		b.changed(v)
		return nil
	}

	b.mu.Lock()
	b.replaceLocked(items)
	b.unread = 0
	for _, n := range b.items {
		if !n.IsRead {
			b.unread++
		}
	}
	b.stale = false
	v := b.viewLocked()
	b.mu.Unlock()

	b.save(ctx, v)
	b.changed(v)
	return nil
}

func (b *Bell) replaceLocked(items []models.Notification) {
	b.items = append([]models.Notification(nil), items...)
	sort.SliceStable(b.items, func(i, j int) bool { return b.items[i].CreatedAt.After(b.items[j].CreatedAt) })
	if len(b.items) > b.limit {
		b.items = b.items[:b.limit]
	}
	for _, n := range b.items {
		b.seen.Add(n.ID, n.IsRead)
	}
}

// Apply adds a pushed notification. Repeated deliveries of the same id are ignored; it reports
// whether n was new.
func (b *Bell) Apply(n models.Notification) bool {
	b.mu.Lock()
	if b.seen.Contains(n.ID) {
		b.mu.Unlock()
		return false
	}

	b.seen.Add(n.ID, n.IsRead)
	// out-of-order events land at their created_at position
	pos := sort.Search(len(b.items), func(i int) bool { return !b.items[i].CreatedAt.After(n.CreatedAt) })
	b.items = append(b.items, models.Notification{})
	copy(b.items[pos+1:], b.items[pos:])
	b.items[pos] = n
	if len(b.items) > b.limit {
		b.items = b.items[:b.limit]
	}
	if !n.IsRead {
		b.unread++
	}
	v := b.viewLocked()
	b.mu.Unlock()

	b.save(context.Background(), v)
	b.changed(v)
	return true
}

// ApplyUpdate syncs the read flag of a known notification changed elsewhere.
func (b *Bell) ApplyUpdate(n models.Notification) {
	b.mu.Lock()
	if !b.seen.Contains(n.ID) || !b.syncReadLocked(n) {
		b.mu.Unlock()
		return
	}
	v := b.viewLocked()
	b.mu.Unlock()

	b.save(context.Background(), v)
	b.changed(v)
}

// syncReadLocked copies the read flag of n into local state.
func (b *Bell) syncReadLocked(n models.Notification) bool {
	wasRead, _ := b.seen.Peek(n.ID)
	if wasRead == n.IsRead {
		return false
	}
	b.seen.Add(n.ID, n.IsRead)
	for i := range b.items {
		if b.items[i].ID == n.ID {
			b.items[i].IsRead = n.IsRead
		}
	}
	if n.IsRead {
		b.decUnreadLocked()
	} else {
		b.unread++
	}
	return true
}

func (b *Bell) decUnreadLocked() {
	if b.unread > 0 {
		b.unread--
	}
}

// MarkRead marks one notification read, optimistically. A failed request rolls the change back.
func (b *Bell) MarkRead(ctx context.Context, id string) error {
	b.mu.Lock()
	idx := b.indexLocked(id)
	if idx >= 0 && b.items[idx].IsRead {
		b.mu.Unlock()
		return nil
	}
	if idx < 0 {
		if read, ok := b.seen.Peek(id); ok && read {
			b.mu.Unlock()
			return nil
		}
	}
	wasSeen := b.seen.Contains(id)
	if idx >= 0 {
		b.items[idx].IsRead = true
	}
	if wasSeen {
		b.seen.Add(id, true)
		b.decUnreadLocked()
	}
	v := b.viewLocked()
	b.mu.Unlock()
	b.save(ctx, v)
	b.changed(v)

	if err := b.store.MarkNotificationRead(ctx, b.feed, id); err != nil {
		b.mu.Lock()
		if i := b.indexLocked(id); i >= 0 {
			b.items[i].IsRead = false
		}
		if wasSeen {
			b.seen.Add(id, false)
			b.unread++
		}
		v := b.viewLocked()
		b.mu.Unlock()
		b.save(ctx, v)
		b.changed(v)
		return errors.Wrapf(errs.ErrUpdateFailed, "mark %s read: %v", id, err)
	}
	return nil
}

// MarkAllRead clears the unread count, optimistically.
func (b *Bell) MarkAllRead(ctx context.Context) error {
	b.mu.Lock()
	var flipped []string
	for i := range b.items {
		if !b.items[i].IsRead {
			b.items[i].IsRead = true
			b.seen.Add(b.items[i].ID, true)
			flipped = append(flipped, b.items[i].ID)
		}
	}
	prevUnread := b.unread
	if prevUnread == 0 && len(flipped) == 0 {
		b.mu.Unlock()
		return nil
	}
	b.unread = 0
	v := b.viewLocked()
	b.mu.Unlock()
	b.save(ctx, v)
	b.changed(v)

	if err := b.store.MarkAllNotificationsRead(ctx, b.feed); err != nil {
		b.mu.Lock()
		for _, id := range flipped {
			if i := b.indexLocked(id); i >= 0 {
				b.items[i].IsRead = false
			}
			b.seen.Add(id, false)
		}
		b.unread += prevUnread
		v := b.viewLocked()
		b.mu.Unlock()
		b.save(ctx, v)
		b.changed(v)
		return errors.Wrapf(errs.ErrUpdateFailed, "mark all read: %v", err)
	}
	return nil
}

func (b *Bell) indexLocked(id string) int {
	for i := range b.items {
		if b.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Bell) save(ctx context.Context, v View) {
	err := b.snapshots.Set(ctx, b.feed.Key(), cache.Snapshot{Items: v.Items, Unread: v.Unread})
	if err != nil {
		b.log.WithError(err).Warn("failed to save notification snapshot")
	}
}

func (b *Bell) changed(v View) {
	if b.onChange != nil {
		b.onChange(v)
	}
}

// Events is the consuming side of a change-feed subscription.
type Events interface {
	Events() <-chan changefeed.Event
	Errors() <-chan error
}

// Watch applies pushed rows until ctx ends or the subscription closes.
func (b *Bell) Watch(ctx context.Context, sub Events) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Errors():
			b.log.WithError(err).Error("notification feed unavailable")
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			b.HandleEvent(e)
		}
	}
}

// HandleEvent applies one change-feed event for this bell's table.
func (b *Bell) HandleEvent(e changefeed.Event) {
	if e.Table != b.feed.Table() {
		return
	}
	var n models.Notification
	if err := e.Decode(&n); err != nil || n.ID == "" {
		b.log.WithError(err).Warn("skipping undecodable notification event")
		return
	}
	if b.feed.Role == models.RoleCitizen && n.UserID != b.feed.UserID {
		return
	}
	if e.Type == changefeed.Update {
		b.ApplyUpdate(n)
		return
	}
	b.Apply(n)
}
