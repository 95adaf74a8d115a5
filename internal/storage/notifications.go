package storage

import (
	"context"

	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// scope narrows a query to the feed's rows.
func scope(db *gorm.DB, feed models.Feed) *gorm.DB {
	q := db.Table(feed.Table())
	if feed.Role == models.RoleCitizen {
		q = q.Where("user_id = ?", feed.UserID)
	}
	return q
}

// ListNotifications returns the newest notifications of a feed.
func (s *Service) ListNotifications(ctx context.Context, feed models.Feed, limit int) ([]models.Notification, error) {
	q := scope(s.DB.WithContext(ctx), feed).Order("created_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if feed.Role == models.RoleCitizen {
		var rows []models.UserNotification
		if err := q.Find(&rows).Error; err != nil {
			return nil, errors.Wrap(err, "list user notifications")
		}
		out := make([]models.Notification, len(rows))
		for i, r := range rows {
			out[i] = r.View()
		}
		return out, nil
	}

	var rows []models.OfficerNotification
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list officer notifications")
	}
	out := make([]models.Notification, len(rows))
	for i, r := range rows {
		out[i] = r.View()
	}
	return out, nil
}

// MarkNotificationRead is idempotent; an unknown id (or one outside the feed) is ErrNotFound.
func (s *Service) MarkNotificationRead(ctx context.Context, feed models.Feed, id string) error {
	res := scope(s.DB.WithContext(ctx), feed).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return errors.Wrap(res.Error, "mark notification read")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errs.ErrNotFound, "notification %s", id)
	}
	return nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, feed models.Feed) error {
	err := scope(s.DB.WithContext(ctx), feed).Where("is_read = ?", false).Update("is_read", true).Error
	return errors.Wrap(err, "mark all notifications read")
}

func (s *Service) CountUnread(ctx context.Context, feed models.Feed) (int64, error) {
	var n int64
	err := scope(s.DB.WithContext(ctx), feed).Where("is_read = ?", false).Count(&n).Error
	return n, errors.Wrap(err, "count unread")
}
