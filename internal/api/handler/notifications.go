package handler

import (
	"net/http"

	"crimewatch/backend/internal/cache"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

// ListNotifications returns the caller's newest notifications and the total unread count.
func (h *Handler) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	feed := identity(c).Feed()
	limit := cast.ToInt(c.DefaultQuery("limit", cast.ToString(h.Config.FeedLimit)))

	items, err := h.Storage.ListNotifications(ctx, feed, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	unread, err := h.Storage.CountUnread(ctx, feed)
	if err != nil {
		h.fail(c, err)
		return
	}

	if h.Snapshots != nil {
		if err := h.Snapshots.Set(ctx, feed.Key(), cache.Snapshot{Items: items, Unread: int(unread)}); err != nil {
			h.Log.WithError(err).Warn("failed to refresh notification snapshot")
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "unread": unread})
}

func (h *Handler) CountUnread(c *gin.Context) {
	unread, err := h.Storage.CountUnread(c.Request.Context(), identity(c).Feed())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": unread})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.Storage.MarkNotificationRead(c.Request.Context(), identity(c).Feed(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	if err := h.Storage.MarkAllNotificationsRead(c.Request.Context(), identity(c).Feed()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
