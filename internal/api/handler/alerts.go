package handler

import (
	"net/http"
	"strings"

	"crimewatch/backend/internal/errs"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

const defaultAlertLimit = 50

type statusRequest struct {
	Status       string  `json:"status" binding:"required"`
	DispatchTeam *string `json:"dispatch_team"`
}

// ListAlerts returns the newest alerts for the officer dashboard.
func (h *Handler) ListAlerts(c *gin.Context) {
	limit := cast.ToInt(c.DefaultQuery("limit", cast.ToString(defaultAlertLimit)))
	alerts, err := h.Storage.ListAlerts(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// ListMyAlerts returns the caller's own alerts.
func (h *Handler) ListMyAlerts(c *gin.Context) {
	alerts, err := h.Storage.ListUserAlerts(c.Request.Context(), identity(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// UpdateAlertStatus sets New, In Progress or Resolved and an optional dispatch team.
func (h *Handler) UpdateAlertStatus(c *gin.Context) {
	var body statusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, errors.Wrapf(errs.ErrInvalidStatus, "%v", err))
		return
	}

	alert, err := h.Storage.UpdateAlertStatus(c.Request.Context(), c.Param("id"), strings.TrimSpace(body.Status), body.DispatchTeam)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Log.WithFields(logrus.Fields{
		"alert_id": alert.AlertID,
		"status":   alert.Status,
		"officer":  identity(c).UserID,
	}).Info("alert status updated")
	c.JSON(http.StatusOK, gin.H{"alert": alert})
}
