// Package handler exposes the SOS, alert and notification HTTP API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"crimewatch/backend/internal/analysis"
	"crimewatch/backend/internal/cache"
	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/dispatch"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/geo"
	"crimewatch/backend/internal/hub"
	"crimewatch/backend/internal/models"
	"crimewatch/backend/internal/sos"
	"crimewatch/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Sender dispatches an alert. *dispatch.Dispatcher implements it.
type Sender interface {
	Send(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

// Analyzer classifies video evidence. *analysis.Analyzer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, videoURL, reportID string) (*analysis.Result, error)
}

type Handler struct {
	Hub       *hub.ManagerService
	Storage   storage.Storage
	Sender    Sender
	Resolver  *geo.Resolver
	Analyzer  Analyzer
	Snapshots cache.Store
	Config    *config.Config
	Log       *logrus.Entry
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/token", h.GetCitizenToken)
	r.POST("/token/officer", h.GetOfficerToken)
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api", h.AuthRequired())
	api.GET("/stations", h.ListStations)
	api.GET("/stations/nearest", h.NearestStation)
	api.POST("/sos", h.SendSOS)

	api.GET("/alerts", RequireRole(models.RoleOfficer), h.ListAlerts)
	api.GET("/alerts/mine", h.ListMyAlerts)
	api.PATCH("/alerts/:id/status", RequireRole(models.RoleOfficer), h.UpdateAlertStatus)

	api.GET("/notifications", h.ListNotifications)
	api.GET("/notifications/unread", h.CountUnread)
	api.POST("/notifications/read-all", h.MarkAllNotificationsRead)
	api.POST("/notifications/:id/read", h.MarkNotificationRead)

	api.POST("/evidence/analyze", h.AnalyzeEvidence)
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errs.IsValidation(err), errors.Is(err, errs.ErrInvalidStatus), errors.Is(err, errs.ErrVideoURLRequired):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, errs.ErrRecordingTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errs.ErrUploadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, sos.ErrorResponse{Error: err.Error(), Code: errs.Code(err)})
}

// fail logs server-side errors and writes the error body.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	abortError(c, status, err)
}
