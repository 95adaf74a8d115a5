package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"crimewatch/backend/internal/capture"
	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/dispatch"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/geo"
	"crimewatch/backend/internal/sos"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

const multipartMemory = 8 << 20

// ListStations returns the fixed station list.
func (h *Handler) ListStations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stations": h.Resolver.Stations()})
}

// NearestStation resolves ?lat=&lng= to the closest station and its distance in km.
func (h *Handler) NearestStation(c *gin.Context) {
	p, ok := parsePoint(c.Query("lat"), c.Query("lng"))
	if !ok {
		abortError(c, http.StatusBadRequest, errs.ErrLocationUnavailable)
		return
	}
	st := h.Resolver.Resolve(*p)
	if st == nil {
		c.JSON(http.StatusOK, gin.H{"station": nil, "location": config.UnknownLocation})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"station":     st,
		"location":    geo.LocationLabel(st),
		"distance_km": geo.Distance(*p, st.Point()),
	})
}

func parsePoint(lat, lng string) (*geo.Point, bool) {
	if strings.TrimSpace(lat) == "" || strings.TrimSpace(lng) == "" {
		return nil, false
	}
	la, err1 := cast.ToFloat64E(strings.TrimSpace(lat))
	ln, err2 := cast.ToFloat64E(strings.TrimSpace(lng))
	p := geo.Point{Lat: la, Lng: ln}
	if err1 != nil || err2 != nil || !p.Valid() {
		return nil, false
	}
	return &p, true
}

// SendSOS accepts the multipart form written by sos.HTTPSender.
func (h *Handler) SendSOS(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		abortError(c, http.StatusBadRequest, errors.Wrap(err, "invalid form"))
		return
	}

	req := dispatch.Request{
		Message: c.PostForm(sos.FieldMessage),
		Reporter: dispatch.Reporter{
			ID:      identity(c).UserID,
			Name:    strings.TrimSpace(c.PostForm(sos.FieldReporterName)),
			Contact: strings.TrimSpace(c.PostForm(sos.FieldContactInfo)),
		},
		ReportedAt: time.Now().UTC(),
	}
	if p, ok := parsePoint(c.PostForm(sos.FieldLatitude), c.PostForm(sos.FieldLongitude)); ok {
		req.Location = p
		req.Station = h.stationFor(c.PostForm(sos.FieldStationID), *p)
	}

	rec, err := h.readRecording(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	req.Recording = rec

	res, err := h.Sender.Send(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := sos.SendResponse{AlertID: res.AlertID, RecordingURL: res.RecordingURL, Alert: res.Alert}
	if res.Warning != nil {
		out.Warning = res.Warning.Error()
		out.WarningCode = errs.Code(res.Warning)
	}
	c.JSON(http.StatusCreated, out)
}

// stationFor prefers the station the client resolved, falling back to the nearest one.
func (h *Handler) stationFor(id string, p geo.Point) *geo.Station {
	if id = strings.TrimSpace(id); id != "" {
		for _, st := range h.Resolver.Stations() {
			if st.ID == id {
				st := st
				return &st
			}
		}
	}
	return h.Resolver.Resolve(p)
}

func (h *Handler) readRecording(c *gin.Context) (*capture.Recording, error) {
	fh, err := c.FormFile(sos.FieldRecording)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(errs.ErrUploadFailed, "read recording: %v", err)
	}

	limit := int64(h.Config.MaxRecordingBytes)
	if limit > 0 && fh.Size > limit {
		return nil, errors.Wrapf(errs.ErrRecordingTooLarge, "%d bytes, limit %d", fh.Size, limit)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrapf(errs.ErrUploadFailed, "open recording: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrUploadFailed, "read recording: %v", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = config.RecordingContentType
	}
	return &capture.Recording{Data: data, ContentType: contentType}, nil
}
