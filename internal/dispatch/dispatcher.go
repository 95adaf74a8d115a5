// Package dispatch turns a validated SOS request into a stored recording and alert row.
package dispatch

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"crimewatch/backend/internal/blob"
	"crimewatch/backend/internal/capture"
	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/geo"
	"crimewatch/backend/internal/metrics"
	"crimewatch/backend/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AlertStore persists alerts and recording metadata.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert *models.SOSAlert) error
	InsertVoiceRecording(ctx context.Context, rec *models.VoiceRecording) error
}

// Reporter identifies the citizen. An empty ID is an anonymous reporter.
type Reporter struct {
	ID      string
	Name    string
	Contact string
}

type Request struct {
	Location  *geo.Point
	Station   *geo.Station
	Message   string
	Recording *capture.Recording
	Reporter  Reporter
	// ReportedAt defaults to the dispatcher clock.
	ReportedAt time.Time
}

// Result of a successful send. Warning is set when the recording could not be uploaded
// and the alert went out text-only.
type Result struct {
	AlertID      string
	RecordingURL string
	Alert        *models.SOSAlert
	Warning      error
}

type Dispatcher struct {
	blobs   blob.Store
	alerts  AlertStore
	log     *logrus.Entry
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex
	inFlight map[string]bool
}

type Option func(*Dispatcher)

func WithMetrics(m *metrics.Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }
func WithClock(now func() time.Time) Option  { return func(d *Dispatcher) { d.now = now } }
func WithIDs(newID func() string) Option     { return func(d *Dispatcher) { d.newID = newID } }

func New(blobs blob.Store, alerts AlertStore, log *logrus.Entry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		blobs:    blobs,
		alerts:   alerts,
		log:      log,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Validate checks the preconditions of Send without touching storage.
func Validate(req Request) error {
	if req.Location == nil {
		return errs.ErrLocationUnavailable
	}
	if !req.Location.Valid() {
		return errors.Wrapf(errs.ErrLocationUnavailable, "invalid coordinates %v,%v", req.Location.Lat, req.Location.Lng)
	}
	if strings.TrimSpace(req.Message) == "" && (req.Recording == nil || len(req.Recording.Data) == 0) {
		return errs.ErrEmptyPayload
	}
	return nil
}

// RecordingKey is the object key of an alert's recording.
func RecordingKey(reporterID, alertID string) string {
	folder := reporterID
	if folder == "" {
		folder = config.AnonymousFolder
	}
	return folder + "/" + alertID + config.RecordingExtension
}

// Send uploads the recording, then writes the alert. If the alert write fails the uploaded
// recording is deleted again.
func (d *Dispatcher) Send(ctx context.Context, req Request) (*Result, error) {
	if err := Validate(req); err != nil {
		d.metrics.AlertOutcome("rejected")
		return nil, err
	}

	if id := req.Reporter.ID; id != "" {
		if !d.acquire(id) {
			d.metrics.AlertOutcome("busy")
			return nil, errs.ErrInFlight
		}
		defer d.release(id)
	}

	alertID := d.newID()
	log := d.log.WithField("alert_id", alertID)
	res := &Result{AlertID: alertID}
	message := strings.TrimSpace(req.Message)

	var key string
	if rec := req.Recording; rec != nil && len(rec.Data) > 0 {
		key = RecordingKey(req.Reporter.ID, alertID)
		contentType := rec.ContentType
		if contentType == "" {
			contentType = config.RecordingContentType
		}
		url, err := d.blobs.Put(ctx, key, bytes.NewReader(rec.Data), int64(len(rec.Data)), contentType)
		if err != nil {
			d.metrics.UploadFailed()
			if message == "" {
				d.metrics.AlertOutcome("failed")
				return nil, errors.Wrapf(errs.ErrUploadFailed, "%v", err)
			}
			log.WithError(err).Warn("recording upload failed, sending text only")
			res.Warning = errors.Wrapf(errs.ErrUploadFailed, "%v", err)
			key = ""
		} else {
			res.RecordingURL = url
		}
	}

	alert := d.buildAlert(alertID, req, message, res.RecordingURL)
	if err := d.alerts.InsertAlert(ctx, alert); err != nil {
		if key != "" {
			d.compensate(ctx, log, key)
		}
		d.metrics.AlertOutcome("failed")
		return nil, errors.Wrapf(errs.ErrDispatchFailed, "%v", err)
	}
	res.Alert = alert

	if res.RecordingURL != "" {
		err := d.alerts.InsertVoiceRecording(ctx, &models.VoiceRecording{AlertID: alertID, RecordingURL: res.RecordingURL})
		if err != nil {
			// the alert row already carries the URL
			log.WithError(err).Warn("failed to save voice recording metadata")
		}
	}

	d.metrics.AlertOutcome("sent")
	log.WithFields(logrus.Fields{
		"location":      alert.Location,
		"has_recording": res.RecordingURL != "",
	}).Info("SOS alert dispatched")
	return res, nil
}

func (d *Dispatcher) buildAlert(id string, req Request, message, recordingURL string) *models.SOSAlert {
	reportedAt := req.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = d.now()
	}
	lat, lng := req.Location.Lat, req.Location.Lng

	alert := &models.SOSAlert{
		AlertID:        id,
		ReportedBy:     config.AnonymousReporter,
		ReporterID:     req.Reporter.ID,
		ContactInfo:    req.Reporter.Contact,
		ContactUser:    true,
		ReportedTime:   reportedAt.UTC(),
		Status:         config.StatusNew,
		Location:       geo.LocationLabel(req.Station),
		Latitude:       &lat,
		Longitude:      &lng,
		UrgencyLevel:   config.UrgencyHigh,
		MapRedirectURL: models.MapURL(lat, lng),
	}
	if name := strings.TrimSpace(req.Reporter.Name); name != "" {
		alert.ReportedBy = name
	}
	if message != "" {
		alert.Message = &message
	}
	if recordingURL != "" {
		alert.VoiceRecording = &recordingURL
	}
	return alert
}

// compensate removes a recording whose alert was never written. A failure here leaves an
// orphan for the reconciler.
func (d *Dispatcher) compensate(ctx context.Context, log *logrus.Entry, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := d.blobs.Delete(ctx, key); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to delete orphaned recording")
		return
	}
	log.WithField("key", key).Info("deleted recording of failed alert")
}

func (d *Dispatcher) acquire(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight[id] {
		return false
	}
	d.inFlight[id] = true
	return true
}

func (d *Dispatcher) release(id string) {
	d.mu.Lock()
	delete(d.inFlight, id)
	d.mu.Unlock()
}
