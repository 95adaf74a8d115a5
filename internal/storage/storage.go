package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crimewatch/backend/internal/changefeed"
	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Storage interface {
	InsertAlert(ctx context.Context, alert *models.SOSAlert) error
	InsertVoiceRecording(ctx context.Context, rec *models.VoiceRecording) error
	UpdateAlertStatus(ctx context.Context, alertID, status string, dispatchTeam *string) (*models.SOSAlert, error)

	GetAlert(ctx context.Context, alertID string) (*models.SOSAlert, error)
	ListAlerts(ctx context.Context, limit int) ([]models.SOSAlert, error)
	ListUserAlerts(ctx context.Context, reporterID string) ([]models.SOSAlert, error)
	RecordingURLs(ctx context.Context) (map[string]bool, error)

	ListNotifications(ctx context.Context, feed models.Feed, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, feed models.Feed, id string) error
	MarkAllNotificationsRead(ctx context.Context, feed models.Feed) error
	CountUnread(ctx context.Context, feed models.Feed) (int64, error)

	SaveAnalysis(ctx context.Context, a *models.ReportAnalysis) error
}

type Service struct {
	DB        *gorm.DB
	Publisher changefeed.Publisher
	Log       *logrus.Entry
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, pub changefeed.Publisher, log *logrus.Entry) *Service {
	if pub == nil {
		pub = changefeed.NopPublisher{}
	}
	return &Service{DB: db, Publisher: pub, Log: log}
}

// publish is best effort: the row is already committed.
func (s *Service) publish(ctx context.Context, table string, typ changefeed.EventType, row any) {
	e, err := changefeed.NewEvent(table, typ, row)
	if err == nil {
		err = s.Publisher.Publish(ctx, e)
	}
	if err != nil {
		s.Log.WithError(err).WithField("table", table).Warn("failed to publish change event")
	}
}

// InsertAlert stores the alert and the officer notification announcing it in one transaction.
func (s *Service) InsertAlert(ctx context.Context, alert *models.SOSAlert) error {
	if alert.Status == "" {
		alert.Status = config.StatusNew
	}
	if alert.UrgencyLevel == "" {
		alert.UrgencyLevel = config.UrgencyHigh
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	alertID := alert.AlertID
	note := &models.OfficerNotification{
		NotificationType: config.NotificationSOSAlert,
		ReportID:         &alertID,
		Message:          fmt.Sprintf("New SOS alert near %s from %s", alert.Location, alert.ReportedBy),
		CreatedAt:        alert.CreatedAt,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(alert).Error; err != nil {
			return errors.Wrap(err, "insert alert")
		}
		if err := tx.Create(note).Error; err != nil {
			return errors.Wrap(err, "insert officer notification")
		}
		return nil
	})
	if err != nil {
		s.Log.WithError(err).WithField("alert_id", alert.AlertID).Error("failed to save alert")
		return err
	}

	s.publish(ctx, alert.TableName(), changefeed.Insert, alert)
	s.publish(ctx, note.TableName(), changefeed.Insert, note)
	return nil
}

func (s *Service) InsertVoiceRecording(ctx context.Context, rec *models.VoiceRecording) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return errors.Wrap(err, "insert voice recording")
	}
	return nil
}

// UpdateAlertStatus sets the officer-controlled fields and tells the reporter, if known.
func (s *Service) UpdateAlertStatus(ctx context.Context, alertID, status string, dispatchTeam *string) (*models.SOSAlert, error) {
	if !config.AlertStatuses[status] {
		return nil, errors.Wrapf(errs.ErrInvalidStatus, "%q", status)
	}

	var (
		alert models.SOSAlert
		note  *models.UserNotification
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("alert_id = ?", alertID).First(&alert).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(errs.ErrNotFound, "alert %s", alertID)
			}
			return err
		}

		updates := map[string]interface{}{"status": status}
		if dispatchTeam != nil && strings.TrimSpace(*dispatchTeam) != "" {
			team := strings.TrimSpace(*dispatchTeam)
			updates["dispatch_team"] = team
			alert.DispatchTeam = &team
		}
		if err := tx.Model(&models.SOSAlert{}).Where("alert_id = ?", alertID).Updates(updates).Error; err != nil {
			return errors.Wrap(err, "update alert")
		}
		alert.Status = status

		if alert.ReporterID == "" {
			return nil
		}
		id := alert.AlertID
		note = &models.UserNotification{
			UserID:           alert.ReporterID,
			NotificationType: config.NotificationOfficerAction,
			ReportID:         &id,
			Message:          statusMessage(&alert),
			CreatedAt:        time.Now().UTC(),
		}
		return tx.Create(note).Error
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, alert.TableName(), changefeed.Update, &alert)
	if note != nil {
		s.publish(ctx, note.TableName(), changefeed.Insert, note)
	}
	return &alert, nil
}

func statusMessage(a *models.SOSAlert) string {
	msg := fmt.Sprintf("Your SOS alert is now %s", a.Status)
	if a.DispatchTeam != nil && *a.DispatchTeam != "" {
		msg += fmt.Sprintf(". Team %s has been dispatched", *a.DispatchTeam)
	}
	return msg
}

func (s *Service) GetAlert(ctx context.Context, alertID string) (*models.SOSAlert, error) {
	var alert models.SOSAlert
	err := s.DB.WithContext(ctx).Where("alert_id = ?", alertID).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(errs.ErrNotFound, "alert %s", alertID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.fillRecordings(ctx, []*models.SOSAlert{&alert}); err != nil {
		return nil, err
	}
	return &alert, nil
}

// ListAlerts returns the newest alerts first. limit <= 0 means all.
func (s *Service) ListAlerts(ctx context.Context, limit int) ([]models.SOSAlert, error) {
	q := s.DB.WithContext(ctx).Order("reported_time desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var alerts []models.SOSAlert
	if err := q.Find(&alerts).Error; err != nil {
		return nil, errors.Wrap(err, "list alerts")
	}
	return alerts, s.fillRecordings(ctx, ptrs(alerts))
}

// ListUserAlerts returns the alerts a citizen raised.
func (s *Service) ListUserAlerts(ctx context.Context, reporterID string) ([]models.SOSAlert, error) {
	var alerts []models.SOSAlert
	err := s.DB.WithContext(ctx).
		Where("reporter_id = ?", reporterID).
		Order("reported_time desc").
		Find(&alerts).Error
	if err != nil {
		return nil, errors.Wrap(err, "list user alerts")
	}
	return alerts, s.fillRecordings(ctx, ptrs(alerts))
}

func ptrs(alerts []models.SOSAlert) []*models.SOSAlert {
	out := make([]*models.SOSAlert, len(alerts))
	for i := range alerts {
		out[i] = &alerts[i]
	}
	return out
}

// fillRecordings falls back to voice_recordings for alerts written without the URL.
func (s *Service) fillRecordings(ctx context.Context, alerts []*models.SOSAlert) error {
	missing := make(map[string]*models.SOSAlert)
	var ids []string
	for _, a := range alerts {
		if a.VoiceRecording == nil || *a.VoiceRecording == "" {
			missing[a.AlertID] = a
			ids = append(ids, a.AlertID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var recs []models.VoiceRecording
	err := s.DB.WithContext(ctx).
		Where("alert_id IN ?", ids).
		Order("created_at asc").
		Find(&recs).Error
	if err != nil {
		return errors.Wrap(err, "lookup voice recordings")
	}
	for _, r := range recs {
		a := missing[r.AlertID]
		if a == nil || (a.VoiceRecording != nil && *a.VoiceRecording != "") {
			continue
		}
		url := r.RecordingURL
		a.VoiceRecording = &url
	}
	return nil
}

// RecordingURLs returns every recording URL referenced by an alert or a voice_recordings row.
func (s *Service) RecordingURLs(ctx context.Context) (map[string]bool, error) {
	var fromAlerts, fromRecordings []string
	db := s.DB.WithContext(ctx)
	if err := db.Model(&models.SOSAlert{}).
		Where("voice_recording IS NOT NULL AND voice_recording <> ''").
		Pluck("voice_recording", &fromAlerts).Error; err != nil {
		return nil, errors.Wrap(err, "pluck alert recordings")
	}
	if err := db.Model(&models.VoiceRecording{}).
		Pluck("recording_url", &fromRecordings).Error; err != nil {
		return nil, errors.Wrap(err, "pluck voice recordings")
	}

	urls := make(map[string]bool, len(fromAlerts)+len(fromRecordings))
	for _, u := range append(fromAlerts, fromRecordings...) {
		urls[u] = true
	}
	return urls, nil
}

// SaveAnalysis upserts by report id.
func (s *Service) SaveAnalysis(ctx context.Context, a *models.ReportAnalysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "report_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"crime_type", "confidence", "description", "model_version"}),
	}).Create(a).Error
	return errors.Wrap(err, "save analysis")
}
