package storage

import (
	"context"
	"encoding/json"

	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// LoadRow reads one row of a change-feed table by key, encoded the way change events carry it.
func (s *Service) LoadRow(ctx context.Context, table, key string) (json.RawMessage, error) {
	var (
		row    any
		column = "id"
	)
	switch table {
	case models.SOSAlert{}.TableName():
		row, column = &models.SOSAlert{}, "alert_id"
	case models.OfficerNotification{}.TableName():
		row = &models.OfficerNotification{}
	case models.UserNotification{}.TableName():
		row = &models.UserNotification{}
	default:
		return nil, errors.Errorf("table %s has no change feed", table)
	}

	err := s.DB.WithContext(ctx).Where(column+" = ?", key).First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(errs.ErrNotFound, "%s %s", table, key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s %s", table, key)
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s %s", table, key)
	}
	return raw, nil
}
