package storage

import (
	"fmt"

	"crimewatch/backend/internal/config"
	"crimewatch/backend/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Tables whose row changes are pushed to subscribers, with their key column.
var notifyTables = []struct{ table, key string }{
	{"sos_alerts", "alert_id"},
	{"officer_notifications", "id"},
	{"user_notifications", "id"},
}

// Rows whose payload would reach the NOTIFY limit are sent as a key; PGSource loads them back.
const notifyFunction = `
CREATE OR REPLACE FUNCTION crimewatch_notify_change() RETURNS trigger AS $$
DECLARE
  payload text;
BEGIN
  payload := json_build_object(
    'table', TG_TABLE_NAME,
    'type', TG_OP,
    'record', row_to_json(NEW),
    'commit_timestamp', now()
  )::text;
  IF octet_length(payload) >= %d THEN
    payload := json_build_object(
      'table', TG_TABLE_NAME,
      'type', TG_OP,
      'key', to_jsonb(NEW) ->> TG_ARGV[0],
      'commit_timestamp', now()
    )::text;
  END IF;
  PERFORM pg_notify('%s', payload);
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;`

func notifyFunctionSQL() string {
	return fmt.Sprintf(notifyFunction, config.PGNotifyMaxPayload, config.PGNotifyChannel)
}

// Migrate creates the schema. With installTriggers on Postgres it also installs the NOTIFY triggers
// read by changefeed.PGSource.
func Migrate(db *gorm.DB, installTriggers bool) error {
	err := db.AutoMigrate(
		&models.SOSAlert{},
		&models.VoiceRecording{},
		&models.OfficerNotification{},
		&models.UserNotification{},
		&models.ReportAnalysis{},
	)
	if err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	if !installTriggers || db.Dialector.Name() != "postgres" {
		return nil
	}

	if err := db.Exec(notifyFunctionSQL()).Error; err != nil {
		return errors.Wrap(err, "create notify function")
	}
	for _, t := range notifyTables {
		stmts := []string{
			fmt.Sprintf(`DROP TRIGGER IF EXISTS crimewatch_notify ON %s`, t.table),
			fmt.Sprintf(`CREATE TRIGGER crimewatch_notify AFTER INSERT OR UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION crimewatch_notify_change('%s')`, t.table, t.key),
		}
		for _, stmt := range stmts {
			if err := db.Exec(stmt).Error; err != nil {
				return errors.Wrapf(err, "install trigger on %s", t.table)
			}
		}
	}
	return nil
}
