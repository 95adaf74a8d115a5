// Package logger builds the logrus logger used by every binary.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a JSON logger tagged with the service name.
// LOG_LEVEL selects the level (debug, info, warn, error); info is the default.
func NewLogger(service, level string) *logrus.Entry {
	return newLogger(os.Stdout, service, level)
}

func newLogger(out io.Writer, service, level string) *logrus.Entry {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(out)

	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log.WithField("service", service)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Entry {
	return newLogger(io.Discard, "test", "error")
}
