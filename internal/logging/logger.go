// Package logging builds the logrus logger shared by every component.
//
// Usage:
//
//	log := logging.New("json", "info")
//	log.WithField("component", "worker").Info("started")
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a logrus logger writing to stdout.
// format is "json" (default) or "text"; level is any logrus level name
// and falls back to info when empty or unknown.
func New(format, level string) *logrus.Logger {
	return NewWithOutput(os.Stdout, format, level)
}

// NewWithOutput is New with an explicit writer.
func NewWithOutput(w io.Writer, format, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	if format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil || level == "" {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// Component returns an entry tagged with the component name.
func Component(log logrus.FieldLogger, name string) *logrus.Entry {
	if log == nil {
		log = Discard()
	}
	return log.WithField("component", name)
}

// Discard returns a logger that drops everything. Used as a nil default and in tests.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
