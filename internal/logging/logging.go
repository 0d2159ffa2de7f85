// Package logging builds the process-wide JSON logger.
package logging

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a logrus logger that writes one JSON object per line to w.
// Timestamps are emitted under "ts" in the given location.
func New(w io.Writer, level string, loc *time.Location) *logrus.Logger {
	if loc == nil {
		loc = time.UTC
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(&locationFormatter{
		loc: loc,
		JSONFormatter: logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
			},
		},
	})
	return log
}

type locationFormatter struct {
	logrus.JSONFormatter
	loc *time.Location
}

func (f *locationFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.In(f.loc)
	return f.JSONFormatter.Format(e)
}
