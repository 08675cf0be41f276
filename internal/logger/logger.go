// Package logger builds the process-wide logrus logger.
package logger

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// New returns a logger writing to out (stdout when nil) at the given level.
// format "json" selects the JSON formatter; anything else gives text with
// full timestamps.  Unknown levels fall back to info.
func New(level, format string, out io.Writer) *log.Logger {
	l := log.New()
	if out == nil {
		out = os.Stdout
	}
	l.SetOutput(out)
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}
