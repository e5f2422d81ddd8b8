package logger

import (
	"io"

	"github.com/charmbracelet/log"
)

// NewPretty returns a colorized, human-friendly logger for CLI commands that
// talk to a running service rather than host one.
func NewPretty(w io.Writer, debug bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Level:  log.InfoLevel,
		Prefix: "embedsrv",
	})
	if debug {
		l.SetLevel(log.DebugLevel)
		l.SetReportCaller(true)
	}
	return l
}
