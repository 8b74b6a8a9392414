package charmlog

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Sink receives log lines for forwarding into the Juju debug log.
// The jujuc Runner satisfies it.
type Sink interface {
	JujuLog(ctx context.Context, level, message string) error
}

// NewSinkWriter adapts a Sink into a zerolog writer, for loggers built
// outside the global Configure path. The charm test harness uses it to
// route a charm's log lines into its fake juju-log.
func NewSinkWriter(sink Sink) zerolog.LevelWriter {
	return newJujuWriter(sink)
}

// jujuWriter adapts a Sink to zerolog's LevelWriter so each structured
// line is mirrored into the Juju debug log at a matching level.
type jujuWriter struct {
	sink Sink
}

func newJujuWriter(sink Sink) *jujuWriter {
	return &jujuWriter{sink: sink}
}

// Write forwards a line at INFO, for callers that bypass WriteLevel.
func (w *jujuWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

// WriteLevel forwards a line at the closest juju-log level. Forwarding
// failures are dropped; the stderr copy still carries the line.
func (w *jujuWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg != "" {
		_ = w.sink.JujuLog(context.Background(), jujuLevel(level), msg)
	}
	return len(p), nil
}

// jujuLevel maps a zerolog level onto the levels juju-log accepts.
func jujuLevel(level zerolog.Level) string {
	switch level {
	case zerolog.TraceLevel:
		return "TRACE"
	case zerolog.DebugLevel:
		return "DEBUG"
	case zerolog.InfoLevel:
		return "INFO"
	case zerolog.WarnLevel:
		return "WARNING"
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}
