package cli

import (
	"apetools/internal/compiler"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logSink forwards compiler diagnostics to a zerolog logger.
type logSink struct {
	logger zerolog.Logger
}

func newLogSink() logSink {
	return logSink{logger: log.Logger}
}

func (s logSink) Report(d compiler.Diagnostic) {
	var ev *zerolog.Event
	switch d.Severity {
	case compiler.SeverityError:
		ev = s.logger.Error()
	case compiler.SeverityWarning:
		ev = s.logger.Warn()
	default:
		ev = s.logger.Info()
	}
	ev.Str("file", d.Location.File).
		Int("line", d.Location.Line+1).
		Int("col", d.Location.Col+1).
		Msg(d.String())
}
