package mylog

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/MarcGrol/basketbridge/lib/mycontext"
)

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		New = newStandardLogger
	}
}

type standardLogger struct {
	componentName string
	logger        zerolog.Logger
}

func newStandardLogger(componentName string) Logger {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return standardLogger{
		componentName: componentName,
		logger:        zerolog.New(output).With().Timestamp().Str("component", componentName).Logger(),
	}
}

func (l standardLogger) Log(ctx context.Context, traceLabel string, severity Severity, format string, a ...any) {
	if !enabled(severity) {
		return
	}

	var event *zerolog.Event
	switch severity {
	case SeverityDebug:
		event = l.logger.Debug()
	case SeverityWarn:
		event = l.logger.Warn()
	case SeverityError:
		event = l.logger.Error()
	default:
		event = l.logger.Info()
	}
	if traceLabel != "" {
		event = event.Str("aggregate", traceLabel)
	}
	if requestID := mycontext.RequestID(ctx); requestID != "" {
		event = event.Str("request_id", requestID)
	}
	event.Msg(fmt.Sprintf(format, a...))
}
