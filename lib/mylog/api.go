package mylog

import "context"

type Severity string

const (
	SeverityDebug Severity = "DEBUG"
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// New creates a logger for a named component. The implementation is picked at
// startup: structured JSON on Google Cloud, zerolog console output elsewhere.
var New func(name string) Logger

type Logger interface {
	Log(ctx context.Context, traceLabel string, severity Severity, format string, a ...any)
}

var minimumSeverity = SeverityInfo

// SetLevel drops entries below the given severity; unknown levels fall back to INFO.
func SetLevel(level string) {
	switch Severity(upper(level)) {
	case SeverityDebug, SeverityInfo, SeverityWarn, SeverityError:
		minimumSeverity = Severity(upper(level))
	default:
		minimumSeverity = SeverityInfo
	}
}

func enabled(severity Severity) bool {
	return rank(severity) >= rank(minimumSeverity)
}

func rank(s Severity) int {
	switch s {
	case SeverityDebug:
		return 0
	case SeverityInfo:
		return 1
	case SeverityWarn:
		return 2
	default:
		return 3
	}
}

func upper(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
