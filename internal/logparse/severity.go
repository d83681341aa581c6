// Package logparse recognizes severity levels in log text and structured fields.
package logparse

import (
	"regexp"
	"strings"

	"github.com/tinytelemetry/pulse/internal/model"
)

// SeverityRegex matches common severity levels in log text.
var SeverityRegex = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL|PANIC)\b`)

var severityAliases = map[string]string{
	"TRACE": "TRACE", "TRAC": "TRACE", "TRC": "TRACE",
	"DEBUG": "DEBUG", "DEBU": "DEBUG", "DBG": "DEBUG", "DEB": "DEBUG",
	"INFO": "INFO", "INFORMATION": "INFO", "INF": "INFO", "NOTICE": "INFO",
	"WARN": "WARN", "WARNING": "WARN", "WRNG": "WARN", "WRN": "WARN",
	"ERROR": "ERROR", "ERR": "ERROR", "ERRO": "ERROR",
	"FATAL": "FATAL", "FATL": "FATAL", "FTL": "FATAL", "CRITICAL": "FATAL",
	"CRIT": "FATAL", "CRT": "FATAL", "PANIC": "FATAL", "PNC": "FATAL",
	"EMERG": "FATAL", "ALERT": "FATAL",
}

var severityPrefixes = map[string]string{
	"TRAC": "TRACE", "DEBU": "DEBUG", "INFO": "INFO",
	"WARN": "WARN", "ERRO": "ERROR", "FATA": "FATAL", "CRIT": "FATAL",
}

// NormalizeSeverity converts the many spellings of a level to one of
// TRACE, DEBUG, INFO, WARN, ERROR, FATAL. Unknown input is INFO.
func NormalizeSeverity(severity string) string {
	s := strings.ToUpper(strings.TrimSpace(severity))
	if v, ok := severityAliases[s]; ok {
		return v
	}
	if len(s) >= 4 {
		if v, ok := severityPrefixes[s[:4]]; ok {
			return v
		}
	}
	return "INFO"
}

// ExtractSeverityFromText returns the first level keyword found in message.
func ExtractSeverityFromText(message string) string {
	m := SeverityRegex.FindStringSubmatch(message)
	if len(m) < 2 {
		return "INFO"
	}
	return NormalizeSeverity(m[1])
}

// PinoLevelToString converts pino/bunyan numeric levels (10..60) to names.
// Values between steps round down.
func PinoLevelToString(level int) string {
	switch {
	case level < 20:
		return "TRACE"
	case level < 30:
		return "DEBUG"
	case level < 40:
		return "INFO"
	case level < 50:
		return "WARN"
	case level < 60:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// ParseSeverity normalizes a level name into a model.Severity.
func ParseSeverity(severity string) model.Severity {
	switch NormalizeSeverity(severity) {
	case "TRACE":
		return model.SeverityTrace
	case "DEBUG":
		return model.SeverityDebug
	case "WARN":
		return model.SeverityWarn
	case "ERROR":
		return model.SeverityError
	case "FATAL":
		return model.SeverityFatal
	default:
		return model.SeverityInfo
	}
}

// SeverityFromOTELNumber maps an OTEL SeverityNumber (1-24) to a level name.
// Out-of-range numbers return "".
func SeverityFromOTELNumber(number int) string {
	if number < 1 || number > 24 {
		return ""
	}
	return [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}[(number-1)/4]
}
