package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tinytelemetry/pulse/internal/logparse"
	"github.com/tinytelemetry/pulse/internal/model"
	"github.com/tinytelemetry/pulse/internal/timestamp"
)

// TopicAttribute marks a record as a bus message. Its value is the topic.
const TopicAttribute = "messaging.destination.name"

// ParsedLine is what the extractor recovers from one log record.
type ParsedLine struct {
	Timestamp time.Time // zero when the record carries none
	Level     model.Severity
	Service   string // empty when unknown
	Topic     string // set for bus messages
}

var tsParser = timestamp.NewParser()

// ParseJSONLines parses one JSON line into one or more records. OTEL log
// envelopes may hold many records; any other JSON object yields one. A line
// that is not a JSON object returns nil.
func ParseJSONLines(line string) []ParsedLine {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil
	}
	if records, ok := parseOTELEnvelope(raw); ok {
		return records
	}
	return []ParsedLine{parseGenericJSON(raw)}
}

// ParseTextLine handles a plain-text line.
func ParseTextLine(line string) ParsedLine {
	res := tsParser.ParseFromText(line)
	return ParsedLine{
		Timestamp: res.Timestamp,
		Level:     logparse.ParseSeverity(logparse.ExtractSeverityFromText(res.Remaining)),
	}
}

func parseGenericJSON(raw map[string]interface{}) ParsedLine {
	attrs := make(map[string]string, len(raw))
	for k, v := range raw {
		if s := stringifyJSONValue(v); s != "" {
			attrs[k] = s
		}
	}

	level := "INFO"
	switch v := firstValue(raw, "level", "severity", "lvl", "log.level", "severityText").(type) {
	case float64:
		level = logparse.PinoLevelToString(int(v))
	case string:
		level = logparse.NormalizeSeverity(v)
	case nil:
		if msg := ExtractStringField(raw, "msg", "message"); msg != "" {
			level = logparse.ExtractSeverityFromText(msg)
		}
	}

	var ts time.Time
	if v := firstValue(raw, "time", "timestamp", "ts", "@timestamp"); v != nil {
		ts, _ = tsParser.ParseTimestamp(v)
	}

	return ParsedLine{
		Timestamp: ts,
		Level:     logparse.ParseSeverity(level),
		Service:   knownService(attrs),
		Topic:     attrs[TopicAttribute],
	}
}

func parseOTELEnvelope(raw map[string]interface{}) ([]ParsedLine, bool) {
	if resourceLogs, ok := raw["resourceLogs"]; ok {
		return parseOTELResourceLogs(resourceLogs), true
	}
	for _, key := range []string{"scopeLogs", "instrumentationLibraryLogs"} {
		if scopeLogs, ok := raw[key]; ok {
			return parseOTELScopeLogs(scopeLogs, parseOTELResourceAttributes(raw["resource"])), true
		}
	}
	if logRecords, ok := raw["logRecords"]; ok {
		return parseOTELLogRecords(logRecords, parseOTELResourceAttributes(raw["resource"])), true
	}
	if isOTELLogRecord(raw) {
		return []ParsedLine{parseOTELLogRecord(raw, nil)}, true
	}
	return nil, false
}

func parseOTELResourceLogs(value interface{}) []ParsedLine {
	resourceLogs, ok := value.([]interface{})
	if !ok {
		return nil
	}
	var out []ParsedLine
	for _, item := range resourceLogs {
		resourceLog, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		scopeLogs := resourceLog["scopeLogs"]
		if scopeLogs == nil {
			scopeLogs = resourceLog["instrumentationLibraryLogs"]
		}
		out = append(out, parseOTELScopeLogs(scopeLogs, parseOTELResourceAttributes(resourceLog["resource"]))...)
	}
	return out
}

func parseOTELResourceAttributes(value interface{}) map[string]string {
	resource, ok := value.(map[string]interface{})
	if !ok {
		return map[string]string{}
	}
	return parseOTELAttributes(resource["attributes"])
}

func parseOTELScopeLogs(value interface{}, inherited map[string]string) []ParsedLine {
	scopeLogs, ok := value.([]interface{})
	if !ok {
		return nil
	}
	var out []ParsedLine
	for _, item := range scopeLogs {
		scopeLog, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		attrs := cloneAttributes(inherited)
		if scope, ok := scopeLog["scope"].(map[string]interface{}); ok {
			mergeAttributes(attrs, parseOTELAttributes(scope["attributes"]))
		}
		out = append(out, parseOTELLogRecords(scopeLog["logRecords"], attrs)...)
	}
	return out
}

func parseOTELLogRecords(value interface{}, inherited map[string]string) []ParsedLine {
	logRecords, ok := value.([]interface{})
	if !ok {
		return nil
	}
	out := make([]ParsedLine, 0, len(logRecords))
	for _, item := range logRecords {
		if logRecord, ok := item.(map[string]interface{}); ok {
			out = append(out, parseOTELLogRecord(logRecord, inherited))
		}
	}
	return out
}

func parseOTELLogRecord(raw map[string]interface{}, inherited map[string]string) ParsedLine {
	attrs := cloneAttributes(inherited)
	mergeAttributes(attrs, parseOTELAttributes(raw["attributes"]))

	severity := ExtractStringField(raw, "severityText")
	if severity == "" {
		severity = logparse.SeverityFromOTELNumber(parseOTELSeverityNumber(raw["severityNumber"]))
	}

	return ParsedLine{
		Timestamp: extractOTELTimestamp(raw),
		Level:     logparse.ParseSeverity(severity),
		Service:   knownService(attrs),
		Topic:     attrs[TopicAttribute],
	}
}

func parseOTELAttributes(value interface{}) map[string]string {
	out := map[string]string{}
	attributes, ok := value.([]interface{})
	if !ok {
		return out
	}
	for _, item := range attributes {
		attr, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		key := ExtractStringField(attr, "key")
		if key == "" {
			continue
		}
		if val := extractOTELAnyValue(attr["value"]); val != "" {
			out[key] = val
		}
	}
	return out
}

func extractOTELAnyValue(value interface{}) string {
	anyValue, ok := value.(map[string]interface{})
	if !ok {
		return stringifyJSONValue(value)
	}
	for _, key := range []string{"stringValue", "boolValue", "intValue", "doubleValue", "bytesValue"} {
		if val, ok := anyValue[key]; ok {
			return stringifyJSONValue(val)
		}
	}
	if arrayValue, ok := anyValue["arrayValue"].(map[string]interface{}); ok {
		if vals, ok := arrayValue["values"].([]interface{}); ok {
			parts := make([]string, 0, len(vals))
			for _, v := range vals {
				if part := extractOTELAnyValue(v); part != "" {
					parts = append(parts, part)
				}
			}
			return strings.Join(parts, ",")
		}
	}
	return stringifyJSONValue(anyValue)
}

func extractOTELTimestamp(raw map[string]interface{}) time.Time {
	for _, key := range []string{"timeUnixNano", "observedTimeUnixNano"} {
		switch v := raw[key].(type) {
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
				return time.Unix(0, n)
			}
		case float64:
			if v > 0 {
				return time.Unix(0, int64(v))
			}
		}
	}
	return time.Time{}
}

func parseOTELSeverityNumber(value interface{}) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func isOTELLogRecord(raw map[string]interface{}) bool {
	for _, key := range []string{"timeUnixNano", "observedTimeUnixNano", "severityNumber", "severityText", "traceId", "spanId"} {
		if _, ok := raw[key]; ok {
			return true
		}
	}
	_, hasBody := raw["body"]
	_, hasAttrs := raw["attributes"]
	return hasBody && hasAttrs
}

func knownService(attrs map[string]string) string {
	if s := ExtractService(attrs); s != model.UnknownSource {
		return s
	}
	return ""
}

func firstValue(raw map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func cloneAttributes(attributes map[string]string) map[string]string {
	out := make(map[string]string, len(attributes))
	mergeAttributes(out, attributes)
	return out
}

func mergeAttributes(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func stringifyJSONValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, bool:
		return fmt.Sprintf("%v", v)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return ""
}

// ExtractStringField returns the first non-empty string value found among the given keys.
func ExtractStringField(raw map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if str := stringifyJSONValue(v); str != "" {
				return str
			}
		}
	}
	return ""
}

// ExtractService returns the service name carried by a record's attributes,
// or "unknown".
func ExtractService(attributes map[string]string) string {
	for _, key := range []string{"service.name", "service", "serviceName", "app", "k8s.pod.name", "pod", "name"} {
		if s := attributes[key]; s != "" {
			return s
		}
	}
	return model.UnknownSource
}
