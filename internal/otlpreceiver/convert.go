// Package otlpreceiver accepts OTLP log exports over gRPC and HTTP and
// records one event per log record.
package otlpreceiver

import (
	"fmt"
	"math"
	"strings"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/tinytelemetry/pulse/internal/logparse"
	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	serviceNameKey = "service.name"
	// topicKey marks a record as a bus message.
	topicKey = "messaging.destination.name"

	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

// Events converts an export request to events. Records with a messaging
// destination attribute (on the resource or the record) count against that
// topic; everything else counts against the resource's service.name.
func Events(req *collogspb.ExportLogsServiceRequest) []model.Event {
	var out []model.Event
	for _, rl := range req.GetResourceLogs() {
		resAttrs := rl.GetResource().GetAttributes()
		service := stringAttr(resAttrs, serviceNameKey)
		resTopic := stringAttr(resAttrs, topicKey)
		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				out = append(out, event(lr, service, resTopic))
			}
		}
	}
	return out
}

func event(lr *logspb.LogRecord, service, resTopic string) model.Event {
	ev := model.Event{
		Timestamp: recordTime(lr),
		Kind:      model.SourceServiceLog,
		Source:    service,
		Level:     recordSeverity(lr),
	}
	topic := stringAttr(lr.GetAttributes(), topicKey)
	if topic == "" {
		topic = resTopic
	}
	if topic != "" {
		ev.Kind = model.SourceBusMessage
		ev.Source = topic
	}
	return ev
}

// recordTime prefers the event time over the observed time. Values past
// the int64 nanosecond range are treated as unset.
func recordTime(lr *logspb.LogRecord) time.Time {
	if ns := lr.GetTimeUnixNano(); ns > 0 && ns <= math.MaxInt64 {
		return time.Unix(0, int64(ns))
	}
	if ns := lr.GetObservedTimeUnixNano(); ns > 0 && ns <= math.MaxInt64 {
		return time.Unix(0, int64(ns))
	}
	return time.Time{}
}

func recordSeverity(lr *logspb.LogRecord) model.Severity {
	if text := lr.GetSeverityText(); text != "" {
		return logparse.ParseSeverity(text)
	}
	if name := logparse.SeverityFromOTELNumber(int(lr.GetSeverityNumber())); name != "" {
		return logparse.ParseSeverity(name)
	}
	if body := lr.GetBody().GetStringValue(); body != "" {
		return logparse.ParseSeverity(logparse.ExtractSeverityFromText(body))
	}
	return model.SeverityInfo
}

func stringAttr(attrs []*commonpb.KeyValue, key string) string {
	for _, kv := range attrs {
		if kv.GetKey() == key {
			return kv.GetValue().GetStringValue()
		}
	}
	return ""
}

// DecodeRequest decodes an OTLP/HTTP body. JSON is assumed unless the content
// type names protobuf.
func DecodeRequest(contentType string, body []byte) (*collogspb.ExportLogsServiceRequest, error) {
	req := &collogspb.ExportLogsServiceRequest{}
	var err error
	if strings.HasPrefix(strings.ToLower(contentType), ContentTypeProtobuf) {
		err = proto.Unmarshal(body, req)
	} else {
		err = protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(body, req)
	}
	if err != nil {
		return nil, fmt.Errorf("otlpreceiver: decode request: %w", err)
	}
	return req, nil
}
