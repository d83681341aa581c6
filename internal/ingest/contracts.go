package ingest

import (
	"fmt"
	"strings"

	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	ProcessorModeParse       = "parse"
	ProcessorModePassthrough = "passthrough"
)

// EnvelopeProcessor turns source-tagged lines into recorded events.
type EnvelopeProcessor interface {
	Name() string
	ProcessEnvelope(model.IngestEnvelope) *ProcessResult
}

// ProcessResult lists the events recorded for one envelope.
type ProcessResult struct {
	Events []model.Event
}

// Options tune event construction.
type Options struct {
	// UseLogTime places events at the timestamp found in the line instead of
	// arrival time. Transport timestamps always win.
	UseLogTime bool
}

// NewEnvelopeProcessor creates the processor for mode. An empty mode selects
// the parsing processor.
func NewEnvelopeProcessor(mode string, sink model.EventRecorder, sourceName string, opts ...Options) (EnvelopeProcessor, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ProcessorModeParse:
		p := NewProcessor(sink, sourceName)
		p.opts = o
		return p, nil
	case ProcessorModePassthrough:
		return NewPassthroughProcessor(sink, sourceName), nil
	default:
		return nil, fmt.Errorf("ingest: unknown processor mode %q (want %q or %q)", mode, ProcessorModeParse, ProcessorModePassthrough)
	}
}

// resolveSource picks the counter key for an event. Bus messages are keyed by
// topic; service logs prefer the service named in the line.
func resolveSource(env model.IngestEnvelope, parsed ParsedLine, fallback string) (model.SourceKind, string) {
	if env.Kind == model.SourceBusMessage {
		return model.SourceBusMessage, firstNonEmpty(env.Key, parsed.Topic, fallback, model.UnknownSource)
	}
	if parsed.Topic != "" {
		return model.SourceBusMessage, parsed.Topic
	}
	return model.SourceServiceLog, firstNonEmpty(parsed.Service, env.Key, fallback, model.UnknownSource)
}
