package ingest

import (
	"strings"
	"sync"

	"github.com/tinytelemetry/pulse/internal/logparse"
	"github.com/tinytelemetry/pulse/internal/model"
)

// PassthroughProcessor skips JSON parsing. Each non-empty line becomes one
// event with the level sniffed from its text.
type PassthroughProcessor struct {
	mu         sync.RWMutex
	sink       model.EventRecorder
	sourceName string
}

// NewPassthroughProcessor creates a new passthrough processor.
func NewPassthroughProcessor(sink model.EventRecorder, sourceName string) *PassthroughProcessor {
	return &PassthroughProcessor{sink: sink, sourceName: sourceName}
}

func (p *PassthroughProcessor) Name() string { return ProcessorModePassthrough }

// ProcessLine processes an untagged line using the processor source name.
func (p *PassthroughProcessor) ProcessLine(line string) *ProcessResult {
	return p.ProcessEnvelope(model.IngestEnvelope{Line: line})
}

// ProcessEnvelope processes one source-tagged line.
func (p *PassthroughProcessor) ProcessEnvelope(env model.IngestEnvelope) *ProcessResult {
	if strings.TrimSpace(env.Line) == "" {
		return nil
	}
	parsed := ParsedLine{Level: logparse.ParseSeverity(logparse.ExtractSeverityFromText(env.Line))}
	kind, src := resolveSource(env, parsed, firstNonEmpty(env.Source, p.getSourceName()))
	ev := model.Event{Timestamp: env.Timestamp, Kind: kind, Source: src, Level: parsed.Level}
	if p.sink != nil {
		p.sink.RecordEvent(ev)
	}
	return &ProcessResult{Events: []model.Event{ev}}
}

// SetSourceName updates the default source name for untagged lines.
func (p *PassthroughProcessor) SetSourceName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceName = name
}

func (p *PassthroughProcessor) getSourceName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sourceName
}
