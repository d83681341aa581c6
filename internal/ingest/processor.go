package ingest

import (
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	// DefaultMaxJSONBuffer caps one pending multi-line JSON object. An object
	// that grows past it is recorded as plain text.
	DefaultMaxJSONBuffer = 1024 * 1024

	// maxPendingStreams bounds how many streams may hold an unfinished
	// object at once. Further streams are parsed line by line.
	maxPendingStreams = 1024
)

// Processor parses lines (JSON, OTEL JSON, or plain text) and records one
// event per log record. Multi-line JSON objects are accumulated per stream
// until their braces balance. Bus messages are already framed and are never
// accumulated.
type Processor struct {
	mu         sync.Mutex
	sink       model.EventRecorder
	sourceName string
	opts       Options

	pending map[streamKey]*pendingJSON
}

// streamKey identifies one ordered line stream, e.g. a single TCP connection.
type streamKey struct {
	source string
	stream string
	kind   model.SourceKind
	key    string
}

type pendingJSON struct {
	env   model.IngestEnvelope
	buf   strings.Builder
	depth int
}

// NewProcessor creates a parsing processor that records into sink.
func NewProcessor(sink model.EventRecorder, sourceName string) *Processor {
	return &Processor{
		sink:       sink,
		sourceName: sourceName,
		pending:    make(map[streamKey]*pendingJSON),
	}
}

func (p *Processor) Name() string { return ProcessorModeParse }

// ProcessLine processes an untagged line using the processor source name.
func (p *Processor) ProcessLine(line string) *ProcessResult {
	return p.ProcessEnvelope(model.IngestEnvelope{Line: line})
}

// ProcessEnvelope records the events in env. It returns nil while a
// multi-line JSON object is still being accumulated for env's stream.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) *ProcessResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.TrimSpace(env.Line) == "" {
		return nil
	}
	if env.Kind == model.SourceBusMessage {
		return p.recordLine(env)
	}

	k := streamKey{source: env.Source, stream: env.Stream, kind: env.Kind, key: env.Key}
	pj, ok := p.pending[k]
	if !ok {
		if !strings.HasPrefix(strings.TrimSpace(env.Line), "{") {
			return p.record(env, []ParsedLine{ParseTextLine(env.Line)})
		}
		depth := CountJSONDepth(env.Line)
		if depth <= 0 || len(p.pending) >= maxPendingStreams || len(env.Line) > DefaultMaxJSONBuffer {
			return p.recordLine(env)
		}
		pj = &pendingJSON{env: env, depth: depth}
		pj.buf.WriteString(env.Line)
		p.pending[k] = pj
		return nil
	}

	pj.buf.WriteString("\n")
	pj.buf.WriteString(env.Line)
	pj.depth += CountJSONDepth(env.Line)
	if pj.depth > 0 && pj.buf.Len() <= DefaultMaxJSONBuffer {
		return nil
	}

	delete(p.pending, k)
	out := pj.env
	out.Line = strings.TrimSpace(pj.buf.String())
	if pj.depth > 0 {
		// Oversized object.
		return p.record(out, []ParsedLine{ParseTextLine(out.Line)})
	}
	return p.recordLine(out)
}

// Pending reports how many streams hold an unfinished JSON object.
func (p *Processor) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// recordLine parses one complete line as JSON, falling back to text.
func (p *Processor) recordLine(env model.IngestEnvelope) *ProcessResult {
	if strings.HasPrefix(strings.TrimSpace(env.Line), "{") {
		return p.record(env, ParseJSONLines(env.Line))
	}
	return p.record(env, []ParsedLine{ParseTextLine(env.Line)})
}

func (p *Processor) record(env model.IngestEnvelope, lines []ParsedLine) *ProcessResult {
	if len(lines) == 0 {
		lines = []ParsedLine{ParseTextLine(env.Line)}
	}
	fallback := firstNonEmpty(env.Source, p.sourceName)
	res := &ProcessResult{Events: make([]model.Event, 0, len(lines))}
	for _, pl := range lines {
		kind, src := resolveSource(env, pl, fallback)
		ev := model.Event{
			Timestamp: p.eventTime(env, pl),
			Kind:      kind,
			Source:    src,
			Level:     pl.Level,
		}
		if p.sink != nil {
			p.sink.RecordEvent(ev)
		}
		res.Events = append(res.Events, ev)
	}
	return res
}

func (p *Processor) eventTime(env model.IngestEnvelope, pl ParsedLine) time.Time {
	if !env.Timestamp.IsZero() {
		return env.Timestamp
	}
	if p.opts.UseLogTime {
		return pl.Timestamp
	}
	return time.Time{}
}

// CountJSONDepth counts the net change in JSON nesting depth for a line.
func CountJSONDepth(line string) int {
	depth := 0
	inString := false
	escaped := false
	for _, char := range line {
		if escaped {
			escaped = false
			continue
		}
		switch char {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}
	return depth
}

// SetSourceName updates the fallback source name.
func (p *Processor) SetSourceName(name string) {
	p.mu.Lock()
	p.sourceName = name
	p.mu.Unlock()
}
