package main

import (
	"context"
	"testing"
	"time"

	"github.com/tinytelemetry/pulse/internal/ingest"
	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/model"
)

// TestPipeline_EndToEnd drives envelopes from two inputs through the
// multiplexer and parsing processor into a collector.
func TestPipeline_EndToEnd(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	collector, err := metrics.NewCollector(metrics.Config{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	processor, err := ingest.NewEnvelopeProcessor(ingest.ProcessorModeParse, collector, "")
	if err != nil {
		t.Fatalf("NewEnvelopeProcessor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logs := newFakeSource("tcp", 8)
	bus := newFakeSource("kafka", 8)
	mux := NewSourceMultiplexer(ctx, []NamedLogSource{logs, bus}, 16)
	mux.Start()

	logs.lines <- model.IngestEnvelope{Line: `{"level":"error","msg":"db down","service":"api"}`}
	logs.lines <- model.IngestEnvelope{Line: `{"level":"info","msg":"ok","service":"api"}`}
	logs.lines <- model.IngestEnvelope{Line: "WARN: disk almost full"}
	logs.lines <- model.IngestEnvelope{Line: ""}
	bus.lines <- model.IngestEnvelope{Kind: model.SourceBusMessage, Key: "orders", Line: `{"id":1}`}
	bus.lines <- model.IngestEnvelope{Kind: model.SourceBusMessage, Key: "orders", Line: `{"id":2}`}
	logs.Stop()
	bus.Stop()

	done := make(chan struct{})
	go func() {
		runIngestion(mux, processor)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ingestion did not finish")
	}

	stats := collector.Stats()
	if stats.EventsRecorded != 5 {
		t.Fatalf("EventsRecorded = %d, want 5", stats.EventsRecorded)
	}
	if stats.BusEvents != 2 || stats.ServiceEvents != 3 {
		t.Fatalf("stats = %+v, want 2 bus and 3 service events", stats)
	}

	services := collector.TopSources(1, model.SourceServiceLog, 10)
	want := []model.DimensionCount{{Value: "api", Count: 2}, {Value: "tcp", Count: 1}}
	if len(services) != len(want) {
		t.Fatalf("services = %+v, want %+v", services, want)
	}
	for i := range want {
		if services[i] != want[i] {
			t.Fatalf("services[%d] = %+v, want %+v", i, services[i], want[i])
		}
	}

	topics := collector.TopSources(1, model.SourceBusMessage, 10)
	if len(topics) != 1 || topics[0] != (model.DimensionCount{Value: "orders", Count: 2}) {
		t.Fatalf("topics = %+v, want orders=2", topics)
	}

	levels := collector.SeverityTotals(1)
	if levels["ERROR"] != 1 || levels["WARN"] != 1 || levels["INFO"] != 3 {
		t.Fatalf("severity totals = %v", levels)
	}

	forwarded := mux.Forwarded()
	if forwarded["tcp"] != 3 || forwarded["kafka"] != 2 {
		t.Fatalf("forwarded = %v, want tcp=3 kafka=2", forwarded)
	}
}
