// Package logsource adapts line-oriented inputs into IngestEnvelope streams.
package logsource

import "github.com/tinytelemetry/pulse/internal/model"

// LogSource is a unified interface for all ingestion inputs (TCP, stdin, Kafka).
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of envelopes
	Stop()                              // graceful shutdown
	Name() string                       // "tcp", "stdin", "kafka"
}
