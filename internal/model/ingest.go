package model

import "time"

// IngestEnvelope carries one raw line with source metadata.
// It is the transport contract between ingestion plugins and processing.
type IngestEnvelope struct {
	Source    string // input name: "tcp", "stdin", "kafka"
	Kind      SourceKind
	Key       string    // service/pod or topic supplied by the transport, may be empty
	Stream    string    // ordered stream within Source, e.g. one TCP connection
	Line      string
	Timestamp time.Time // transport time, zero if unknown
}
