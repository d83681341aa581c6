package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes model.MetricsStore over a Unix domain socket.
// Each method maps 1:1 to the store interface.
//
//   Method              Params                                   Result
//   ────────────────    ───────────────────────────────────────  ──────────────────
//   Intervals           (none)                                   []IntervalInfo
//   ThroughputSeries    {Interval: int}                          []ThroughputPoint
//   SeveritySeries      {Interval: int}                          []SeverityPoint
//   ThroughputRate      {Interval: int}                          float64
//   LiveRate            (none)                                   float64
//   ActiveSources       (none)                                   []string
//   TopSources          {Interval: int, Kind: string, Limit: int} []DimensionCount
//   SeverityTotals      {Interval: int}                          map[string]int64
//   BacklogSummary      {Opts: BacklogOpts}                      BacklogSummary
//   Stats               (none)                                   CollectorStats
//   RegisterSource      {Name: string}                           bool
//   UnregisterSource    {Name: string}                           bool
//
// Interval is a selector in minutes (1, 5, 15, 60, 1440). An unknown selector
// yields an empty result rather than an error. Kind is "service" or "topic".
// BacklogSummary accepts empty or null params.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error

// Error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAppError       = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/pulse/pulse.sock, falling back to
// ~/.local/state/pulse/pulse.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "pulse", "pulse.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/pulse.sock"
	}
	return filepath.Join(home, ".local", "state", "pulse", "pulse.sock")
}
