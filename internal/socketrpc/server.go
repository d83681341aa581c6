package socketrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	// scannerInitBufSize is the initial buffer size for the per-connection scanner (1 MB).
	scannerInitBufSize = 1024 * 1024
	// scannerMaxTokenSize is the maximum token size the scanner will accept (10 MB).
	scannerMaxTokenSize = 10 * 1024 * 1024
)

// Server exposes a model.MetricsStore over a Unix domain socket using JSON-RPC 2.0.
type Server struct {
	socketPath string
	store      model.MetricsStore
	listener   net.Listener
	wg         sync.WaitGroup
	quit       chan struct{}
	stopOnce   sync.Once

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer creates a new socket RPC server.
func NewServer(socketPath string, store model.MetricsStore) *Server {
	return &Server{
		socketPath: socketPath,
		store:      store,
		quit:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Path returns the socket path the server listens on.
func (s *Server) Path() string { return s.socketPath }

// Start begins listening on the Unix socket and accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	// A socket file nobody answers on is left over from a crashed run.
	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.Infof("socketrpc: listening on %s", s.socketPath)
	return nil
}

// Stop closes the listener and open connections, waits for handlers to
// drain, and removes the socket file. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warnf("socketrpc: accept error: %v", err)
			continue
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		select {
		case <-s.quit:
			return
		default:
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp := Response{JSONRPC: "2.0", ID: 0, Error: &RPCError{Code: CodeParseError, Message: "parse error"}}
			encoder.Encode(resp)
			continue
		}

		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			log.Debugf("socketrpc: write response: %v", err)
			return
		}
	}
}

type intervalParams struct {
	Interval int
}

type topSourcesParams struct {
	Interval int
	Kind     string
	Limit    int
}

type sourceParams struct {
	Name string
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	marshalResult := func(v interface{}) Response {
		data, err := json.Marshal(v)
		if err != nil {
			resp.Error = &RPCError{Code: CodeInternalError, Message: err.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}

	invalidParams := func(err error) Response {
		resp.Error = &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
		return resp
	}

	appError := func(msg string) Response {
		resp.Error = &RPCError{Code: CodeAppError, Message: msg}
		return resp
	}

	switch req.Method {
	case "Intervals":
		return marshalResult(s.store.Intervals())

	case "ThroughputSeries", "SeveritySeries", "ThroughputRate", "SeverityTotals":
		var p intervalParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		switch req.Method {
		case "ThroughputSeries":
			return marshalResult(s.store.ThroughputSeries(p.Interval))
		case "SeveritySeries":
			return marshalResult(s.store.SeveritySeries(p.Interval))
		case "ThroughputRate":
			return marshalResult(s.store.ThroughputRate(p.Interval))
		default:
			return marshalResult(s.store.SeverityTotals(p.Interval))
		}

	case "LiveRate":
		return marshalResult(s.store.LiveRate())

	case "ActiveSources":
		return marshalResult(s.store.ActiveSources())

	case "TopSources":
		var p topSourcesParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		kind := model.SourceServiceLog
		if p.Kind != "" {
			var ok bool
			if kind, ok = model.ParseSourceKind(p.Kind); !ok {
				return invalidParams(fmt.Errorf("unknown kind %q", p.Kind))
			}
		}
		return marshalResult(s.store.TopSources(p.Interval, kind, p.Limit))

	case "BacklogSummary":
		var p struct{ Opts model.BacklogOpts }
		if err := json.Unmarshal(req.Params, &p); err != nil && len(req.Params) > 0 {
			return invalidParams(err)
		}
		return marshalResult(s.store.BacklogSummary(p.Opts))

	case "Stats":
		return marshalResult(s.store.Stats())

	case "RegisterSource", "UnregisterSource":
		var p sourceParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return appError("source name must not be empty")
		}
		if req.Method == "RegisterSource" {
			s.store.RegisterSource(name)
		} else {
			s.store.UnregisterSource(name)
		}
		return marshalResult(true)

	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}
