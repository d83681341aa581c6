package socketrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
)

// defaultCallTimeout bounds one request/response exchange.
const defaultCallTimeout = 30 * time.Second

// ErrClientClosed is returned by calls on a closed client.
var ErrClientClosed = errors.New("socketrpc: client closed")

// Client queries a pulse server over a Unix domain socket using JSON-RPC 2.0.
// A failed exchange drops the connection; the next call redials.
type Client struct {
	path    string
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	conn    net.Conn
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := dialSocket(socketPath)
	if err != nil {
		return nil, err
	}
	c := &Client{path: socketPath, timeout: defaultCallTimeout}
	c.attach(conn)
	return c, nil
}

func dialSocket(path string) (net.Conn, error) {
	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	return conn, nil
}

func (c *Client) attach(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	c.conn = conn
	c.scanner = scanner
	c.encoder = json.NewEncoder(conn)
}

// drop closes a connection whose stream can no longer be trusted.
func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn, c.scanner, c.encoder = nil, nil, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.scanner, c.encoder = nil, nil, nil
	return err
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if c.conn == nil {
		if c.path == "" {
			return fmt.Errorf("socketrpc: connection lost")
		}
		conn, err := dialSocket(c.path)
		if err != nil {
			return err
		}
		c.attach(conn)
	}

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	defer func() {
		if c.conn != nil {
			c.conn.SetDeadline(time.Time{})
		}
	}()

	if err := c.encoder.Encode(req); err != nil {
		c.drop()
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	var resp Response
	for {
		if !c.scanner.Scan() {
			err := c.scanner.Err()
			c.drop()
			if err != nil {
				return fmt.Errorf("socketrpc: read: %w", err)
			}
			return fmt.Errorf("socketrpc: connection closed")
		}
		resp = Response{}
		if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
			c.drop()
			return fmt.Errorf("socketrpc: unmarshal response: %w", err)
		}
		// Answers to earlier calls that gave up are skipped.
		if resp.ID < id {
			continue
		}
		if resp.ID != id {
			c.drop()
			return fmt.Errorf("socketrpc: response id %d does not match request id %d", resp.ID, id)
		}
		break
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) Intervals() ([]model.IntervalInfo, error) {
	var result []model.IntervalInfo
	err := c.call("Intervals", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) ThroughputSeries(interval int) ([]model.ThroughputPoint, error) {
	var result []model.ThroughputPoint
	err := c.call("ThroughputSeries", intervalParams{Interval: interval}, &result)
	return result, err
}

func (c *Client) SeveritySeries(interval int) ([]model.SeverityPoint, error) {
	var result []model.SeverityPoint
	err := c.call("SeveritySeries", intervalParams{Interval: interval}, &result)
	return result, err
}

func (c *Client) ThroughputRate(interval int) (float64, error) {
	var result float64
	err := c.call("ThroughputRate", intervalParams{Interval: interval}, &result)
	return result, err
}

func (c *Client) LiveRate() (float64, error) {
	var result float64
	err := c.call("LiveRate", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) ActiveSources() ([]string, error) {
	var result []string
	err := c.call("ActiveSources", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) TopSources(interval int, kind model.SourceKind, limit int) ([]model.DimensionCount, error) {
	var result []model.DimensionCount
	err := c.call("TopSources", topSourcesParams{Interval: interval, Kind: kind.String(), Limit: limit}, &result)
	return result, err
}

func (c *Client) SeverityTotals(interval int) (map[string]int64, error) {
	var result map[string]int64
	err := c.call("SeverityTotals", intervalParams{Interval: interval}, &result)
	return result, err
}

func (c *Client) BacklogSummary(opts model.BacklogOpts) (model.BacklogSummary, error) {
	var result model.BacklogSummary
	err := c.call("BacklogSummary", map[string]interface{}{"Opts": opts}, &result)
	return result, err
}

func (c *Client) Stats() (model.CollectorStats, error) {
	var result model.CollectorStats
	err := c.call("Stats", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) RegisterSource(name string) error {
	return c.call("RegisterSource", sourceParams{Name: name}, nil)
}

func (c *Client) UnregisterSource(name string) error {
	return c.call("UnregisterSource", sourceParams{Name: name}, nil)
}
