// Package httpserver exposes the collector over a JSON HTTP API.
package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/proto"

	"github.com/tinytelemetry/pulse/internal/logparse"
	"github.com/tinytelemetry/pulse/internal/model"
	"github.com/tinytelemetry/pulse/internal/otlpreceiver"
)

const (
	// DefaultAddr is used when no address is configured.
	DefaultAddr = "127.0.0.1:3000"

	maxOTLPBody = 16 << 20
)

// Server provides an HTTP API for querying and feeding the collector.
type Server struct {
	addr      string
	store     model.MetricsStore
	metrics   http.Handler
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. metrics, when non-nil, is served
// at /metrics.
func NewServer(addr string, store model.MetricsStore, metrics http.Handler) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		store:     store,
		metrics:   metrics,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

func (s *Server) routes(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/intervals", s.handleIntervals)
	api.GET("/throughput/:interval", s.handleThroughput)
	api.GET("/severity/:interval", s.handleSeverity)
	api.GET("/rate/live", s.handleLiveRate)
	api.GET("/rate/:interval", s.handleRate)
	api.GET("/top/:interval", s.handleTop)
	api.GET("/sources", s.handleSources)
	api.PUT("/sources/:name", s.handleRegisterSource)
	api.DELETE("/sources/:name", s.handleUnregisterSource)
	api.GET("/backlog", s.handleBacklog)
	api.PUT("/backlog", s.handleRefreshBacklog)
	api.POST("/events", s.handleEvents)

	r.POST("/v1/logs", s.handleOTLPLogs)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s.routes(r)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the active listen address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// intervalParam reads the :interval selector. It writes a 400 and returns
// false when the selector is not an integer.
func intervalParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("interval"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be an integer number of minutes"})
		return 0, false
	}
	return n, true
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.store.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"uptime":          time.Since(s.startTime).String(),
		"events_recorded": stats.EventsRecorded,
	})
}

func (s *Server) handleIntervals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"intervals": s.store.Intervals()})
}

func (s *Server) handleThroughput(c *gin.Context) {
	interval, ok := intervalParam(c)
	if !ok {
		return
	}
	points := s.store.ThroughputSeries(interval)
	if points == nil {
		points = []model.ThroughputPoint{}
	}
	c.JSON(http.StatusOK, gin.H{"interval": interval, "points": points})
}

func (s *Server) handleSeverity(c *gin.Context) {
	interval, ok := intervalParam(c)
	if !ok {
		return
	}
	points := s.store.SeveritySeries(interval)
	if points == nil {
		points = []model.SeverityPoint{}
	}
	c.JSON(http.StatusOK, gin.H{
		"interval": interval,
		"points":   points,
		"totals":   s.store.SeverityTotals(interval),
	})
}

func (s *Server) handleRate(c *gin.Context) {
	interval, ok := intervalParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"interval": interval, "rate": s.store.ThroughputRate(interval)})
}

func (s *Server) handleLiveRate(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rate": s.store.LiveRate()})
}

func (s *Server) handleTop(c *gin.Context) {
	interval, ok := intervalParam(c)
	if !ok {
		return
	}
	kind, ok := model.ParseSourceKind(c.DefaultQuery("kind", "service"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be service or topic"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"interval": interval,
		"kind":     kind.String(),
		"sources":  s.store.TopSources(interval, kind, limit),
	})
}

func (s *Server) handleSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.store.ActiveSources()})
}

func (s *Server) handleRegisterSource(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source name is required"})
		return
	}
	s.store.RegisterSource(name)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUnregisterSource(c *gin.Context) {
	s.store.UnregisterSource(c.Param("name"))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBacklog(c *gin.Context) {
	omitZero, _ := strconv.ParseBool(c.DefaultQuery("omit_zero", "false"))
	c.JSON(http.StatusOK, s.store.BacklogSummary(model.BacklogOpts{OmitZero: omitZero}))
}

func (s *Server) handleRefreshBacklog(c *gin.Context) {
	var req struct {
		Entries []model.BacklogEntry `json:"entries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing entries field"})
		return
	}
	for _, e := range req.Entries {
		if e.Group == "" || e.Topic == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every entry needs group and topic"})
			return
		}
	}
	s.store.RefreshBacklog(req.Entries)
	c.Status(http.StatusNoContent)
}

type eventRequest struct {
	Timestamp *time.Time `json:"timestamp"`
	Kind      string     `json:"kind"`
	Source    string     `json:"source"`
	Level     string     `json:"level"`
}

func (s *Server) handleEvents(c *gin.Context) {
	var req struct {
		Events []eventRequest `json:"events" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing events field"})
		return
	}

	events := make([]model.Event, 0, len(req.Events))
	for _, e := range req.Events {
		kind := model.SourceServiceLog
		if e.Kind != "" {
			var ok bool
			if kind, ok = model.ParseSourceKind(e.Kind); !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be service or topic"})
				return
			}
		}
		ev := model.Event{Kind: kind, Source: e.Source, Level: logparse.ParseSeverity(e.Level)}
		if e.Timestamp != nil {
			ev.Timestamp = *e.Timestamp
		}
		events = append(events, ev)
	}
	for _, ev := range events {
		s.store.RecordEvent(ev)
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(events)})
}

func (s *Server) handleOTLPLogs(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxOTLPBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	contentType := c.ContentType()
	req, err := otlpreceiver.DecodeRequest(contentType, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, ev := range otlpreceiver.Events(req) {
		s.store.RecordEvent(ev)
	}

	if contentType == otlpreceiver.ContentTypeProtobuf {
		out, err := proto.Marshal(&collogspb.ExportLogsServiceResponse{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode response"})
			return
		}
		c.Data(http.StatusOK, otlpreceiver.ContentTypeProtobuf, out)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
