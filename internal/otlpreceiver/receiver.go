package otlpreceiver

import (
	"context"
	"net"

	log "github.com/sirupsen/logrus"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"

	"github.com/tinytelemetry/pulse/internal/model"
)

// DefaultAddr is the conventional OTLP/gRPC port on loopback.
const DefaultAddr = "127.0.0.1:4317"

// Receiver serves the OTLP LogsService over gRPC.
type Receiver struct {
	collogspb.UnimplementedLogsServiceServer

	addr     string
	sink     model.EventRecorder
	server   *grpc.Server
	listener net.Listener
}

// NewReceiver creates a receiver that records into sink.
func NewReceiver(addr string, sink model.EventRecorder) *Receiver {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Receiver{addr: addr, sink: sink}
}

// Export records every log record in req.
func (r *Receiver) Export(_ context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	for _, ev := range Events(req) {
		r.sink.RecordEvent(ev)
	}
	return &collogspb.ExportLogsServiceResponse{}, nil
}

// Start listens and serves in a background goroutine.
func (r *Receiver) Start() error {
	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		return err
	}
	r.listener = ln
	r.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(r.server, r)

	go func() {
		if err := r.server.Serve(ln); err != nil && err != grpc.ErrServerStopped {
			log.Errorf("otlpreceiver: serve: %v", err)
		}
	}()
	return nil
}

// Stop drains in-flight exports and closes the listener.
func (r *Receiver) Stop() {
	if r.server != nil {
		r.server.GracefulStop()
	}
}

// Addr returns the active listen address, or the configured one before Start.
func (r *Receiver) Addr() string {
	if r.listener != nil {
		return r.listener.Addr().String()
	}
	return r.addr
}
