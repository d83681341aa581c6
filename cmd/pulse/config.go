package main

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/pulse/internal/bus"
	"github.com/tinytelemetry/pulse/internal/ingest"
	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	defaultBindHost      = "127.0.0.1"
	defaultTCPPort       = 4000
	defaultAPIPort       = 3000
	defaultOTLPPort      = 4317
	defaultMuxBufferSize = DefaultMuxBuffer
	defaultProcessor     = ingest.ProcessorModeParse
	defaultLogLevel      = "info"
	defaultLiveWindow    = model.DefaultLiveWindow
	defaultKafkaGroup    = "pulse"
	defaultLagInterval   = bus.DefaultLagInterval
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Host          string           `mapstructure:"host"`
	Processor     string           `mapstructure:"processor"`
	UseLogTime    bool             `mapstructure:"use-log-time"`
	LogLevel      string           `mapstructure:"log-level"`
	TCPEnabled    bool             `mapstructure:"tcp-enabled"`
	TCPPort       int              `mapstructure:"tcp-port"`
	TCPAddr       string           `mapstructure:"tcp-addr"`
	MuxBufferSize int              `mapstructure:"mux-buffer-size"`
	APIEnabled    bool             `mapstructure:"api-enabled"`
	APIPort       int              `mapstructure:"api-port"`
	APIAddr       string           `mapstructure:"api-addr"`
	SocketPath    string           `mapstructure:"socket-path"`
	LiveWindow    time.Duration    `mapstructure:"live-window"`
	BacklogHigh   int64            `mapstructure:"backlog-high"`
	BacklogMedium int64            `mapstructure:"backlog-medium"`
	Intervals     []intervalConfig `mapstructure:"intervals"`

	KafkaEnabled     bool          `mapstructure:"kafka-enabled"`
	KafkaBrokers     []string      `mapstructure:"kafka-brokers"`
	KafkaGroup       string        `mapstructure:"kafka-group"`
	KafkaTopics      []string      `mapstructure:"kafka-topics"`
	KafkaLagInterval time.Duration `mapstructure:"kafka-lag-interval"`

	OTLPEnabled bool   `mapstructure:"otlp-enabled"`
	OTLPPort    int    `mapstructure:"otlp-port"`
	OTLPAddr    string `mapstructure:"otlp-addr"`

	ConfigPath string `mapstructure:"-"` // not from config file
}

// intervalConfig is one configured interval. Window and retention accept Go
// durations plus a "d" suffix for days.
type intervalConfig struct {
	Selector  int    `mapstructure:"selector"`
	Window    string `mapstructure:"window"`
	Retention string `mapstructure:"retention"`
}

// collectorIntervals converts the configured intervals, or returns nil so
// the collector uses its defaults.
func collectorIntervals(in []intervalConfig) ([]metrics.IntervalSpec, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]metrics.IntervalSpec, 0, len(in))
	for _, ic := range in {
		if ic.Selector <= 0 {
			return nil, fmt.Errorf("invalid interval selector: %d", ic.Selector)
		}
		window, err := metrics.ParseSpan(ic.Window)
		if err != nil {
			return nil, fmt.Errorf("interval %d window: %w", ic.Selector, err)
		}
		retention, err := metrics.ParseSpan(ic.Retention)
		if err != nil {
			return nil, fmt.Errorf("interval %d retention: %w", ic.Selector, err)
		}
		out = append(out, metrics.IntervalSpec{Selector: ic.Selector, Window: window, Retention: retention})
	}
	return out, nil
}

// collectorConfig builds the engine configuration from cfg.
func collectorConfig(cfg appConfig) (metrics.Config, error) {
	intervals, err := collectorIntervals(cfg.Intervals)
	if err != nil {
		return metrics.Config{}, err
	}
	return metrics.Config{
		Intervals:  intervals,
		LiveWindow: cfg.LiveWindow,
		Backlog:    metrics.BacklogThresholds{High: cfg.BacklogHigh, Medium: cfg.BacklogMedium},
	}, nil
}
