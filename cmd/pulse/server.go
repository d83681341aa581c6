package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/pulse/internal/bus"
	"github.com/tinytelemetry/pulse/internal/httpserver"
	"github.com/tinytelemetry/pulse/internal/ingest"
	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/otlpreceiver"
	"github.com/tinytelemetry/pulse/internal/socketrpc"
)

// runServer starts headless ingestion with the HTTP API, socket RPC and
// optional OTLP and Kafka inputs.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger(cfg.LogLevel)
	defer cleanupLogger()

	collectorCfg, err := collectorConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid interval config: %w", err)
	}
	collector, err := metrics.NewCollector(collectorCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics collector: %w", err)
	}

	registry := newMetricsRegistry(collector)

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, collector, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start socket RPC server for TUI IPC
	sockServer := socketrpc.NewServer(cfg.SocketPath, collector)
	if err := sockServer.Start(); err != nil {
		log.Warnf("failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	if cfg.OTLPEnabled {
		receiver := otlpreceiver.NewReceiver(cfg.OTLPAddr, collector)
		if err := receiver.Start(); err != nil {
			return fmt.Errorf("failed to start OTLP receiver: %w", err)
		}
		defer receiver.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	// Build input plugins and source multiplexer
	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled:   cfg.TCPEnabled,
		TCPAddr:      cfg.TCPAddr,
		KafkaEnabled: cfg.KafkaEnabled,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaGroup:   cfg.KafkaGroup,
		KafkaTopics:  cfg.KafkaTopics,
	})
	sources := buildSources(ctx, plugins)

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	processor, err := ingest.NewEnvelopeProcessor(cfg.Processor, collector, "", ingest.Options{UseLogTime: cfg.UseLogTime})
	if err != nil {
		mux.Stop()
		return fmt.Errorf("failed to build processor: %w", err)
	}

	printStartupBanner(cfg, mux.SourceNames(), processor.Name())

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	// Ingestion loop
	if mux.HasSources() {
		g.Go(func() error {
			runIngestion(mux, processor)
			return nil
		})
	}

	if cfg.KafkaEnabled {
		monitor := bus.NewLagMonitor(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaTopics, cfg.KafkaLagInterval, collector)
		g.Go(func() error {
			return monitor.Run(gctx)
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorf("server: errgroup exited with error: %v", err)
	}

	cancel()
	mux.Stop()
	for name, n := range mux.Forwarded() {
		log.WithField("source", name).Infof("server: forwarded %d lines", n)
	}
	stats := collector.Stats()
	log.Infof("server: recorded %d events (%d service, %d bus)", stats.EventsRecorded, stats.ServiceEvents, stats.BusEvents)

	signal.Stop(sigCh)

	return nil
}

// buildSources starts every enabled plugin. A plugin that fails to start is
// logged and skipped.
func buildSources(ctx context.Context, plugins []InputSourcePlugin) []NamedLogSource {
	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Errorf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}
	return sources
}

// runIngestion feeds every multiplexed envelope to the processor until the
// multiplexer closes.
func runIngestion(mux *SourceMultiplexer, processor ingest.EnvelopeProcessor) {
	for env := range mux.Lines() {
		processor.ProcessEnvelope(env)
	}
}

// newMetricsRegistry registers the collector exporter next to the Go runtime
// and process collectors.
func newMetricsRegistry(q *metrics.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		metrics.NewExporter(q),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger(level string) func() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	if lvl, err := log.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "pulse")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "pulse.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, inputs []string, processorName string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗╦ ╦╦  ╔═╗╔═╗
    ╠═╝║ ║║  ╚═╗║╣
    ╩  ╚═╝╩═╝╚═╝╚═╝`)

	row := func(on bool, label, value string) string {
		if on {
			return fmt.Sprintf("    %s  %-14s %s", check, label, cyan.Render(value))
		}
		return fmt.Sprintf("    %s  %-14s %s", dot, label, dim.Render("disabled"))
	}

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Gateway"), "")
	lines = append(lines, row(cfg.APIEnabled, "HTTP API", cfg.APIAddr))
	lines = append(lines, row(cfg.TCPEnabled, "TCP Ingest", cfg.TCPAddr))
	lines = append(lines, row(cfg.OTLPEnabled, "OTLP gRPC", cfg.OTLPAddr))
	lines = append(lines, row(true, "Unix Socket", shortenPath(cfg.SocketPath)))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Inputs"), "")
	if len(inputs) == 0 {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", dot, "Sources", dim.Render("none (HTTP/OTLP only)")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Sources", dim.Render(strings.Join(inputs, ", "))))
	}
	kafka := ""
	if cfg.KafkaEnabled {
		kafka = fmt.Sprintf("%s @ %s", strings.Join(cfg.KafkaTopics, ","), strings.Join(cfg.KafkaBrokers, ","))
	}
	lines = append(lines, row(cfg.KafkaEnabled, "Kafka", kafka))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Runtime"), "")
	lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Processor", dim.Render(processorName)))
	lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Live Window", dim.Render(cfg.LiveWindow.String())))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", dot, "Config File", dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
