package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/socketrpc"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// GetVersionInfo returns the current version and commit information.
func GetVersionInfo() (string, string) {
	return version, commit
}

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/pulse/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("Pulse - Live Event Metrics Service\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("PULSE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("host", defaultBindHost)
	v.SetDefault("processor", defaultProcessor)
	v.SetDefault("use-log-time", false)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("tcp-enabled", true)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("live-window", defaultLiveWindow)
	v.SetDefault("backlog-high", metrics.DefaultBacklogHigh)
	v.SetDefault("backlog-medium", metrics.DefaultBacklogMedium)
	v.SetDefault("kafka-enabled", false)
	v.SetDefault("kafka-brokers", []string{})
	v.SetDefault("kafka-group", defaultKafkaGroup)
	v.SetDefault("kafka-topics", []string{})
	v.SetDefault("kafka-lag-interval", defaultLagInterval)
	v.SetDefault("otlp-enabled", false)
	v.SetDefault("otlp-port", defaultOTLPPort)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "pulse", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if cfg.Host == "" {
		cfg.Host = defaultBindHost
	}
	for _, p := range []struct {
		key  string
		port int
	}{{"tcp-port", cfg.TCPPort}, {"api-port", cfg.APIPort}, {"otlp-port", cfg.OTLPPort}} {
		if p.port <= 0 || p.port > 65535 {
			return cfg, fmt.Errorf("invalid %s: %d", p.key, p.port)
		}
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("invalid log-level: %w", err)
	}
	if cfg.LiveWindow <= 0 {
		return cfg, fmt.Errorf("invalid live-window: %s", cfg.LiveWindow)
	}
	if cfg.BacklogHigh < 0 || cfg.BacklogMedium < 0 || (cfg.BacklogHigh > 0 && cfg.BacklogMedium > cfg.BacklogHigh) {
		return cfg, fmt.Errorf("invalid backlog thresholds: medium %d, high %d", cfg.BacklogMedium, cfg.BacklogHigh)
	}
	if _, err := collectorIntervals(cfg.Intervals); err != nil {
		return cfg, fmt.Errorf("invalid intervals: %w", err)
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return cfg, errors.New("kafka-brokers is required when kafka-enabled is set")
		}
		if len(cfg.KafkaTopics) == 0 {
			return cfg, errors.New("kafka-topics is required when kafka-enabled is set")
		}
	}

	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}
	if cfg.OTLPAddr == "" {
		cfg.OTLPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.OTLPPort))
	}

	return cfg, nil
}
