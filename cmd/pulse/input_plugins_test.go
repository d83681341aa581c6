package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/pulse/internal/metrics"
)

func TestBuildInputPlugins_RegistersPrimitives(t *testing.T) {
	t.Parallel()

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled: true,
		TCPAddr:    "127.0.0.1:4000",
	})

	if len(plugins) != 3 {
		t.Fatalf("expected 3 plugins, got %d", len(plugins))
	}
	for i, want := range []string{"tcp", "kafka", "stdin"} {
		if plugins[i].Name() != want {
			t.Fatalf("plugins[%d] name = %q, want %q", i, plugins[i].Name(), want)
		}
	}
	if !plugins[0].Enabled() {
		t.Fatal("expected tcp plugin to be enabled when TCPEnabled=true")
	}
	if plugins[1].Enabled() {
		t.Fatal("expected kafka plugin to be disabled by default")
	}
}

func TestBuildInputPlugins_TCPDisabled(t *testing.T) {
	t.Parallel()

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled: false,
		TCPAddr:    "127.0.0.1:4000",
	})

	if plugins[0].Enabled() {
		t.Fatal("expected tcp plugin to be disabled when TCPEnabled=false")
	}
}

func TestKafkaPlugin_RejectsIncompleteConfig(t *testing.T) {
	t.Parallel()

	plugins := buildInputPlugins(InputPluginConfig{
		KafkaEnabled: true,
		KafkaGroup:   "pulse",
		KafkaTopics:  []string{"orders"},
	})
	if !plugins[1].Enabled() {
		t.Fatal("expected kafka plugin to be enabled")
	}
	if _, err := plugins[1].Build(context.Background()); err == nil {
		t.Fatal("expected error building kafka plugin without brokers")
	}
}

func TestBuildSources_SkipsFailures(t *testing.T) {
	t.Parallel()

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled:   true,
		TCPAddr:      "127.0.0.1:0",
		KafkaEnabled: true, // no brokers: fails and is skipped
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sources := buildSources(ctx, plugins)
	defer func() {
		for _, src := range sources {
			src.Stop()
		}
	}()

	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name())
	}
	if len(names) == 0 || names[0] != "tcp" {
		t.Fatalf("sources = %v, want tcp first", names)
	}
	for _, n := range names {
		if n == "kafka" {
			t.Fatalf("kafka source should be skipped, got %v", names)
		}
	}
}

func TestLoadConfig_AddressResolution(t *testing.T) {
	resetPulseEnv(t)

	tests := []struct {
		name         string
		configYAML   string
		wantErr      bool
		wantHost     string
		wantTCPAddr  string
		wantAPIAddr  string
		wantOTLPAddr string
		errSubstring string
	}{
		{
			name: "defaults to localhost host",
			configYAML: `
tcp-port: 4100
api-port: 3100
`,
			wantHost:     "127.0.0.1",
			wantTCPAddr:  "127.0.0.1:4100",
			wantAPIAddr:  "127.0.0.1:3100",
			wantOTLPAddr: "127.0.0.1:4317",
		},
		{
			name: "host applies to derived addresses",
			configYAML: `
host: 0.0.0.0
tcp-port: 4200
api-port: 3200
otlp-port: 4400
`,
			wantHost:     "0.0.0.0",
			wantTCPAddr:  "0.0.0.0:4200",
			wantAPIAddr:  "0.0.0.0:3200",
			wantOTLPAddr: "0.0.0.0:4400",
		},
		{
			name: "explicit addresses override host and ports",
			configYAML: `
host: 0.0.0.0
tcp-port: 4300
api-port: 3300
tcp-addr: 10.0.0.5:9999
api-addr: 10.0.0.5:8888
otlp-addr: 10.0.0.5:7777
`,
			wantHost:     "0.0.0.0",
			wantTCPAddr:  "10.0.0.5:9999",
			wantAPIAddr:  "10.0.0.5:8888",
			wantOTLPAddr: "10.0.0.5:7777",
		},
		{
			name: "invalid port rejected",
			configYAML: `
tcp-port: 70000
`,
			wantErr:      true,
			errSubstring: "invalid tcp-port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeTempConfig(t, tt.configYAML)
			cfg, err := loadConfig(configPath)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errSubstring != "" && !strings.Contains(err.Error(), tt.errSubstring) {
					t.Fatalf("error = %q, want substring %q", err.Error(), tt.errSubstring)
				}
				return
			}

			if err != nil {
				t.Fatalf("loadConfig returned error: %v", err)
			}

			if cfg.Host != tt.wantHost {
				t.Fatalf("Host = %q, want %q", cfg.Host, tt.wantHost)
			}
			if cfg.TCPAddr != tt.wantTCPAddr {
				t.Fatalf("TCPAddr = %q, want %q", cfg.TCPAddr, tt.wantTCPAddr)
			}
			if cfg.APIAddr != tt.wantAPIAddr {
				t.Fatalf("APIAddr = %q, want %q", cfg.APIAddr, tt.wantAPIAddr)
			}
			if cfg.OTLPAddr != tt.wantOTLPAddr {
				t.Fatalf("OTLPAddr = %q, want %q", cfg.OTLPAddr, tt.wantOTLPAddr)
			}
		})
	}
}

func TestLoadConfig_MetricsSettings(t *testing.T) {
	resetPulseEnv(t)

	tests := []struct {
		name         string
		configYAML   string
		wantErr      bool
		errSubstring string
		assert       func(t *testing.T, cfg appConfig)
	}{
		{
			name: "defaults",
			configYAML: `
tcp-port: 4000
`,
			assert: func(t *testing.T, cfg appConfig) {
				t.Helper()
				if cfg.LiveWindow != time.Minute {
					t.Fatalf("live-window = %s, want 1m", cfg.LiveWindow)
				}
				if cfg.BacklogHigh != metrics.DefaultBacklogHigh || cfg.BacklogMedium != metrics.DefaultBacklogMedium {
					t.Fatalf("backlog thresholds = %d/%d", cfg.BacklogHigh, cfg.BacklogMedium)
				}
				if cfg.Processor != "parse" {
					t.Fatalf("processor = %q, want parse", cfg.Processor)
				}
				if len(cfg.Intervals) != 0 {
					t.Fatalf("intervals = %+v, want none configured", cfg.Intervals)
				}
			},
		},
		{
			name: "custom intervals and kafka",
			configYAML: `
live-window: 30s
backlog-high: 500
backlog-medium: 50
intervals:
  - selector: 1
    window: 1s
    retention: 1m
  - selector: 10080
    window: 6h
    retention: 7d
kafka-enabled: true
kafka-brokers: [broker-1:9092, broker-2:9092]
kafka-topics: [orders]
kafka-lag-interval: 5s
`,
			assert: func(t *testing.T, cfg appConfig) {
				t.Helper()
				if cfg.LiveWindow != 30*time.Second {
					t.Fatalf("live-window = %s, want 30s", cfg.LiveWindow)
				}
				if !cfg.KafkaEnabled || len(cfg.KafkaBrokers) != 2 || cfg.KafkaGroup != "pulse" {
					t.Fatalf("kafka config = %+v", cfg)
				}
				if cfg.KafkaLagInterval != 5*time.Second {
					t.Fatalf("kafka-lag-interval = %s, want 5s", cfg.KafkaLagInterval)
				}
				mc, err := collectorConfig(cfg)
				if err != nil {
					t.Fatalf("collectorConfig: %v", err)
				}
				if len(mc.Intervals) != 2 || mc.Intervals[1].Retention != 7*24*time.Hour {
					t.Fatalf("intervals = %+v", mc.Intervals)
				}
				if mc.Backlog.High != 500 || mc.Backlog.Medium != 50 {
					t.Fatalf("backlog = %+v", mc.Backlog)
				}
			},
		},
		{
			name: "bad interval span rejected",
			configYAML: `
intervals:
  - selector: 1
    window: soon
    retention: 1m
`,
			wantErr:      true,
			errSubstring: "invalid intervals",
		},
		{
			name: "kafka requires brokers",
			configYAML: `
kafka-enabled: true
kafka-topics: [orders]
`,
			wantErr:      true,
			errSubstring: "kafka-brokers is required",
		},
		{
			name: "medium above high rejected",
			configYAML: `
backlog-high: 10
backlog-medium: 100
`,
			wantErr:      true,
			errSubstring: "invalid backlog thresholds",
		},
		{
			name: "bad log level rejected",
			configYAML: `
log-level: loud
`,
			wantErr:      true,
			errSubstring: "invalid log-level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeTempConfig(t, tt.configYAML)
			cfg, err := loadConfig(configPath)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errSubstring != "" && !strings.Contains(err.Error(), tt.errSubstring) {
					t.Fatalf("error = %q, want substring %q", err.Error(), tt.errSubstring)
				}
				return
			}

			if err != nil {
				t.Fatalf("loadConfig returned error: %v", err)
			}
			if tt.assert != nil {
				tt.assert(t, cfg)
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	resetPulseEnv(t)
	t.Setenv("PULSE_API_PORT", "3900")
	t.Setenv("PULSE_PROCESSOR", "passthrough")

	cfg, err := loadConfig(writeTempConfig(t, "tcp-port: 4000"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.APIAddr != "127.0.0.1:3900" {
		t.Fatalf("APIAddr = %q, want 127.0.0.1:3900", cfg.APIAddr)
	}
	if cfg.Processor != "passthrough" {
		t.Fatalf("Processor = %q, want passthrough", cfg.Processor)
	}
}

func TestCollectorIntervals_Defaults(t *testing.T) {
	t.Parallel()

	got, err := collectorIntervals(nil)
	if err != nil || got != nil {
		t.Fatalf("collectorIntervals(nil) = %v, %v; want nil, nil", got, err)
	}
	if _, err := collectorIntervals([]intervalConfig{{Selector: 0, Window: "1s", Retention: "1m"}}); err == nil {
		t.Fatal("expected error for zero selector")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func resetPulseEnv(t *testing.T) {
	t.Helper()

	original := make(map[string]string)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "PULSE_") {
			continue
		}
		original[key] = value
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}

	t.Cleanup(func() {
		for key, value := range original {
			_ = os.Setenv(key, value)
		}
	})
}
