package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const fullConfig = `
[server]
interface = "br0"
bind_address = "0.0.0.0:1067"
log_level = "debug"
log_format = "text"

[codec]
keep_unknown_options = true
log_unknown_options = true

[capture]
enabled = true
path = "/tmp/captures.db"
max_records = 500

  [capture.rate_limit]
  enabled = true
  max_per_second = 50
  max_per_mac_per_second = 2

[metrics]
enabled = true
listen = "127.0.0.1:9000"
`

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Interface != "br0" {
		t.Errorf("Interface = %q, want %q", cfg.Server.Interface, "br0")
	}
	if cfg.Server.BindAddress != "0.0.0.0:1067" {
		t.Errorf("BindAddress = %q, want %q", cfg.Server.BindAddress, "0.0.0.0:1067")
	}
	if cfg.Server.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", cfg.Server.LogFormat)
	}
	if !cfg.Codec.KeepUnknownOptions || !cfg.Codec.LogUnknownOptions {
		t.Errorf("Codec = %+v, want both true", cfg.Codec)
	}
	if !cfg.Capture.Enabled || cfg.Capture.Path != "/tmp/captures.db" || cfg.Capture.MaxRecords != 500 {
		t.Errorf("Capture = %+v", cfg.Capture)
	}
	rl := cfg.Capture.RateLimit
	if !rl.Enabled || rl.MaxPerSecond != 50 || rl.MaxPerMACPerSecond != 2 {
		t.Errorf("RateLimit = %+v", rl)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != "127.0.0.1:9000" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, "[server]\ninterface = \"eth1\"\n"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.BindAddress != DefaultBindAddress {
		t.Errorf("BindAddress = %q, want %q", cfg.Server.BindAddress, DefaultBindAddress)
	}
	if cfg.Server.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, DefaultLogLevel)
	}
	if cfg.Server.LogFormat != DefaultLogFormat {
		t.Errorf("LogFormat = %q, want %q", cfg.Server.LogFormat, DefaultLogFormat)
	}
	if cfg.Capture.Path != DefaultCapturePath {
		t.Errorf("Capture.Path = %q, want %q", cfg.Capture.Path, DefaultCapturePath)
	}
	if cfg.Capture.MaxRecords != DefaultCaptureMaxRecords {
		t.Errorf("Capture.MaxRecords = %d, want %d", cfg.Capture.MaxRecords, DefaultCaptureMaxRecords)
	}
	if cfg.Capture.RateLimit.MaxPerSecond != DefaultRateLimitPerSecond {
		t.Errorf("MaxPerSecond = %d, want %d", cfg.Capture.RateLimit.MaxPerSecond, DefaultRateLimitPerSecond)
	}
	if cfg.Metrics.Listen != DefaultMetricsListen {
		t.Errorf("Metrics.Listen = %q, want %q", cfg.Metrics.Listen, DefaultMetricsListen)
	}
	if cfg.Codec.KeepUnknownOptions {
		t.Error("KeepUnknownOptions defaulted to true")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := validate(cfg); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("error = %v, want reading config file error", err)
	}
}

func TestLoadInvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"syntax", "[server\n", "parsing config file"},
		{"unknown key", "[server]\nlease_db = \"x\"\n", "unknown keys: server.lease_db"},
		{"bad bind", "[server]\nbind_address = \"nope\"\n", "server.bind_address"},
		{"bad level", "[server]\nlog_level = \"loud\"\n", "server.log_level"},
		{"bad format", "[server]\nlog_format = \"xml\"\n", "server.log_format"},
		{"negative max", "[capture]\nmax_records = -1\n", "capture.max_records"},
		{"negative rate", "[capture.rate_limit]\nmax_per_second = -5\n", "capture.rate_limit.max_per_second"},
		{"bad metrics", "[metrics]\nenabled = true\nlisten = \"9000\"\n", "metrics.listen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTestConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
