package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// validConfig returns the defaults with the required device fields set.
func validConfig() *Config {
	cfg := Default()
	cfg.Device.Address = "AA:BB:CC:DD:EE:FF"
	cfg.Device.WriteCharUUID = "0000fff2-0000-1000-8000-00805f9b34fb"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Device.Name != "PT Baby Swing" {
		t.Errorf("Device.Name = %q, want %q", cfg.Device.Name, "PT Baby Swing")
	}
	if cfg.Link.ConnectAttempts != 3 {
		t.Errorf("Link.ConnectAttempts = %d, want 3", cfg.Link.ConnectAttempts)
	}
	if cfg.Wake.Debounce != 2*time.Second {
		t.Errorf("Wake.Debounce = %v, want 2s", cfg.Wake.Debounce)
	}
	if cfg.Commands.RefreshInterval != 30*time.Second {
		t.Errorf("Commands.RefreshInterval = %v, want 30s", cfg.Commands.RefreshInterval)
	}
	if cfg.Tokens.PowerOn != "cmd38" {
		t.Errorf("Tokens.PowerOn = %q, want %q", cfg.Tokens.PowerOn, "cmd38")
	}
	if cfg.Tokens.PowerOff != "" || cfg.Tokens.MelodyOff != "cmd00" {
		t.Errorf("Tokens power_off/melody_off = %q/%q, want \"\"/cmd00", cfg.Tokens.PowerOff, cfg.Tokens.MelodyOff)
	}
	if len(cfg.Tokens.Speeds) != 5 || len(cfg.Tokens.Melodies) != 9 {
		t.Errorf("Tokens speeds/melodies = %d/%d, want 5/9", len(cfg.Tokens.Speeds), len(cfg.Tokens.Melodies))
	}
	if cfg.Server.Listen != "127.0.0.1:8686" {
		t.Errorf("Server.Listen = %q, want %q", cfg.Server.Listen, "127.0.0.1:8686")
	}
	if cfg.OSC.Listen != "" {
		t.Errorf("OSC.Listen = %q, want empty", cfg.OSC.Listen)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestDefaultNeedsDevice(t *testing.T) {
	if err := Default().Validate(); err == nil {
		t.Error("Validate() should fail without a device address")
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
device:
  address: " 11:22:33:44:55:66 "
  write_char_uuid: fff2
  notify_char_uuid: fff1
link:
  connect_attempts: 5
  connect_timeout: 4s
  retry_backoff: 250ms
wake:
  settle: 1s
commands:
  rate: 0
tokens:
  timer_step: cmd20
  volume_up: cmd30
osc:
  listen: 127.0.0.1:9000
log_level: debug
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Device.Address != "11:22:33:44:55:66" {
		t.Errorf("Device.Address = %q, want trimmed address", cfg.Device.Address)
	}
	if cfg.Link.ConnectAttempts != 5 {
		t.Errorf("Link.ConnectAttempts = %d, want 5", cfg.Link.ConnectAttempts)
	}
	if cfg.Link.ConnectTimeout != 4*time.Second {
		t.Errorf("Link.ConnectTimeout = %v, want 4s", cfg.Link.ConnectTimeout)
	}
	if cfg.Link.RetryBackoff != 250*time.Millisecond {
		t.Errorf("Link.RetryBackoff = %v, want 250ms", cfg.Link.RetryBackoff)
	}
	if cfg.Link.WriteTimeout != 5*time.Second {
		t.Errorf("Link.WriteTimeout = %v, want default 5s", cfg.Link.WriteTimeout)
	}
	if cfg.Wake.Settle != time.Second {
		t.Errorf("Wake.Settle = %v, want 1s", cfg.Wake.Settle)
	}
	if cfg.Commands.Rate != 0 {
		t.Errorf("Commands.Rate = %v, want 0", cfg.Commands.Rate)
	}
	if cfg.Tokens.PowerOn != "cmd38" {
		t.Errorf("Tokens.PowerOn = %q, want default cmd38", cfg.Tokens.PowerOn)
	}
	if cfg.OSC.Listen != "127.0.0.1:9000" {
		t.Errorf("OSC.Listen = %q, want %q", cfg.OSC.Listen, "127.0.0.1:9000")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}

	tbl := cfg.TokenTable()
	if tbl.TimerStep != "cmd20" || tbl.VolumeUp != "cmd30" {
		t.Errorf("TokenTable() timer/volume = %q/%q", tbl.TimerStep, tbl.VolumeUp)
	}
	id := cfg.Identity()
	if id.WriteChar != "fff2" || id.NotifyChar != "fff1" {
		t.Errorf("Identity() = %+v", id)
	}
	opts := cfg.SwingOptions()
	if opts.ConnectAttempts != 5 || opts.WakeSettle != time.Second || opts.CommandRate != 0 {
		t.Errorf("SwingOptions() = %+v", opts)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestLoadBadDuration(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("link:\n  connect_timeout: soon\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() should fail on an unparseable duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "short characteristic uuid",
			modify:  func(c *Config) { c.Device.WriteCharUUID = "FFF2" },
			wantErr: false,
		},
		{
			name:    "empty address",
			modify:  func(c *Config) { c.Device.Address = "" },
			wantErr: true,
		},
		{
			name:    "empty write characteristic",
			modify:  func(c *Config) { c.Device.WriteCharUUID = "" },
			wantErr: true,
		},
		{
			name:    "bad notify characteristic",
			modify:  func(c *Config) { c.Device.NotifyCharUUID = "not-a-uuid" },
			wantErr: true,
		},
		{
			name:    "bad service uuid",
			modify:  func(c *Config) { c.Device.ServiceUUID = "12345" },
			wantErr: true,
		},
		{
			name:    "zero connect attempts",
			modify:  func(c *Config) { c.Link.ConnectAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "zero write timeout",
			modify:  func(c *Config) { c.Link.WriteTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "backoff above max",
			modify:  func(c *Config) { c.Link.RetryBackoff = time.Minute },
			wantErr: true,
		},
		{
			name:    "negative settle",
			modify:  func(c *Config) { c.Wake.Settle = -time.Second },
			wantErr: true,
		},
		{
			name:    "negative rate",
			modify:  func(c *Config) { c.Commands.Rate = -1 },
			wantErr: true,
		},
		{
			name:    "four speeds",
			modify:  func(c *Config) { c.Tokens.Speeds = c.Tokens.Speeds[:4] },
			wantErr: true,
		},
		{
			name:    "empty power on",
			modify:  func(c *Config) { c.Tokens.PowerOn = "" },
			wantErr: true,
		},
		{
			name:    "token with space",
			modify:  func(c *Config) { c.Tokens.InductionOn = "cmd 40" },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "invalid" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	// Use a temp dir as fake home to avoid touching real config
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	expectedPath := filepath.Join(tmpHome, ".config", "ptbaby", "config.yaml")
	if path != expectedPath {
		t.Errorf("WriteDefault() path = %q, want %q", path, expectedPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}

	if !strings.HasPrefix(string(data), "# ptbaby") {
		t.Error("written config should start with header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Tokens.PowerOn != "cmd38" {
		t.Errorf("written config Tokens.PowerOn = %q, want %q", cfg.Tokens.PowerOn, "cmd38")
	}
	if cfg.Link.ConnectTimeout != 10*time.Second {
		t.Errorf("written config Link.ConnectTimeout = %v, want 10s", cfg.Link.ConnectTimeout)
	}
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "ptbaby")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	existingContent := []byte("device:\n  address: AA:BB:CC:DD:EE:FF\n")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, existingContent, 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteDefault() path = %q, want empty string for existing file", path)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != string(existingContent) {
		t.Error("WriteDefault() should not overwrite existing config file")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
