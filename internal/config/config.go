package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/ptbaby/internal/ble"
	"github.com/chaz8081/ptbaby/internal/ble/protocol"
	"github.com/chaz8081/ptbaby/internal/swing"
)

// Config holds all application configuration.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Link     LinkConfig     `yaml:"link"`
	Wake     WakeConfig     `yaml:"wake"`
	Commands CommandsConfig `yaml:"commands"`
	Tokens   TokensConfig   `yaml:"tokens"`
	Server   ServerConfig   `yaml:"server"`
	OSC      OSCConfig      `yaml:"osc"`
	LogLevel string         `yaml:"log_level"`
}

// DeviceConfig identifies the swing.
type DeviceConfig struct {
	Name           string `yaml:"name"`
	Address        string `yaml:"address"`      // MAC on Linux, CoreBluetooth UUID on macOS
	ServiceUUID    string `yaml:"service_uuid"` // optional, limits discovery
	WriteCharUUID  string `yaml:"write_char_uuid"`
	NotifyCharUUID string `yaml:"notify_char_uuid"` // optional
}

// LinkConfig bounds connection attempts.
type LinkConfig struct {
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ResolveTimeout  time.Duration `yaml:"resolve_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`
}

// WakeConfig tunes the wake handshake.
type WakeConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Settle   time.Duration `yaml:"settle"`
}

// CommandsConfig paces writes and sets the keepalive cadence.
type CommandsConfig struct {
	Rate            float64       `yaml:"rate"` // writes per second, 0 = unlimited
	Burst           int           `yaml:"burst"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// TokensConfig is the device's token vocabulary. An empty optional token
// marks the control as cache-only.
type TokensConfig struct {
	PowerOn      string   `yaml:"power_on"`
	PowerOff     string   `yaml:"power_off"`
	MelodyOn     string   `yaml:"melody_on"`
	MelodyOff    string   `yaml:"melody_off"`
	Speeds       []string `yaml:"speeds"`
	Melodies     []string `yaml:"melodies"`
	TimerStep    string   `yaml:"timer_step"`
	VolumeUp     string   `yaml:"volume_up"`
	VolumeDown   string   `yaml:"volume_down"`
	InductionOn  string   `yaml:"induction_on"`
	InductionOff string   `yaml:"induction_off"`
}

// ServerConfig holds the HTTP/websocket listener. Empty Listen disables it.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// OSCConfig holds the OSC listener. Empty Listen disables it.
type OSCConfig struct {
	Listen string `yaml:"listen"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ptbaby")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values. The device
// address and write characteristic have no default.
func Default() *Config {
	opts := swing.DefaultOptions()
	tbl := protocol.DefaultTable()

	return &Config{
		Device: DeviceConfig{
			Name: "PT Baby Swing",
		},
		Link: LinkConfig{
			ConnectAttempts: opts.ConnectAttempts,
			ConnectTimeout:  opts.ConnectTimeout,
			ResolveTimeout:  opts.ResolveTimeout,
			WriteTimeout:    opts.WriteTimeout,
			RetryBackoff:    opts.RetryBackoff,
			RetryBackoffMax: opts.RetryBackoffMax,
		},
		Wake: WakeConfig{
			Debounce: opts.WakeDebounce,
			Settle:   opts.WakeSettle,
		},
		Commands: CommandsConfig{
			Rate:            opts.CommandRate,
			Burst:           opts.CommandBurst,
			RefreshInterval: opts.RefreshInterval,
		},
		Tokens: TokensConfig{
			PowerOn:   tbl.PowerOn,
			PowerOff:  tbl.PowerOff,
			MelodyOn:  tbl.MelodyOn,
			MelodyOff: tbl.MelodyOff,
			Speeds:    tbl.Speeds,
			Melodies:  tbl.Melodies,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8686",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Device.Address = strings.TrimSpace(cfg.Device.Address)
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.Address == "" {
		return fmt.Errorf("device.address must not be empty")
	}

	if c.Device.WriteCharUUID == "" {
		return fmt.Errorf("device.write_char_uuid must not be empty")
	}
	uuids := map[string]string{
		"device.write_char_uuid":  c.Device.WriteCharUUID,
		"device.notify_char_uuid": c.Device.NotifyCharUUID,
		"device.service_uuid":     c.Device.ServiceUUID,
	}
	for key, v := range uuids {
		if v == "" {
			continue
		}
		if _, err := ble.ParseUUID(v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if c.Link.ConnectAttempts <= 0 {
		return fmt.Errorf("link.connect_attempts must be > 0")
	}
	timeouts := []struct {
		key string
		d   time.Duration
	}{
		{"link.connect_timeout", c.Link.ConnectTimeout},
		{"link.resolve_timeout", c.Link.ResolveTimeout},
		{"link.write_timeout", c.Link.WriteTimeout},
		{"commands.refresh_interval", c.Commands.RefreshInterval},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			return fmt.Errorf("%s must be > 0", t.key)
		}
	}
	if c.Link.RetryBackoff < 0 || c.Link.RetryBackoffMax < c.Link.RetryBackoff {
		return fmt.Errorf("link.retry_backoff must be >= 0 and <= link.retry_backoff_max")
	}
	if c.Wake.Debounce < 0 || c.Wake.Settle < 0 {
		return fmt.Errorf("wake.debounce and wake.settle must be >= 0")
	}
	if c.Commands.Rate < 0 {
		return fmt.Errorf("commands.rate must be >= 0")
	}

	if err := c.TokenTable().Validate(); err != nil {
		return fmt.Errorf("tokens: %w", err)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// Identity returns the device identity for the coordinator.
func (c *Config) Identity() swing.Identity {
	return swing.Identity{
		Address:    c.Device.Address,
		WriteChar:  c.Device.WriteCharUUID,
		NotifyChar: c.Device.NotifyCharUUID,
	}
}

// SwingOptions returns the coordinator options.
func (c *Config) SwingOptions() swing.Options {
	return swing.Options{
		ConnectAttempts: c.Link.ConnectAttempts,
		ConnectTimeout:  c.Link.ConnectTimeout,
		ResolveTimeout:  c.Link.ResolveTimeout,
		WriteTimeout:    c.Link.WriteTimeout,
		RetryBackoff:    c.Link.RetryBackoff,
		RetryBackoffMax: c.Link.RetryBackoffMax,
		WakeDebounce:    c.Wake.Debounce,
		WakeSettle:      c.Wake.Settle,
		CommandRate:     c.Commands.Rate,
		CommandBurst:    c.Commands.Burst,
		RefreshInterval: c.Commands.RefreshInterval,
	}
}

// TokenTable returns the configured tokens.
func (c *Config) TokenTable() protocol.Table {
	t := c.Tokens
	return protocol.Table{
		PowerOn:      t.PowerOn,
		PowerOff:     t.PowerOff,
		MelodyOn:     t.MelodyOn,
		MelodyOff:    t.MelodyOff,
		Speeds:       t.Speeds,
		Melodies:     t.Melodies,
		TimerStep:    t.TimerStep,
		VolumeUp:     t.VolumeUp,
		VolumeDown:   t.VolumeDown,
		InductionOn:  t.InductionOn,
		InductionOff: t.InductionOff,
	}
}

const defaultHeader = `# ptbaby configuration
#
# Fill in device.address and device.write_char_uuid, then run "ptbaby run".
# "ptbaby scan" lists nearby devices. Characteristic UUIDs may be given in
# full or as 16-bit short forms such as "fff2".
#
# An empty optional token (power_off, timer_step, volume_*, induction_*)
# means no verified wire command exists: the control only updates cached
# state. No power-off token has been observed on the device; set power_off
# if yours has one.

`

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the path written, or "" if a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// ParseLogLevel converts a log_level string to a slog.Level. Unknown values
// map to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
