// Command ptbaby drives a PT Baby swing over Bluetooth LE.
//
// Usage:
//
//	ptbaby [--config path] run          connect and serve the HTTP/OSC surfaces
//	ptbaby scan [--timeout 10s]         list nearby BLE devices
//	ptbaby [--config path] ctl OP [ARG] send one action to a running daemon
//	ptbaby init                         write the default config file
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/ptbaby/internal/ble"
	"github.com/chaz8081/ptbaby/internal/config"
	"github.com/chaz8081/ptbaby/internal/entity"
	"github.com/chaz8081/ptbaby/internal/osc"
	"github.com/chaz8081/ptbaby/internal/server"
	"github.com/chaz8081/ptbaby/internal/swing"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/ptbaby/config.yaml)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "run":
		err = runDaemon(*configPath)
	case "scan":
		err = runScan(args[1:])
	case "ctl":
		err = runCtl(*configPath, args[1:])
	case "init":
		err = runInit()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ptbaby: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ptbaby [--config path] run | scan [--timeout d] | ctl OP [ARG] | init")
}

// setupLogging installs a text handler on stderr at the configured level.
func setupLogging(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLogLevel(level)})
	slog.SetDefault(slog.New(handler))
}

func runDaemon(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	setupLogging(cfg.LogLevel)
	printBanner(cfg)

	adapter := ble.NewTinyGoAdapter(cfg.Device.ServiceUUID)
	coord, err := swing.New(adapter, cfg.Identity(), cfg.TokenTable(), cfg.SwingOptions())
	if err != nil {
		return err
	}
	set := entity.NewSet(coord, cfg.Device.Name, cfg.Device.Address)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Run(ctx) })
	g.Go(func() error {
		logStateChanges(ctx, coord)
		return nil
	})
	if cfg.Server.Listen != "" {
		srv := server.New(coord, set)
		g.Go(func() error { return srv.ListenAndServe(ctx, cfg.Server.Listen) })
	}
	if cfg.OSC.Listen != "" {
		oscSrv := osc.New(set, server.DefaultActionTimeout)
		g.Go(func() error { return oscSrv.ListenAndServe(ctx, cfg.OSC.Listen) })
	}

	slog.Info("Ready! Ctrl+C to quit.")
	err = g.Wait()
	slog.Info("Goodbye!")
	return err
}

// logStateChanges logs link transitions until ctx is done.
func logStateChanges(ctx context.Context, coord *swing.Coordinator) {
	states, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	last := coord.State()
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-states:
			if st.Connected != last.Connected {
				slog.Info("[SWING] link changed", "address", coord.Address(), "connected", st.Connected)
			}
			slog.Debug("[SWING] state", "state", fmt.Sprintf("%+v", st))
			last = st
		}
	}
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	timeout := fs.Duration("timeout", 10*time.Second, "how long to scan")
	service := fs.String("service", "", "only list devices advertising this service UUID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogging("warn")

	fmt.Printf("Scanning for %s...\n", *timeout)
	devices, err := ble.ScanForDevices(ble.NewTinyGoAdapter(""), *service, *timeout)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return nil
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].RSSI > devices[j].RSSI })
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("  %-24s %-38s %4d dBm\n", name, d.Address, d.RSSI)
	}
	return nil
}

func runCtl(configPath string, args []string) error {
	fs := flag.NewFlagSet("ctl", flag.ExitOnError)
	url := fs.String("url", "", "daemon websocket URL (default: from server.listen)")
	timeout := fs.Duration("timeout", server.DefaultActionTimeout, "how long to wait for the result")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("ctl: missing operation")
	}

	target := *url
	if target == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if cfg.Server.Listen == "" {
			return fmt.Errorf("ctl: server.listen is empty; pass --url")
		}
		target = "ws://" + cfg.Server.Listen + "/ws"
	}

	action := parseAction(fs.Arg(0), fs.Args()[1:])
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st, err := server.Do(ctx, target, action)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// parseAction builds an action from the command line: a numeric argument
// becomes Value, anything else becomes Text.
func parseAction(op string, rest []string) entity.Action {
	a := entity.Action{Op: op}
	if len(rest) == 0 {
		return a
	}
	arg := strings.Join(rest, " ")
	if v, err := strconv.ParseFloat(arg, 64); err == nil {
		a.Value = v
	} else {
		a.Text = arg
	}
	return a
}

func runInit() error {
	path, err := config.WriteDefault()
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
		return nil
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		slog.Info("Config loaded", "path", defaultPath)
		return cfg, nil
	}

	slog.Info("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	notify := cfg.Device.NotifyCharUUID
	if notify == "" {
		notify = "(none)"
	}
	listen := func(addr string) string {
		if addr == "" {
			return "disabled"
		}
		return addr
	}

	fmt.Println("=== ptbaby ===")
	fmt.Printf("  Device:  %s (%s)\n", cfg.Device.Name, cfg.Device.Address)
	fmt.Printf("  Write:   %s\n", cfg.Device.WriteCharUUID)
	fmt.Printf("  Notify:  %s\n", notify)
	fmt.Printf("  Wake:    debounce %s, settle %s\n", cfg.Wake.Debounce, cfg.Wake.Settle)
	fmt.Printf("  HTTP:    %s\n", listen(cfg.Server.Listen))
	fmt.Printf("  OSC:     %s\n", listen(cfg.OSC.Listen))
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("==============")
}
