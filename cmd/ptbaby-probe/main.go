// Command ptbaby-probe is a manual tool for finding command tokens. It
// connects to the configured swing and sends each token in turn, pausing
// between them so the effect can be observed.
//
// Usage:
//
//	go run ./cmd/ptbaby-probe [--config path] [--pause 3s] cmd20 cmd21 ...
//	go run ./cmd/ptbaby-probe --range cmd15-cmd37
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/ptbaby/internal/ble"
	"github.com/chaz8081/ptbaby/internal/config"
	"github.com/chaz8081/ptbaby/internal/swing"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath(), "path to config file")
	pause := flag.Duration("pause", 3*time.Second, "pause after each token")
	tokenRange := flag.String("range", "", "token range such as cmd15-cmd37")
	flag.Parse()

	tokens := flag.Args()
	if *tokenRange != "" {
		r, err := expandRange(*tokenRange)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(2)
		}
		tokens = append(tokens, r...)
	}
	if len(tokens) == 0 {
		fmt.Println("Nothing to send. Pass tokens or --range.")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.LogLevel)})))

	coord, err := swing.New(ble.NewTinyGoAdapter(cfg.Device.ServiceUUID), cfg.Identity(), cfg.TokenTable(), cfg.SwingOptions())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer coord.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Connecting to %s...\n", cfg.Device.Address)
	if err := coord.Refresh(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	for i, tok := range tokens {
		fmt.Printf("[%d/%d] %s ", i+1, len(tokens), tok)
		if err := coord.SendRawCommand(ctx, tok); err != nil {
			fmt.Printf("failed: %v\n", err)
			if ctx.Err() != nil {
				return
			}
			continue
		}
		fmt.Println("sent")

		select {
		case <-ctx.Done():
			return
		case <-time.After(*pause):
		}
	}

	fmt.Println("\nDone!")
}

// expandRange turns "cmd15-cmd18" into cmd15, cmd16, cmd17, cmd18. Both
// ends must share a prefix; the width of the first number is kept.
func expandRange(s string) ([]string, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("range %q: want FROM-TO", s)
	}
	prefix, lo, width, err := splitToken(from)
	if err != nil {
		return nil, err
	}
	prefix2, hi, _, err := splitToken(to)
	if err != nil {
		return nil, err
	}
	if prefix != prefix2 || hi < lo {
		return nil, fmt.Errorf("range %q: ends do not match", s)
	}

	var out []string
	for n := lo; n <= hi; n++ {
		out = append(out, fmt.Sprintf("%s%0*d", prefix, width, n))
	}
	return out, nil
}

func splitToken(tok string) (prefix string, n, width int, err error) {
	i := len(tok)
	for i > 0 && tok[i-1] >= '0' && tok[i-1] <= '9' {
		i--
	}
	if i == len(tok) {
		return "", 0, 0, fmt.Errorf("token %q has no number", tok)
	}
	n, err = strconv.Atoi(tok[i:])
	if err != nil {
		return "", 0, 0, err
	}
	return tok[:i], n, len(tok) - i, nil
}
