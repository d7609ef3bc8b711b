package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dbbuilder-org/claude-notify/internal/config"
	"github.com/dbbuilder-org/claude-notify/internal/gateclient"
	"github.com/dbbuilder-org/claude-notify/internal/store"
)

// Gate exit codes, consumed by hook scripts.
const (
	gateExitAllow   = 0
	gateExitDeny    = 1
	gateExitTimeout = 2
)

// runGate implements "claude-notify gate": block until a verdict is
// recorded for the token, then exit 0 (allow), 1 (deny), or 2 (timeout or
// relay unreachable). Hooks treat exit 2 as "fall back to the terminal".
//
// Poll timing comes from poll_timeout_seconds/poll_interval_seconds in the
// config file; the flags override it.
func runGate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	server := fs.String("server", defaultServerURL(), "Relay base URL")
	token := fs.String("token", "", "Action token to wait on (required)")
	configPath := fs.String("config", "", "Path to config file (default: ~/.claude-notify/config.toml)")
	timeout := fs.Duration("timeout", 0, "Maximum wait for a verdict (default: config poll_timeout_seconds)")
	interval := fs.Duration("interval", 0, "Poll interval (default: config poll_interval_seconds)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: claude-notify gate --token <token> [options]

Poll the relay until a verdict is recorded for the token.

Exit codes:
  0  allow
  1  deny
  2  no verdict within the timeout, or relay unreachable

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return gateExitTimeout
	}
	if *token == "" {
		fmt.Fprintln(stderr, "Error: --token is required")
		return gateExitTimeout
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return gateExitTimeout
	}
	wait := *timeout
	if wait <= 0 {
		wait = cfg.PollTimeout()
	}
	step := *interval
	if step <= 0 {
		step = cfg.PollInterval()
	}

	verdict, err := gateclient.New(*server).WaitForDecision(context.Background(), *token, step, wait)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return gateExitTimeout
	}

	fmt.Fprintln(stdout, verdict)
	if verdict == store.VerdictAllow {
		return gateExitAllow
	}
	return gateExitDeny
}
