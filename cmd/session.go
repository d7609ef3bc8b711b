package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dbbuilder-org/claude-notify/internal/config"
	"github.com/dbbuilder-org/claude-notify/internal/gateclient"
)

// defaultServerURL builds the relay base URL hooks talk to, honoring the
// same environment variables the serve command reads for its listen
// address.
func defaultServerURL() string {
	if addr := os.Getenv(config.EnvAddr); addr != "" {
		return "http://" + addr
	}
	if port := os.Getenv(config.EnvPort); port != "" {
		return "http://127.0.0.1:" + port
	}
	return "http://" + config.DefaultAddr
}

// runSessionStart implements "claude-notify session start", invoked from
// the agent's session-start hook.
func runSessionStart(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("session start", flag.ContinueOnError)
	fs.SetOutput(stderr)

	server := fs.String("server", defaultServerURL(), "Relay base URL")
	sessionID := fs.String("session-id", "", "Agent session id (required)")
	pane := fs.String("pane", os.Getenv("TMUX_PANE"), "tmux pane handle for keystroke dispatch")
	cwd := fs.String("cwd", "", "Session working directory (default: current directory)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if *sessionID == "" {
		fmt.Fprintln(stderr, "Error: --session-id is required")
		return 1
	}

	dir := *cwd
	if dir == "" {
		dir, _ = os.Getwd()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := gateclient.New(*server).RegisterSession(ctx, *sessionID, *pane, dir); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Session %s registered\n", *sessionID)
	return 0
}

// runSessionEnd implements "claude-notify session end".
func runSessionEnd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("session end", flag.ContinueOnError)
	fs.SetOutput(stderr)

	server := fs.String("server", defaultServerURL(), "Relay base URL")
	sessionID := fs.String("session-id", "", "Agent session id (required)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if *sessionID == "" {
		fmt.Fprintln(stderr, "Error: --session-id is required")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := gateclient.New(*server).RemoveSession(ctx, *sessionID); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Session %s removed\n", *sessionID)
	return 0
}
