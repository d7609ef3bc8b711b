package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.3.0" ./cmd
var Version = "dev"

const usage = `claude-notify - phone-side remote control for coding agent sessions

Usage:
  claude-notify <command> [options]

Commands:
  serve          Run the relay control-plane
  session start  Register an agent session and its tmux pane
  session end    Remove an agent session registration
  notify         Register a pending action and push it to the phone
  gate           Block until an action's verdict arrives (exit 0=allow 1=deny 2=timeout)
  status         Show relay status counters
  audit          Show recent resolutions from the audit log
  discover       Browse the local network for relays advertised via mDNS

Run 'claude-notify <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "serve":
		return runServe(args[2:], stdout, stderr)
	case "session":
		if len(args) < 3 {
			fmt.Fprintln(stdout, "Usage: claude-notify session <start|end>")
			return 1
		}
		switch args[2] {
		case "start":
			return runSessionStart(args[3:], stdout, stderr)
		case "end":
			return runSessionEnd(args[3:], stdout, stderr)
		default:
			fmt.Fprintf(stdout, "Unknown session command: %s\n", args[2])
			return 1
		}
	case "notify":
		return runNotify(args[2:], stdout, stderr)
	case "gate":
		return runGate(args[2:], stdout, stderr)
	case "status":
		return runStatus(args[2:], stdout, stderr)
	case "audit":
		return runAudit(args[2:], stdout, stderr)
	case "discover":
		return runDiscover(args[2:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "claude-notify %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
