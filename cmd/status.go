package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dbbuilder-org/claude-notify/internal/gateclient"
	"github.com/dbbuilder-org/claude-notify/internal/server"
)

// runStatus implements "claude-notify status".
func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)

	serverURL := fs.String("server", defaultServerURL(), "Relay base URL")
	jsonOutput := fs.Bool("json", false, "Output in JSON format")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	raw, err := gateclient.New(*serverURL).Status(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOutput {
		var pretty map[string]interface{}
		if err := json.Unmarshal(raw, &pretty); err == nil {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			enc.Encode(pretty)
			return 0
		}
		fmt.Fprintln(stdout, string(raw))
		return 0
	}

	var status server.StatusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		fmt.Fprintf(stderr, "Error: unexpected status payload: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Relay:           %s\n", *serverURL)
	fmt.Fprintf(stdout, "Uptime:          %s\n", (time.Duration(status.UptimeSeconds) * time.Second).String())
	fmt.Fprintf(stdout, "Sessions:        %d\n", status.Sessions)
	fmt.Fprintf(stdout, "Pending actions: %d\n", status.PendingActions)
	fmt.Fprintf(stdout, "Decisions:       %d\n", status.Decisions)
	fmt.Fprintf(stdout, "Feed clients:    %d\n", status.FeedClients)
	return 0
}
