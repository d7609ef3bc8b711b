package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dbbuilder-org/claude-notify/internal/mdns"
)

// runDiscover implements "claude-notify discover": browse the local
// network for relays advertised via mDNS. A debugging aid for checking
// that "serve --mdns" is visible from another machine.
func runDiscover(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)

	timeout := fs.Duration("timeout", 3*time.Second, "How long to browse for relays")
	jsonOutput := fs.Bool("json", false, "Output in JSON format")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	relays, err := mdns.Discover(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOutput {
		type entry struct {
			Name    string `json:"name"`
			Host    string `json:"host"`
			Port    int    `json:"port"`
			Version string `json:"version"`
		}
		entries := make([]entry, 0, len(relays))
		for _, r := range relays {
			entries = append(entries, entry{Name: r.Name, Host: r.Host, Port: r.Port, Version: r.Version})
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(entries)
		return 0
	}

	if len(relays) == 0 {
		fmt.Fprintln(stdout, "No relays found. Is one running with --mdns on this network?")
		return 0
	}

	for _, relay := range relays {
		fmt.Fprintf(stdout, "%s\thttp://%s:%d\t(protocol v%s)\n", relay.Name, relay.Host, relay.Port, relay.Version)
	}
	return 0
}
