package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dbbuilder-org/claude-notify/internal/audit"
	"github.com/dbbuilder-org/claude-notify/internal/config"
)

// runAudit implements "claude-notify audit": print recent resolutions from
// the audit database. Reads the database directly rather than going through
// the relay, so it works when the relay is down.
func runAudit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to config file (default: ~/.claude-notify/config.toml)")
	db := fs.String("db", "", "Audit database path (overrides config)")
	limit := fs.Int("limit", 20, "Number of entries to show (0 = all)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	dbPath := *db
	if dbPath == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if !cfg.AuditEnabled() {
			fmt.Fprintln(stderr, "Error: audit log is disabled (audit_db = \"off\")")
			return 1
		}
		dbPath = cfg.AuditDB
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintln(stdout, "No resolutions recorded yet.")
		return 0
	}

	log, err := audit.Open(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer log.Close()

	entries, err := log.Recent(*limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No resolutions recorded yet.")
		return 0
	}

	for _, e := range entries {
		outcome := e.Outcome
		if e.Outcome == "text" {
			outcome = fmt.Sprintf("text %q", e.Text)
		}
		fmt.Fprintf(stdout, "%s  %-12s %-8s %s (session=%s source=%s dispatch=%s)\n",
			e.DecidedAt.Format("2006-01-02 15:04:05"),
			e.Kind,
			outcome,
			e.Token,
			e.SessionID,
			e.Source,
			e.Dispatch,
		)
	}
	return 0
}
