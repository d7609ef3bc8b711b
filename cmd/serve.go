package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/dbbuilder-org/claude-notify/internal/audit"
	"github.com/dbbuilder-org/claude-notify/internal/config"
	"github.com/dbbuilder-org/claude-notify/internal/dispatch"
	"github.com/dbbuilder-org/claude-notify/internal/mdns"
	"github.com/dbbuilder-org/claude-notify/internal/notify"
	"github.com/dbbuilder-org/claude-notify/internal/server"
	"github.com/dbbuilder-org/claude-notify/internal/store"
)

// runServe implements the "claude-notify serve" command: the long-running
// relay that hooks register sessions and actions against and that the
// operator's phone resolves them through.
func runServe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to config file (default: ~/.claude-notify/config.toml)")
	addr := fs.String("addr", "", "Listen address (overrides config)")
	publicURL := fs.String("public-url", "", "Externally reachable base URL for notification links (overrides config)")
	enableMdns := fs.Bool("mdns", false, "Advertise the relay on the local network via DNS-SD")
	showQR := fs.Bool("qr", false, "Print the public URL as a QR code on startup")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: claude-notify serve [options]

Run the relay control-plane. Creates ~/.claude-notify/config.toml with
commented defaults on first run.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	// Seed a commented config on first run so the operator has something to
	// edit, but only when relying on the default location.
	if *configPath == "" {
		if defaultPath, err := config.DefaultConfigPath(); err == nil {
			if writeErr := config.WriteDefault(defaultPath); writeErr != nil {
				fmt.Fprintf(stderr, "Warning: could not write default config: %v\n", writeErr)
			}
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *publicURL != "" {
		cfg.PublicURL = *publicURL
	}
	if *enableMdns {
		cfg.MdnsEnabled = true
	}

	st := store.New(store.Options{
		ActionTTL:        cfg.ActionTTL(),
		SessionRetention: cfg.SessionRetention(),
	})
	st.StartSweeper(cfg.SweepInterval())
	defer st.Close()

	var auditLog *audit.Log
	if cfg.AuditEnabled() {
		auditLog, err = audit.Open(cfg.AuditDB)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: audit log disabled: %v\n", err)
		} else {
			defer auditLog.Close()
		}
	}

	publisher := notify.New(cfg.NtfyServer, cfg.NtfyTopic, cfg.NtfyPriority, cfg.PublicURL)
	srv := server.New(cfg, st, dispatch.NewTmuxDispatcher(), publisher, auditLog)

	if cfg.MdnsEnabled {
		if port, portErr := listenPort(cfg.Addr); portErr != nil {
			fmt.Fprintf(stderr, "Warning: mDNS disabled: %v\n", portErr)
		} else {
			advertiser := mdns.NewAdvertiser(mdns.Config{Port: port})
			if startErr := advertiser.Start(); startErr != nil {
				fmt.Fprintf(stderr, "Warning: mDNS disabled: %v\n", startErr)
			} else {
				defer advertiser.Stop()
			}
		}
	}

	printServeBanner(stdout, cfg)
	if *showQR {
		printQR(stdout, cfg.PublicURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "Error: shutdown: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "Relay stopped.")
		return 0
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
}

func printServeBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "  claude-notify relay")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintf(w, "  Address:    %s\n", cfg.Addr)
	fmt.Fprintf(w, "  Public URL: %s\n", cfg.PublicURL)
	if cfg.NtfyTopic != "" {
		fmt.Fprintf(w, "  Push:       %s/%s\n", cfg.NtfyServer, cfg.NtfyTopic)
	} else {
		fmt.Fprintln(w, "  Push:       disabled (no ntfy_topic)")
	}
	if cfg.AuditEnabled() {
		fmt.Fprintf(w, "  Audit:      %s\n", cfg.AuditDB)
	} else {
		fmt.Fprintln(w, "  Audit:      off")
	}
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "")
}

// printQR renders the public URL as a terminal QR code so the operator can
// open the relay on a phone without typing the tunnel hostname.
func printQR(w io.Writer, url string) {
	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(w, "Error generating QR code: %v\n", err)
		return
	}
	fmt.Fprint(w, qr.ToSmallString(false))
	fmt.Fprintf(w, "  %s\n\n", url)
}

// listenPort extracts the numeric port from a host:port listen address.
func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("parse listen port %q: %w", portStr, err)
	}
	return port, nil
}
