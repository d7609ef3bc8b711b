package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/dbbuilder-org/claude-notify/internal/gateclient"
)

// newActionToken generates an unguessable one-time token: 16 random bytes,
// hex encoded. Falls back to a UUID if the system randomness source fails.
var newActionToken = func() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// runNotify implements "claude-notify notify", invoked from agent hooks
// when a prompt needs the operator's attention. It registers an action and
// prints the token so the calling hook can hand it to "gate".
func runNotify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("notify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	server := fs.String("server", defaultServerURL(), "Relay base URL")
	sessionID := fs.String("session-id", "", "Agent session id")
	kind := fs.String("kind", "", "Action kind: permission, idle, elicitation, completion")
	message := fs.String("message", "", "What the agent is asking (required)")
	project := fs.String("project", "", "Project name shown in the notification title")
	tool := fs.String("tool", "", "Tool the agent wants to use")
	token := fs.String("token", "", "Action token (generated when empty)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: claude-notify notify [options]

Register a pending action with the relay and push it to the phone.
Prints the action token on stdout; pass it to 'claude-notify gate' to
block on the verdict.

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
	if *message == "" {
		fmt.Fprintln(stderr, "Error: --message is required")
		return 1
	}

	actionToken := *token
	if actionToken == "" {
		actionToken = newActionToken()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pageURL, err := gateclient.New(*server).RegisterAction(ctx, gateclient.ActionRequest{
		Token:     actionToken,
		SessionID: *sessionID,
		Kind:      *kind,
		Message:   *message,
		Project:   *project,
		Tool:      *tool,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	// Token first: hook scripts capture the first line.
	fmt.Fprintln(stdout, actionToken)
	fmt.Fprintln(stdout, pageURL)
	return 0
}
