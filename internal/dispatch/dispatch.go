// Package dispatch delivers keystrokes into the terminal pane that hosts an
// agent session.
//
// The OS-level capability is tmux: text is injected with `tmux send-keys`
// into an existing pane identified by an opaque handle (e.g., "main:1.0").
// Dispatch is strictly best-effort - a resolution has already succeeded by
// the time the dispatcher runs, so failures here are reported in the
// response payload but never escalate into an API error.
package dispatch

import (
	"context"
	"log"
	"os/exec"
	"strings"
)

// Result describes the outcome of a dispatch attempt.
type Result string

const (
	// ResultOK means the keystrokes were handed to tmux successfully.
	ResultOK Result = "ok"

	// ResultSessionNotFound means the target pane does not exist (or no
	// handle was ever registered for the session).
	ResultSessionNotFound Result = "session_not_found"

	// ResultFailure covers every other delivery failure, including tmux
	// not being installed.
	ResultFailure Result = "failure"
)

// Dispatcher is the capability contract for keystroke injection.
// Implementations must be safe for concurrent use.
type Dispatcher interface {
	// Send types text into the pane identified by handle, followed by
	// Enter. The context bounds the attempt; callers pass a deadline on
	// the order of 10 seconds.
	Send(ctx context.Context, handle, text string) Result
}

// TmuxDispatcher injects keystrokes via the tmux CLI.
type TmuxDispatcher struct {
	// execCommand creates exec.Cmd instances. Tests inject a mock here;
	// production uses exec.CommandContext.
	execCommand func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewTmuxDispatcher creates a dispatcher using the real exec.CommandContext.
func NewTmuxDispatcher() *TmuxDispatcher {
	return &TmuxDispatcher{
		execCommand: exec.CommandContext,
	}
}

// Send verifies the pane exists, then types the text and presses Enter.
//
// The text is sent with -l (literal) so tmux does not interpret it as key
// names; the trailing Enter is sent as a key so the pane's reader sees a
// completed line.
func (d *TmuxDispatcher) Send(ctx context.Context, handle, text string) Result {
	if handle == "" {
		return ResultSessionNotFound
	}

	// Probe first so "pane gone" is distinguishable from "send failed".
	cmd := d.execCommand(ctx, "tmux", "has-session", "-t", handle)
	if output, err := cmd.CombinedOutput(); err != nil {
		if isCommandNotFound(err) {
			log.Printf("dispatch: tmux not installed")
			return ResultFailure
		}
		if isSessionGone(string(output)) {
			log.Printf("dispatch: pane %s not found", handle)
			return ResultSessionNotFound
		}
		// Unknown probe failure - treat the pane as gone rather than
		// blindly typing into whatever tmux resolves the target to.
		log.Printf("dispatch: has-session failed for %s: %v", handle, err)
		return ResultSessionNotFound
	}

	cmd = d.execCommand(ctx, "tmux", "send-keys", "-t", handle, "-l", "--", text)
	if output, err := cmd.CombinedOutput(); err != nil {
		log.Printf("dispatch: send-keys to %s failed: %v (%s)", handle, err, strings.TrimSpace(string(output)))
		return ResultFailure
	}

	cmd = d.execCommand(ctx, "tmux", "send-keys", "-t", handle, "Enter")
	if output, err := cmd.CombinedOutput(); err != nil {
		log.Printf("dispatch: Enter to %s failed: %v (%s)", handle, err, strings.TrimSpace(string(output)))
		return ResultFailure
	}

	log.Printf("dispatch: sent %d bytes to %s", len(text), handle)
	return ResultOK
}

// isSessionGone checks tmux output for the "no such session" family of
// messages. tmux wording varies across versions.
func isSessionGone(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "can't find session") ||
		strings.Contains(lower, "can't find pane") ||
		strings.Contains(lower, "session not found") ||
		strings.Contains(lower, "no server running") ||
		strings.Contains(lower, "error connecting to")
}

// isCommandNotFound checks if the error indicates tmux is not installed.
func isCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	if err == exec.ErrNotFound {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "executable file not found") ||
		strings.Contains(msg, "no such file or directory")
}
