package dispatch

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// mockExecCommand returns an execCommand double that re-runs the test binary
// as a helper process emitting the given output and exit code. The invoked
// argv is appended to a shared log for later assertions.
func mockExecCommand(t *testing.T, output string, exitCode int, calls *[][]string) func(context.Context, string, ...string) *exec.Cmd {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		*calls = append(*calls, append([]string{name}, args...))
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		code := "0"
		if exitCode != 0 {
			code = "1"
		}
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			"MOCK_OUTPUT=" + output,
			"MOCK_EXIT_CODE=" + code,
		}
		return cmd
	}
}

// TestHelperProcess is not a real test; it simulates tmux for the mocks.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	os.Stdout.WriteString(os.Getenv("MOCK_OUTPUT"))
	if os.Getenv("MOCK_EXIT_CODE") == "1" {
		os.Exit(1)
	}
	os.Exit(0)
}

func TestSend_Success(t *testing.T) {
	var calls [][]string
	d := &TmuxDispatcher{execCommand: mockExecCommand(t, "", 0, &calls)}

	result := d.Send(context.Background(), "main:1.0", "ls -la")
	if result != ResultOK {
		t.Fatalf("expected ok, got %s", result)
	}

	// has-session probe, literal send-keys, then Enter.
	if len(calls) != 3 {
		t.Fatalf("expected 3 tmux invocations, got %d: %v", len(calls), calls)
	}
	if calls[0][1] != "has-session" {
		t.Errorf("first call should probe the session, got %v", calls[0])
	}
	send := strings.Join(calls[1], " ")
	if !strings.Contains(send, "send-keys") || !strings.Contains(send, "-l") || !strings.Contains(send, "ls -la") {
		t.Errorf("unexpected send-keys invocation: %v", calls[1])
	}
	if calls[2][len(calls[2])-1] != "Enter" {
		t.Errorf("final call should press Enter, got %v", calls[2])
	}
}

func TestSend_SessionNotFound(t *testing.T) {
	var calls [][]string
	d := &TmuxDispatcher{execCommand: mockExecCommand(t, "can't find session: main", 1, &calls)}

	if result := d.Send(context.Background(), "main:1.0", "y"); result != ResultSessionNotFound {
		t.Fatalf("expected session_not_found, got %s", result)
	}
	if len(calls) != 1 {
		t.Errorf("must not attempt send-keys when the probe fails, got %d calls", len(calls))
	}
}

func TestSend_NoServerRunning(t *testing.T) {
	var calls [][]string
	d := &TmuxDispatcher{execCommand: mockExecCommand(t, "no server running on /tmp/tmux-501/default", 1, &calls)}

	if result := d.Send(context.Background(), "main:1.0", "y"); result != ResultSessionNotFound {
		t.Fatalf("expected session_not_found, got %s", result)
	}
}

func TestSend_TmuxMissing(t *testing.T) {
	d := &TmuxDispatcher{execCommand: func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "/nonexistent/tmux/binary")
	}}

	if result := d.Send(context.Background(), "main:1.0", "y"); result != ResultFailure {
		t.Fatalf("expected failure when tmux is missing, got %s", result)
	}
}

func TestSend_EmptyHandle(t *testing.T) {
	d := NewTmuxDispatcher()

	// No handle registered for the session: never touch tmux at all.
	if result := d.Send(context.Background(), "", "text"); result != ResultSessionNotFound {
		t.Fatalf("expected session_not_found for empty handle, got %s", result)
	}
}
