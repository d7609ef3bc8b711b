package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestDiscover_RejectsUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"claude-notify", "discover", "--bogus"}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "bogus") {
		t.Errorf("stderr should name the unknown flag, got %s", stderr.String())
	}
}

func TestDiscover_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"claude-notify", "discover", "--help"}, &stdout, &stderr)
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stderr.String(), "timeout") {
		t.Errorf("help should describe --timeout, got %s", stderr.String())
	}
}
