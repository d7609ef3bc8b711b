package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSessionStartAndEnd(t *testing.T) {
	var paths []string
	var lastBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewDecoder(r.Body).Decode(&lastBody)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := runSessionStart([]string{
		"--server", srv.URL,
		"--session-id", "S1",
		"--pane", "main:1.0",
		"--cwd", "/home/dev/proj",
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("session start exit = %d (stderr: %s)", code, stderr.String())
	}
	if lastBody["terminal_handle"] != "main:1.0" || lastBody["cwd"] != "/home/dev/proj" {
		t.Errorf("register body = %v", lastBody)
	}

	code = runSessionEnd([]string{"--server", srv.URL, "--session-id", "S1"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("session end exit = %d", code)
	}

	want := []string{"/api/session/register", "/api/session/remove"}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("paths = %v", paths)
	}
	if !strings.Contains(stdout.String(), "Session S1 removed") {
		t.Errorf("stdout = %s", stdout.String())
	}
}

func TestSessionEnd_UnreachableRelay(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runSessionEnd([]string{"--server", "http://127.0.0.1:1", "--session-id", "S1"}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code = %d", code)
	}
}
