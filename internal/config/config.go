// Package config provides TOML configuration loading for the relay.
// The configuration file lives at ~/.claude-notify/config.toml by default,
// but can be overridden with the --config flag. CLI flags take precedence
// over environment variables, which take precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config represents the relay configuration file structure.
// Field names map to snake_case TOML keys via struct tags.
type Config struct {
	// Addr is the host:port the control-plane listens on.
	// Default: 127.0.0.1:9876 (loopback only; remote reachability is
	// expected to come from a tunnel or VPN).
	Addr string `toml:"addr"`

	// PublicURL is the externally reachable base URL used in notification
	// links (e.g., a tailscale or ngrok URL). Defaults to http://<addr>.
	PublicURL string `toml:"public_url"`

	// ActionTTLMinutes is how long an action token stays resolvable.
	// Default: 30
	ActionTTLMinutes int `toml:"action_ttl_minutes"`

	// SessionRetentionHours is how long a session registration is kept
	// without an explicit end notice. Default: 24
	SessionRetentionHours int `toml:"session_retention_hours"`

	// SweepIntervalSeconds is how often the background sweep runs.
	// Default: 60
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`

	// ApproveKeys is what the dispatcher types into the pane on approve.
	// Default: "1" (Claude Code's numbered permission menu).
	ApproveKeys string `toml:"approve_keys"`

	// DenyKeys is what the dispatcher types into the pane on deny.
	// Default: "3"
	DenyKeys string `toml:"deny_keys"`

	// DispatchTimeoutSeconds bounds a single tmux send-keys attempt.
	// Default: 10
	DispatchTimeoutSeconds int `toml:"dispatch_timeout_seconds"`

	// NtfyServer is the push sink base URL. Default: https://ntfy.sh
	NtfyServer string `toml:"ntfy_server"`

	// NtfyTopic is the push topic. Empty disables push publishing.
	NtfyTopic string `toml:"ntfy_topic"`

	// NtfyPriority is the priority header value for permission prompts.
	// Default: high
	NtfyPriority string `toml:"ntfy_priority"`

	// AuditDB is the path to the SQLite resolution audit log.
	// Default: ~/.claude-notify/audit.db. Set to "off" to disable.
	AuditDB string `toml:"audit_db"`

	// MdnsEnabled advertises the control-plane on the local network via
	// DNS-SD so phone apps can discover it without typing an address.
	// Default: false (opt-in; discovery reveals presence).
	MdnsEnabled bool `toml:"mdns_enabled"`

	// PollTimeoutSeconds is the gate command's maximum wait for a verdict.
	// Default: 60
	PollTimeoutSeconds int `toml:"poll_timeout_seconds"`

	// PollIntervalSeconds is the gate command's query interval.
	// Default: 2
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// EnvPort is the environment variable that overrides the listening port.
// Kept for parity with the shell hooks, which only know the port.
const EnvPort = "CLAUDE_NOTIFY_PORT"

// EnvAddr overrides the full listen address.
const EnvAddr = "CLAUDE_NOTIFY_ADDR"

// EnvNtfyTopic overrides the push topic.
const EnvNtfyTopic = "CLAUDE_NOTIFY_NTFY_TOPIC"

// DefaultConfigPath returns the default config file location:
// ~/.claude-notify/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".claude-notify", "config.toml"), nil
}

// Load reads a TOML config file from the given path, applies environment
// overrides, and fills defaults.
//
// Behavior:
//   - If path is empty, attempts the default location and returns defaults
//     without error if no file exists there.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				path = defaultPath
			}
		}
	} else {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	if addr := os.Getenv(EnvAddr); addr != "" {
		c.Addr = addr
	}
	if port := os.Getenv(EnvPort); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 && n < 65536 {
			c.Addr = fmt.Sprintf("127.0.0.1:%d", n)
		}
	}
	if topic := os.Getenv(EnvNtfyTopic); topic != "" {
		c.NtfyTopic = topic
	}
}

// WriteDefault creates a commented config file at the given path.
//
// Behavior:
//   - If the file already exists, returns without error (does not overwrite).
//   - Creates the parent directory if it doesn't exist.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := `# claude-notify configuration

# Listen address (loopback; use a tunnel or VPN for remote reachability)
addr = "127.0.0.1:9876"

# Externally reachable base URL used in notification links
#public_url = "https://my-host.tailnet.example"

# Push notifications via ntfy (empty topic disables)
#ntfy_server = "https://ntfy.sh"
#ntfy_topic = ""

# Keystrokes typed into the pane when resolving via link
#approve_keys = "1"
#deny_keys = "3"
`

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
