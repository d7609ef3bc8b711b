package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values applied by Load when the file and environment leave a
// field unset.
const (
	DefaultAddr                   = "127.0.0.1:9876"
	DefaultActionTTLMinutes       = 30
	DefaultSessionRetentionHours  = 24
	DefaultSweepIntervalSeconds   = 60
	DefaultApproveKeys            = "1"
	DefaultDenyKeys               = "3"
	DefaultDispatchTimeoutSeconds = 10
	DefaultNtfyServer             = "https://ntfy.sh"
	DefaultNtfyPriority           = "high"
	DefaultPollTimeoutSeconds     = 60
	DefaultPollIntervalSeconds    = 2
)

// applyDefaults fills zero-valued fields.
func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://" + c.Addr
	}
	if c.ActionTTLMinutes <= 0 {
		c.ActionTTLMinutes = DefaultActionTTLMinutes
	}
	if c.SessionRetentionHours <= 0 {
		c.SessionRetentionHours = DefaultSessionRetentionHours
	}
	if c.SweepIntervalSeconds <= 0 {
		c.SweepIntervalSeconds = DefaultSweepIntervalSeconds
	}
	if c.ApproveKeys == "" {
		c.ApproveKeys = DefaultApproveKeys
	}
	if c.DenyKeys == "" {
		c.DenyKeys = DefaultDenyKeys
	}
	if c.DispatchTimeoutSeconds <= 0 {
		c.DispatchTimeoutSeconds = DefaultDispatchTimeoutSeconds
	}
	if c.NtfyServer == "" {
		c.NtfyServer = DefaultNtfyServer
	}
	if c.NtfyPriority == "" {
		c.NtfyPriority = DefaultNtfyPriority
	}
	if c.AuditDB == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.AuditDB = filepath.Join(home, ".claude-notify", "audit.db")
		} else {
			c.AuditDB = "off"
		}
	}
	if c.PollTimeoutSeconds <= 0 {
		c.PollTimeoutSeconds = DefaultPollTimeoutSeconds
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
}

// ActionTTL returns the action time-to-live as a duration.
func (c *Config) ActionTTL() time.Duration {
	return time.Duration(c.ActionTTLMinutes) * time.Minute
}

// SessionRetention returns the session retention window as a duration.
func (c *Config) SessionRetention() time.Duration {
	return time.Duration(c.SessionRetentionHours) * time.Hour
}

// SweepInterval returns the sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// DispatchTimeout returns the per-dispatch timeout as a duration.
func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutSeconds) * time.Second
}

// PollTimeout returns the gate's maximum wait as a duration.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}

// PollInterval returns the gate's query interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// AuditEnabled reports whether the audit log should be opened.
func (c *Config) AuditEnabled() bool {
	return c.AuditDB != "" && c.AuditDB != "off"
}
