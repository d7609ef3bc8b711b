package mdns

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNewAdvertiser(t *testing.T) {
	cfg := Config{
		Port: 9876,
		Name: "dev-box",
	}

	advertiser := NewAdvertiser(cfg)
	if advertiser == nil {
		t.Fatal("NewAdvertiser returned nil")
	}
	if advertiser.config.Port != 9876 {
		t.Errorf("Port = %d, want 9876", advertiser.config.Port)
	}
	if advertiser.config.Name != "dev-box" {
		t.Errorf("Name = %q, want %q", advertiser.config.Name, "dev-box")
	}
}

func TestAdvertiserIsRunning(t *testing.T) {
	advertiser := NewAdvertiser(Config{Port: 9876})
	if advertiser.IsRunning() {
		t.Error("advertiser should not be running before Start")
	}
}

func TestAdvertiserStopBeforeStart(t *testing.T) {
	advertiser := NewAdvertiser(Config{Port: 9876})
	// Must not panic on a never-started advertiser.
	advertiser.Stop()
	if advertiser.IsRunning() {
		t.Error("advertiser should not be running after Stop")
	}
}

func TestAdvertiserMultipleStops(t *testing.T) {
	advertiser := NewAdvertiser(Config{Port: 9876})
	advertiser.Stop()
	advertiser.Stop()
	advertiser.Stop()
	if advertiser.IsRunning() {
		t.Error("advertiser should not be running")
	}
}

func TestInstanceName(t *testing.T) {
	if got := (Config{Name: "dev-box"}).instanceName(); got != "dev-box" {
		t.Errorf("instanceName() = %q, want %q", got, "dev-box")
	}

	hostname, err := os.Hostname()
	if err != nil {
		t.Skipf("hostname unavailable: %v", err)
	}
	if got := (Config{}).instanceName(); got != hostname {
		t.Errorf("empty Name should default to hostname %q, got %q", hostname, got)
	}
}

func TestTxtRecords(t *testing.T) {
	records := txtRecords("dev-box")
	if len(records) != 2 {
		t.Fatalf("expected 2 TXT records, got %d: %v", len(records), records)
	}
	if records[0] != "version="+ProtocolVersion {
		t.Errorf("records[0] = %q", records[0])
	}
	if records[1] != "name=dev-box" {
		t.Errorf("records[1] = %q", records[1])
	}
}

func TestAdvertiserStartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mDNS registration test in short mode")
	}

	advertiser := NewAdvertiser(Config{
		Port: 19876,
		Name: "claude-notify-test",
	})

	if err := advertiser.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !advertiser.IsRunning() {
		t.Error("advertiser should be running after Start")
	}

	// Second Start while running is a no-op.
	if err := advertiser.Start(); err != nil {
		t.Errorf("second Start: %v", err)
	}

	advertiser.Stop()
	if advertiser.IsRunning() {
		t.Error("advertiser should not be running after Stop")
	}
}

func TestDiscoverIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mDNS discovery test in short mode")
	}

	advertiser := NewAdvertiser(Config{
		Port: 19877,
		Name: "claude-notify-discover-test",
	})
	if err := advertiser.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer advertiser.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	relays, err := Discover(ctx)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	for _, relay := range relays {
		if relay.Name != "claude-notify-discover-test" {
			continue
		}
		if relay.Port != 19877 {
			t.Errorf("Port = %d, want 19877", relay.Port)
		}
		if relay.Version != ProtocolVersion {
			t.Errorf("Version = %q, want %q", relay.Version, ProtocolVersion)
		}
		return
	}
	t.Errorf("advertised relay not found among %d discovered", len(relays))
}

func TestServiceType(t *testing.T) {
	if ServiceType != "_claude-notify._tcp" {
		t.Errorf("ServiceType = %q", ServiceType)
	}
}

func TestProtocolVersion(t *testing.T) {
	if ProtocolVersion != "1" {
		t.Errorf("ProtocolVersion = %q", ProtocolVersion)
	}
}
