// Package mdns provides optional mDNS/Bonjour advertisement for the relay.
//
// When enabled, the control-plane advertises itself on the local network
// using DNS-SD so companion apps can discover it without manual address
// entry. Opt-in: discovery reveals presence, so the default is off.
//
// Discovery only reveals that a relay exists; action tokens are still
// required to resolve anything.
package mdns

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type for relay instances.
const ServiceType = "_claude-notify._tcp"

// ProtocolVersion identifies the advertisement format for compatibility.
const ProtocolVersion = "1"

// Config holds advertisement parameters.
type Config struct {
	// Port is the control-plane port to advertise.
	Port int

	// Name is a human-readable instance name. Defaults to the system
	// hostname if empty.
	Name string
}

// Advertiser manages the DNS-SD registration lifecycle.
type Advertiser struct {
	config Config
	server *zeroconf.Server
	mu     sync.Mutex
}

// NewAdvertiser creates an advertiser with the given configuration.
func NewAdvertiser(cfg Config) *Advertiser {
	return &Advertiser{config: cfg}
}

// instanceName resolves the advertised name, falling back to the system
// hostname when the config leaves it empty.
func (c Config) instanceName() string {
	if c.Name != "" {
		return c.Name
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "claude-notify"
	}
	return hostname
}

// txtRecords builds the DNS-SD TXT records for an instance name.
func txtRecords(name string) []string {
	return []string{
		"version=" + ProtocolVersion,
		"name=" + name,
	}
}

// Start registers the service. Safe to call multiple times; subsequent
// calls are no-ops while running.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	name := a.config.instanceName()

	server, err := zeroconf.Register(
		name,
		ServiceType,
		"local.",
		a.config.Port,
		txtRecords(name),
		nil, // all interfaces
	)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	a.server = server
	return nil
}

// Stop unregisters the service. Safe to call multiple times or on an
// advertiser that was never started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// IsRunning reports whether the advertisement is active.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// DiscoveredRelay is a relay instance found on the local network.
type DiscoveredRelay struct {
	// Name is the advertised instance name.
	Name string

	// Host is the IP address, IPv4 preferred.
	Host string

	// Port is the control-plane port.
	Port int

	// Version is the advertisement protocol version.
	Version string
}

// Discover browses the local network for relay instances until the context
// expires. Primarily a debugging aid; companion apps use their platform's
// native service discovery.
func Discover(ctx context.Context) ([]DiscoveredRelay, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	var (
		relays []DiscoveredRelay
		mu     sync.Mutex
		wg     sync.WaitGroup
	)

	entries := make(chan *zeroconf.ServiceEntry)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			relay := DiscoveredRelay{
				Name: entry.Instance,
				Port: entry.Port,
			}
			if len(entry.AddrIPv4) > 0 {
				relay.Host = entry.AddrIPv4[0].String()
			} else if len(entry.AddrIPv6) > 0 {
				relay.Host = entry.AddrIPv6[0].String()
			}
			for _, txt := range entry.Text {
				switch {
				case strings.HasPrefix(txt, "version="):
					relay.Version = strings.TrimPrefix(txt, "version=")
				case strings.HasPrefix(txt, "name="):
					relay.Name = strings.TrimPrefix(txt, "name=")
				}
			}
			mu.Lock()
			relays = append(relays, relay)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	// zeroconf closes the entries channel once the context is done.
	<-ctx.Done()
	wg.Wait()

	return relays, nil
}
