package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ljay-net/NetworkMonitor/internal/arp"
	"github.com/ljay-net/NetworkMonitor/internal/netinfo"
)

// ServiceHit is one mDNS/Bonjour discovery result fed into the merge
// pipeline.
type ServiceHit struct {
	Name        string
	IP          string
	ServiceType string
}

// Prober checks whether a host answers a lightweight reachability probe.
type Prober interface {
	Check(ctx context.Context, ip string) bool
}

// ScanSources are the external collaborators a scan cycle gathers from.
// Each is optional; a nil source contributes nothing.
type ScanSources struct {
	ARPEntries func(ctx context.Context) []arp.Entry
	Gateway    func(ctx context.Context, localIP string) string
	LocalIP    func() string
	Hostname   func(ctx context.Context, ip string) string
	Services   func(ctx context.Context) []ServiceHit
}

// ScanConfig bundles the collaborators and bounds of one scan cycle.
type ScanConfig struct {
	Sources ScanSources
	Prober  Prober
	// Deadline is the soft limit on the probe phase; the scanning flag
	// clears once it elapses even if stragglers are still in flight.
	Deadline time.Duration
	// SweepHosts probes the first N host addresses of the subnet even if
	// they never appeared in the ARP table.
	SweepHosts int
}

// Scan runs one reconciliation cycle: reset online flags, gather ARP and
// gateway state, de-duplicate routers, merge sightings, probe, persist and
// check for missing important devices.
func (r *Registry) Scan(ctx context.Context, cfg ScanConfig) {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 3 * time.Second
	}

	r.log.Info().Msg("starting network scan")

	// Reset: every device goes offline before any probe result can land.
	r.mu.Lock()
	r.scanning = true
	for _, dev := range r.devices {
		dev.IsOnline = false
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.emitStatus(true)
	r.emitChanged(snapshot)

	// Gather.
	var localIP string
	if cfg.Sources.LocalIP != nil {
		localIP = cfg.Sources.LocalIP()
	}
	var gatewayIP string
	if cfg.Sources.Gateway != nil {
		gatewayIP = cfg.Sources.Gateway(ctx, localIP)
	}
	var entries []arp.Entry
	if cfg.Sources.ARPEntries != nil {
		entries = cfg.Sources.ARPEntries(ctx)
	}

	r.log.Debug().
		Str("local_ip", localIP).
		Str("gateway", gatewayIP).
		Int("arp_entries", len(entries)).
		Msg("gathered scan inputs")

	// Routers that no longer sit at the gateway address are stale and
	// would otherwise duplicate; multicast addresses are never devices.
	// This must finish before new router records merge in this cycle.
	r.dropStaleRouters(gatewayIP)

	newDevices := r.mergeEntries(ctx, entries, gatewayIP, localIP, cfg.Sources.Hostname)

	if cfg.Sources.Services != nil {
		r.mergeServices(cfg.Sources.Services(ctx))
	}

	r.probePhase(ctx, cfg, localIP)

	// Persist.
	r.mu.Lock()
	r.scanning = false
	snapshot = r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snapshot)
	r.emitStatus(false)
	r.emitChanged(snapshot)

	for _, dev := range newDevices {
		r.log.Info().Str("ip", dev.IPAddress).Str("mac", dev.MACAddress).Msg("new device detected")
		if r.events.NewDevice != nil {
			r.events.NewDevice(dev)
		}
	}

	r.checkMissingImportant()

	r.log.Info().Int("devices", len(snapshot)).Msg("network scan completed")
}

func (r *Registry) dropStaleRouters(gatewayIP string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.devices[:0]
	for _, dev := range r.devices {
		if dev.Type == TypeRouter && dev.IPAddress != gatewayIP {
			r.log.Debug().Str("ip", dev.IPAddress).Msg("dropping stale router record")
			continue
		}
		if netinfo.IsMulticast(dev.IPAddress) {
			r.log.Debug().Str("ip", dev.IPAddress).Msg("dropping multicast record")
			continue
		}
		kept = append(kept, dev)
	}
	r.devices = kept
}

// mergeEntries reconciles ARP sightings into the registry, returning the
// devices created this cycle.
func (r *Registry) mergeEntries(ctx context.Context, entries []arp.Entry, gatewayIP, localIP string, hostname func(context.Context, string) string) []Device {
	var created []Device

	for _, entry := range entries {
		if netinfo.IsMulticast(entry.IP) {
			continue
		}

		// Resolve outside the lock; both are bounded, non-fatal lookups.
		var resolvedName string
		if hostname != nil {
			resolvedName = hostname(ctx, entry.IP)
		}
		vendorName, _ := r.resolver.Resolve(entry.MAC, true)

		now := r.now()

		r.mu.Lock()
		if dev := r.findByMACLocked(entry.MAC); dev != nil {
			dev.IsOnline = true
			dev.LastSeen = now
			dev.IPAddress = entry.IP
			if resolvedName != "" && resolvedName != dev.Name {
				dev.Name = resolvedName
			}
			if dev.Vendor == "" && vendorName != "" {
				dev.Vendor = vendorName
			}
			if dev.Type == TypeUnknown {
				if entry.IP == gatewayIP {
					dev.Type = TypeRouter
				} else {
					dev.Type = InferTypeFromVendor(dev.Vendor)
				}
			}
			r.mu.Unlock()
			continue
		}

		name := resolvedName
		if name == "" {
			name = fmt.Sprintf("Device at %s", entry.IP)
		}
		deviceType := TypeUnknown
		switch entry.IP {
		case gatewayIP:
			deviceType = TypeRouter
			if resolvedName == "" {
				name = "Router"
			}
		case localIP:
			deviceType = TypeComputer
		default:
			deviceType = InferTypeFromVendor(vendorName)
		}

		dev := newDevice(name, entry.IP, entry.MAC, deviceType, vendorName, now)
		r.devices = append(r.devices, dev)
		created = append(created, cloneDevice(dev))
		r.mu.Unlock()
	}

	return created
}

// mergeServices enriches already-known devices with mDNS names and types.
// Bonjour carries no MAC address, so hits only update records matched by
// IP and never create devices.
func (r *Registry) mergeServices(hits []ServiceHit) {
	if len(hits) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, hit := range hits {
		for _, dev := range r.devices {
			if dev.IPAddress != hit.IP {
				continue
			}
			if hit.Name != "" && strings.HasPrefix(dev.Name, "Device at ") {
				dev.Name = hit.Name
			}
			if dev.Type == TypeUnknown {
				dev.Type = InferTypeFromService(hit.ServiceType, hit.Name)
			}
		}
	}
}

// probePhase issues reachability probes for devices inside the active
// subnet plus a short sweep of low host addresses. A successful probe
// upgrades a device back to online; failures change nothing.
func (r *Registry) probePhase(ctx context.Context, cfg ScanConfig, localIP string) {
	if cfg.Prober == nil {
		return
	}

	prefix := netinfo.SubnetPrefix(localIP)

	targets := make(map[string]struct{})
	r.mu.Lock()
	for _, dev := range r.devices {
		if prefix == "" || strings.HasPrefix(dev.IPAddress, prefix+".") {
			targets[dev.IPAddress] = struct{}{}
		}
	}
	r.mu.Unlock()

	if prefix != "" {
		for i := 1; i <= cfg.SweepHosts; i++ {
			targets[fmt.Sprintf("%s.%d", prefix, i)] = struct{}{}
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Deadline)
	defer cancel()

	var wg sync.WaitGroup
	for ip := range targets {
		wg.Add(1)
		go func(ip string) {
			defer wg.Done()
			if cfg.Prober.Check(probeCtx, ip) {
				r.markOnline(ip)
			}
		}(ip)
	}
	wg.Wait()
}

// markOnline is the thread-safe update path probe goroutines report
// through.
func (r *Registry) markOnline(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dev := range r.devices {
		if dev.IPAddress == ip {
			dev.IsOnline = true
			dev.LastSeen = r.now()
			return
		}
	}
}

func (r *Registry) checkMissingImportant() {
	r.mu.Lock()
	var missing *Device
	for _, dev := range r.devices {
		if dev.IsImportant && !dev.IsOnline {
			missing = dev
			break
		}
	}
	var alert Device
	if missing != nil {
		alert = cloneDevice(missing)
	}
	r.mu.Unlock()

	if missing != nil {
		r.log.Warn().Str("name", alert.Name).Str("ip", alert.IPAddress).Msg("important device missing")
		if r.events.MissingImportantDevice != nil {
			r.events.MissingImportantDevice(alert)
		}
	}
}
