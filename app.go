package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/ljay-net/NetworkMonitor/internal/arp"
	"github.com/ljay-net/NetworkMonitor/internal/config"
	"github.com/ljay-net/NetworkMonitor/internal/discover"
	"github.com/ljay-net/NetworkMonitor/internal/export"
	"github.com/ljay-net/NetworkMonitor/internal/logging"
	"github.com/ljay-net/NetworkMonitor/internal/netinfo"
	"github.com/ljay-net/NetworkMonitor/internal/probe"
	"github.com/ljay-net/NetworkMonitor/internal/registry"
	"github.com/ljay-net/NetworkMonitor/internal/store"
	"github.com/ljay-net/NetworkMonitor/internal/vendor"
)

// App struct
type App struct {
	ctx context.Context

	cfg      config.Config
	log      zerolog.Logger
	registry *registry.Registry
	resolver *vendor.Resolver
	prober   probe.Prober
	browser  *discover.Browser

	cancel context.CancelFunc
}

// NewApp creates a new App application struct and wires the monitoring
// core together.
func NewApp() *App {
	a := &App{}

	cfg, err := config.Load(defaultConfigPath())
	if err != nil {
		cfg = config.Config{MDNSEnabled: true}
		config.ApplyDefaults(&cfg)
	}
	a.cfg = cfg
	a.log = logging.New(cfg.LogLevel)

	if err := config.Validate(cfg); err != nil {
		a.log.Warn().Err(err).Msg("invalid config, continuing with defaults")
		cfg = config.Config{MDNSEnabled: true}
		config.ApplyDefaults(&cfg)
		a.cfg = cfg
	}

	a.resolver = vendor.NewResolver(vendor.Options{
		CachePath:   cfg.VendorCacheFile(),
		CounterPath: cfg.CallCounterFile(),
		APIBase:     cfg.VendorAPIBase,
		DailyBudget: cfg.DailyCallBudget,
		LookupDelay: cfg.LookupDelay(),
		Logger:      a.log,
		OnResolved: func(oui, name string) {
			a.registry.UpdateVendor(oui, name)
		},
	})

	persister := store.New(cfg.DevicesFile(), a.log)
	a.registry = registry.New(persister, a.resolver, registry.Events{
		DeviceListChanged:      a.handleDevicesChanged,
		NewDevice:              a.handleNewDevice,
		MissingImportantDevice: a.handleMissingImportant,
		ScanStatus:             a.handleScanStatus,
	}, a.log)

	a.prober = probe.New(cfg.ProbePort, cfg.ProbeTimeout())
	if cfg.MDNSEnabled {
		a.browser = discover.NewBrowser(cfg.ServiceTypes, a.log)
	}

	return a
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	workerCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.resolver.Start(workerCtx)
	go a.scanLoop(workerCtx)
}

// shutdown stops the scan loop and the vendor lookup worker.
func (a *App) shutdown(_ context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
}

// scanLoop runs one scan immediately and then one per configured
// interval until ctx is cancelled.
func (a *App) scanLoop(ctx context.Context) {
	a.registry.Scan(ctx, a.scanConfig())

	ticker := time.NewTicker(a.cfg.ScanInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.registry.Scan(ctx, a.scanConfig())
		}
	}
}

func (a *App) scanConfig() registry.ScanConfig {
	sources := registry.ScanSources{
		ARPEntries: func(ctx context.Context) []arp.Entry {
			return arp.Table(ctx, a.log)
		},
		Gateway: func(ctx context.Context, localIP string) string {
			return netinfo.DefaultGateway(ctx, localIP, a.log)
		},
		LocalIP:  a.localIP,
		Hostname: netinfo.Hostname,
	}
	if a.browser != nil {
		sources.Services = a.browseServices
	}

	return registry.ScanConfig{
		Sources:    sources,
		Prober:     a.prober,
		Deadline:   a.cfg.ScanDeadline(),
		SweepHosts: a.cfg.PingSweepHosts,
	}
}

// localIP honours a configured subnet override by synthesising an address
// inside it, so probing sweeps the chosen network.
func (a *App) localIP() string {
	if a.cfg.Subnet != "" {
		return a.cfg.Subnet + ".0"
	}
	return netinfo.LocalIP()
}

// browseServices collects mDNS hits and upgrades AirPlay announcements
// with the name the device itself reports.
func (a *App) browseServices(ctx context.Context) []registry.ServiceHit {
	hits := a.browser.Browse(ctx)
	for i, hit := range hits {
		if hit.ServiceType != "_airplay._tcp" {
			continue
		}
		if name := discover.AirPlayName(ctx, hit.IP); name != "" {
			hits[i].Name = name
		}
	}
	return hits
}

func (a *App) handleDevicesChanged(devices []registry.Device) {
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, "devices:changed", devices)
	}
}

func (a *App) handleNewDevice(device registry.Device) {
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, "device:new", device)
	}
}

func (a *App) handleMissingImportant(device registry.Device) {
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, "device:missing", device)
	}
}

func (a *App) handleScanStatus(scanning bool) {
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, "scan:status", scanning)
	}
}

// Scan triggers a scan cycle outside the regular interval.
func (a *App) Scan() {
	go a.registry.Scan(context.Background(), a.scanConfig())
}

// Devices returns the current device list.
func (a *App) Devices() []registry.Device {
	return a.registry.Devices()
}

// Scanning reports whether a scan is in flight.
func (a *App) Scanning() bool {
	return a.registry.Scanning()
}

// RenameDevice sets a device's display name.
func (a *App) RenameDevice(id, name string) error {
	return a.registry.Rename(id, name)
}

// SetDeviceType assigns a user-chosen device type.
func (a *App) SetDeviceType(id, deviceType string) error {
	return a.registry.SetType(id, registry.DeviceType(deviceType))
}

// SetDeviceTags replaces a device's tags.
func (a *App) SetDeviceTags(id string, tags []string) error {
	return a.registry.SetTags(id, tags)
}

// SetDeviceNotes replaces a device's notes.
func (a *App) SetDeviceNotes(id, notes string) error {
	return a.registry.SetNotes(id, notes)
}

// ToggleImportant flips the missing-device alert flag.
func (a *App) ToggleImportant(id string) error {
	return a.registry.ToggleImportant(id)
}

// AllTags returns every tag in use, sorted.
func (a *App) AllTags() []string {
	return a.registry.AllTags()
}

// DevicesWithTag filters the device list by tag.
func (a *App) DevicesWithTag(tag string) []registry.Device {
	return a.registry.DevicesWithTag(tag)
}

// ExportCSV renders the device list as CSV.
func (a *App) ExportCSV() string {
	return export.ToCSV(a.registry.Devices())
}

// ExportJSON renders the device list as a JSON document.
func (a *App) ExportJSON() (string, error) {
	data, err := export.ToJSON(a.registry.Devices())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RefreshVendors clears cached vendor data and re-queues lookups.
func (a *App) RefreshVendors() {
	a.registry.RefreshVendors()
}

// ClearHistory removes every known device.
func (a *App) ClearHistory() {
	a.registry.ClearHistory()
}

// ResetAllData clears devices and vendor caches alike.
func (a *App) ResetAllData() {
	a.registry.ResetAllData()
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".networkmonitor", "config.yaml")
	}
	return filepath.Join(home, ".networkmonitor", "config.yaml")
}
