package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ljay-net/NetworkMonitor/internal/arp"
	"github.com/ljay-net/NetworkMonitor/internal/config"
	"github.com/ljay-net/NetworkMonitor/internal/discover"
	"github.com/ljay-net/NetworkMonitor/internal/export"
	"github.com/ljay-net/NetworkMonitor/internal/gui"
	"github.com/ljay-net/NetworkMonitor/internal/logging"
	"github.com/ljay-net/NetworkMonitor/internal/netinfo"
	"github.com/ljay-net/NetworkMonitor/internal/probe"
	"github.com/ljay-net/NetworkMonitor/internal/registry"
	"github.com/ljay-net/NetworkMonitor/internal/store"
	"github.com/ljay-net/NetworkMonitor/internal/vendor"
)

const usage = `NetworkMonitor - local network device monitor

Usage:
  netmonitor scan           Run one scan cycle and print the device list.
  netmonitor watch          Scan periodically and serve the web dashboard.
  netmonitor export <fmt>   Print saved devices as csv or json.
  netmonitor help           Show this message.
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	switch args[0] {
	case "scan":
		return runScan()
	case "watch":
		return runWatch()
	case "export":
		if len(args) < 2 {
			return fmt.Errorf("export requires a format: csv or json")
		}
		return runExport(args[1])
	case "help", "--help", "-h":
		fmt.Print(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// monitor bundles the wired-up scanning core for the CLI commands.
type monitor struct {
	cfg      config.Config
	log      zerolog.Logger
	registry *registry.Registry
	resolver *vendor.Resolver
	prober   probe.Prober
	browser  *discover.Browser
}

func newMonitor(events registry.Events) (*monitor, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	m := &monitor{
		cfg:    cfg,
		log:    logging.New(cfg.LogLevel),
		prober: probe.New(cfg.ProbePort, cfg.ProbeTimeout()),
	}
	if cfg.MDNSEnabled {
		m.browser = discover.NewBrowser(cfg.ServiceTypes, m.log)
	}

	m.resolver = vendor.NewResolver(vendor.Options{
		CachePath:   cfg.VendorCacheFile(),
		CounterPath: cfg.CallCounterFile(),
		APIBase:     cfg.VendorAPIBase,
		DailyBudget: cfg.DailyCallBudget,
		LookupDelay: cfg.LookupDelay(),
		Logger:      m.log,
		OnResolved: func(oui, name string) {
			m.registry.UpdateVendor(oui, name)
		},
	})

	persister := store.New(cfg.DevicesFile(), m.log)
	m.registry = registry.New(persister, m.resolver, events, m.log)
	return m, nil
}

func (m *monitor) scanConfig() registry.ScanConfig {
	sources := registry.ScanSources{
		ARPEntries: func(ctx context.Context) []arp.Entry {
			return arp.Table(ctx, m.log)
		},
		Gateway: func(ctx context.Context, localIP string) string {
			return netinfo.DefaultGateway(ctx, localIP, m.log)
		},
		LocalIP:  m.localIP,
		Hostname: netinfo.Hostname,
	}
	if m.browser != nil {
		sources.Services = m.browser.Browse
	}

	return registry.ScanConfig{
		Sources:    sources,
		Prober:     m.prober,
		Deadline:   m.cfg.ScanDeadline(),
		SweepHosts: m.cfg.PingSweepHosts,
	}
}

func (m *monitor) localIP() string {
	if m.cfg.Subnet != "" {
		return m.cfg.Subnet + ".0"
	}
	return netinfo.LocalIP()
}

func runScan() error {
	m, err := newMonitor(registry.Events{})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	m.resolver.Start(ctx)
	m.registry.Scan(ctx, m.scanConfig())

	fmt.Print(export.ToCSV(m.registry.Devices()))
	return nil
}

func runWatch() error {
	var dashboard *gui.App
	m, err := newMonitor(registry.Events{
		DeviceListChanged: func(devices []registry.Device) {
			if dashboard != nil {
				dashboard.NotifyDevices(devices)
			}
		},
		ScanStatus: func(scanning bool) {
			if dashboard != nil {
				dashboard.NotifyStatus(scanning)
			}
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m.resolver.Start(ctx)

	scan := func() {
		m.registry.Scan(ctx, m.scanConfig())
	}
	dashboard = gui.New(m.registry.Devices, scan)

	go func() {
		scan()
		ticker := time.NewTicker(m.cfg.ScanInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				scan()
			}
		}
	}()

	return dashboard.Run()
}

func runExport(format string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}

	st := store.New(cfg.DevicesFile(), logging.New("warn"))
	devices, err := st.Load()
	if err != nil {
		return err
	}

	switch format {
	case "csv":
		fmt.Print(export.ToCSV(devices))
	case "json":
		data, err := export.ToJSON(devices)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	return nil
}

func configPath() string {
	if path := os.Getenv("NETWORKMONITOR_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".networkmonitor", "config.yaml")
	}
	return filepath.Join(home, ".networkmonitor", "config.yaml")
}
