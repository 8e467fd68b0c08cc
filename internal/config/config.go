package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultScanInterval    = 60 * time.Second
	DefaultScanDeadline    = 3 * time.Second
	DefaultProbePort       = 80
	DefaultProbeTimeout    = 2 * time.Second
	DefaultPingSweepHosts  = 10
	DefaultVendorAPIBase   = "https://api.macvendors.com"
	DefaultDailyCallBudget = 900
	DefaultLookupDelay     = 1500 * time.Millisecond
	DefaultLogLevel        = "info"
)

// DefaultServiceTypes are the mDNS service types browsed during discovery.
var DefaultServiceTypes = []string{
	"_http._tcp",
	"_device-info._tcp",
	"_hap._tcp",
	"_airplay._tcp",
	"_spotify-connect._tcp",
}

// Config holds all settings for the monitoring core.
type Config struct {
	// Subnet overrides the auto-detected /24 prefix, e.g. "192.168.1".
	Subnet string `yaml:"subnet,omitempty"`

	DataDir string `yaml:"data_dir"`

	ScanIntervalSec int `yaml:"scan_interval_sec"`
	ScanDeadlineSec int `yaml:"scan_deadline_sec"`

	ProbePort       int `yaml:"probe_port"`
	ProbeTimeoutMs  int `yaml:"probe_timeout_ms"`
	PingSweepHosts  int `yaml:"ping_sweep_hosts"`

	VendorAPIBase   string `yaml:"vendor_api_base"`
	DailyCallBudget int    `yaml:"daily_call_budget"`
	LookupDelayMs   int    `yaml:"lookup_delay_ms"`

	MDNSEnabled  bool     `yaml:"mdns_enabled"`
	ServiceTypes []string `yaml:"service_types,omitempty"`

	LogLevel string `yaml:"log_level"`
}

// Load reads and parses a YAML config file. A missing file yields the
// defaults rather than an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Config{MDNSEnabled: true}
			ApplyDefaults(&cfg)
			return cfg, nil
		}
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Save writes the config to disk as YAML, creating parent directories.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate performs minimal validation of ranges that would otherwise break
// the scanner at runtime.
func Validate(cfg Config) error {
	if cfg.ProbePort <= 0 || cfg.ProbePort > 65535 {
		return fmt.Errorf("probe_port %d out of range", cfg.ProbePort)
	}
	if cfg.ScanIntervalSec <= 0 {
		return fmt.Errorf("scan_interval_sec must be positive")
	}
	if cfg.DailyCallBudget < 0 {
		return fmt.Errorf("daily_call_budget cannot be negative")
	}
	if cfg.LookupDelayMs < 0 {
		return fmt.Errorf("lookup_delay_ms cannot be negative")
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.ScanIntervalSec == 0 {
		cfg.ScanIntervalSec = int(DefaultScanInterval / time.Second)
	}
	if cfg.ScanDeadlineSec == 0 {
		cfg.ScanDeadlineSec = int(DefaultScanDeadline / time.Second)
	}
	if cfg.ProbePort == 0 {
		cfg.ProbePort = DefaultProbePort
	}
	if cfg.ProbeTimeoutMs == 0 {
		cfg.ProbeTimeoutMs = int(DefaultProbeTimeout / time.Millisecond)
	}
	if cfg.PingSweepHosts == 0 {
		cfg.PingSweepHosts = DefaultPingSweepHosts
	}
	if cfg.VendorAPIBase == "" {
		cfg.VendorAPIBase = DefaultVendorAPIBase
	}
	if cfg.DailyCallBudget == 0 {
		cfg.DailyCallBudget = DefaultDailyCallBudget
	}
	if cfg.LookupDelayMs == 0 {
		cfg.LookupDelayMs = int(DefaultLookupDelay / time.Millisecond)
	}
	if len(cfg.ServiceTypes) == 0 {
		cfg.ServiceTypes = append([]string(nil), DefaultServiceTypes...)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

// ScanInterval returns the scan interval as a duration.
func (c Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSec) * time.Second
}

// ScanDeadline returns the soft scan deadline as a duration.
func (c Config) ScanDeadline() time.Duration {
	return time.Duration(c.ScanDeadlineSec) * time.Second
}

// ProbeTimeout returns the per-probe timeout as a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}

// LookupDelay returns the minimum delay between vendor API calls.
func (c Config) LookupDelay() time.Duration {
	return time.Duration(c.LookupDelayMs) * time.Millisecond
}

// DevicesFile returns the path of the persisted device registry.
func (c Config) DevicesFile() string {
	return filepath.Join(c.DataDir, "devices.json")
}

// VendorCacheFile returns the path of the persisted OUI vendor cache.
func (c Config) VendorCacheFile() string {
	return filepath.Join(c.DataDir, "vendor_cache.json")
}

// CallCounterFile returns the path of the persisted daily API call counter.
func (c Config) CallCounterFile() string {
	return filepath.Join(c.DataDir, "api_calls.json")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".networkmonitor"
	}
	return filepath.Join(home, ".networkmonitor")
}
