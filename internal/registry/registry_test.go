package registry

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ljay-net/NetworkMonitor/internal/arp"
)

type memPersister struct {
	saved   [][]Device
	initial []Device
}

func (m *memPersister) Save(devices []Device) error {
	m.saved = append(m.saved, devices)
	return nil
}

func (m *memPersister) Load() ([]Device, error) {
	return m.initial, nil
}

type stubResolver struct {
	vendors   map[string]string // OUI -> vendor
	refreshed bool
}

func (s *stubResolver) Resolve(mac string, online bool) (string, bool) {
	if vendor, ok := s.vendors[deviceOUI(mac)]; ok {
		return vendor, true
	}
	return "", false
}

func (s *stubResolver) ResolveManual(mac string) (string, bool) {
	return s.Resolve(mac, true)
}

func (s *stubResolver) Refresh() {
	s.refreshed = true
}

func newTestRegistry(t *testing.T, initial []Device, vendors map[string]string, events Events) (*Registry, *memPersister, *stubResolver) {
	t.Helper()
	persister := &memPersister{initial: initial}
	resolver := &stubResolver{vendors: vendors}
	reg := New(persister, resolver, events, zerolog.Nop())
	return reg, persister, resolver
}

func scanConfig(entries []arp.Entry, gateway, localIP string) ScanConfig {
	return ScanConfig{
		Sources: ScanSources{
			ARPEntries: func(context.Context) []arp.Entry { return entries },
			Gateway:    func(context.Context, string) string { return gateway },
			LocalIP:    func() string { return localIP },
		},
		Deadline: 100 * time.Millisecond,
	}
}

func TestScanCreatesRouterAndUnknownDevice(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil, nil, Events{})

	entries := []arp.Entry{
		{IP: "10.0.0.1", MAC: "AA:BB:CC:DD:EE:01"},
		{IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:05"},
	}
	reg.Scan(context.Background(), scanConfig(entries, "10.0.0.1", "10.0.0.100"))

	devices := reg.Devices()
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}

	byIP := make(map[string]Device)
	for _, dev := range devices {
		byIP[dev.IPAddress] = dev
	}

	router := byIP["10.0.0.1"]
	if router.Type != TypeRouter {
		t.Fatalf("gateway device type = %s, want router", router.Type)
	}
	other := byIP["10.0.0.5"]
	if other.Type != TypeUnknown {
		t.Fatalf("device type = %s, want unknown", other.Type)
	}
	if other.Vendor != "" {
		t.Fatalf("expected vendor pending (empty), got %q", other.Vendor)
	}
}

func TestScanMergesDuplicateMAC(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil, nil, Events{})

	entries := []arp.Entry{
		{IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:05"},
		{IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:05"},
	}
	reg.Scan(context.Background(), scanConfig(entries, "10.0.0.1", "10.0.0.100"))

	if got := len(reg.Devices()); got != 1 {
		t.Fatalf("expected exactly 1 device for duplicated MAC, got %d", got)
	}
}

func TestScanReassignsIPKeepsIdentity(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil, nil, Events{})

	reg.Scan(context.Background(), scanConfig([]arp.Entry{{IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:05"}}, "10.0.0.1", "10.0.0.100"))
	first := reg.Devices()[0]

	reg.Scan(context.Background(), scanConfig([]arp.Entry{{IP: "10.0.0.9", MAC: "AA:BB:CC:DD:EE:05"}}, "10.0.0.1", "10.0.0.100"))
	devices := reg.Devices()
	if len(devices) != 1 {
		t.Fatalf("expected 1 device after IP change, got %d", len(devices))
	}
	if devices[0].ID != first.ID {
		t.Fatal("device identity must survive an IP reassignment")
	}
	if devices[0].IPAddress != "10.0.0.9" {
		t.Fatalf("IP = %s, want 10.0.0.9", devices[0].IPAddress)
	}
}

func TestScanResetsOnlineFlags(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil, nil, Events{})

	reg.Scan(context.Background(), scanConfig([]arp.Entry{{IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:05"}}, "10.0.0.1", "10.0.0.100"))
	if !reg.Devices()[0].IsOnline {
		t.Fatal("device should be online after being seen")
	}

	// Next scan sees nothing: the device must end up offline, with
	// lastSeen untouched.
	before := reg.Devices()[0].LastSeen
	reg.Scan(context.Background(), scanConfig(nil, "10.0.0.1", "10.0.0.100"))

	dev := reg.Devices()[0]
	if dev.IsOnline {
		t.Fatal("unseen device should be offline after scan")
	}
	if !dev.LastSeen.Equal(before) {
		t.Fatal("reset must not touch lastSeen")
	}
}

func TestScanRouterDeduplication(t *testing.T) {
	stale := []Device{
		{ID: "r1", Name: "Router", IPAddress: "10.0.0.2", MACAddress: "AA:BB:CC:DD:EE:02", Type: TypeRouter},
		{ID: "r2", Name: "Router", IPAddress: "10.0.0.3", MACAddress: "AA:BB:CC:DD:EE:03", Type: TypeRouter},
	}
	reg, _, _ := newTestRegistry(t, stale, nil, Events{})

	entries := []arp.Entry{{IP: "10.0.0.1", MAC: "AA:BB:CC:DD:EE:01"}}
	reg.Scan(context.Background(), scanConfig(entries, "10.0.0.1", "10.0.0.100"))

	var routers []Device
	for _, dev := range reg.Devices() {
		if dev.Type == TypeRouter {
			routers = append(routers, dev)
		}
	}
	if len(routers) != 1 {
		t.Fatalf("expected exactly 1 router after dedup, got %d", len(routers))
	}
	if routers[0].IPAddress != "10.0.0.1" {
		t.Fatalf("router IP = %s, want gateway 10.0.0.1", routers[0].IPAddress)
	}
}

func TestScanFiltersMulticast(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil, nil, Events{})

	entries := []arp.Entry{
		{IP: "239.255.255.250", MAC: "01:00:5E:7F:FF:FA"},
		{IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:05"},
	}
	reg.Scan(context.Background(), scanConfig(entries, "10.0.0.1", "10.0.0.100"))

	for _, dev := range reg.Devices() {
		if dev.IPAddress == "239.255.255.250" {
			t.Fatal("multicast address must never produce a device")
		}
	}
	if got := len(reg.Devices()); got != 1 {
		t.Fatalf("expected 1 device, got %d", got)
	}
}

func TestScanInfersTypeFromCachedVendor(t *testing.T) {
	vendors := map[string]string{"AABBCC": "Apple"}
	reg, _, _ := newTestRegistry(t, nil, vendors, Events{})

	entries := []arp.Entry{{IP: "10.0.0.5", MAC: "aa:bb:cc:11:22:33"}}
	reg.Scan(context.Background(), scanConfig(entries, "10.0.0.1", "10.0.0.100"))

	dev := reg.Devices()[0]
	if dev.Vendor != "Apple" {
		t.Fatalf("vendor = %q, want Apple", dev.Vendor)
	}
	if dev.Type != TypeComputer {
		t.Fatalf("type = %s, want computer", dev.Type)
	}
}

func TestScanEmitsNewDeviceEvent(t *testing.T) {
	var newDevices []Device
	events := Events{NewDevice: func(dev Device) { newDevices = append(newDevices, dev) }}
	reg, _, _ := newTestRegistry(t, nil, nil, events)

	entries := []arp.Entry{{IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:05"}}
	reg.Scan(context.Background(), scanConfig(entries, "10.0.0.1", "10.0.0.100"))
	if len(newDevices) != 1 {
		t.Fatalf("expected 1 new-device event, got %d", len(newDevices))
	}

	// Second sighting of the same MAC is a merge, not a new device.
	reg.Scan(context.Background(), scanConfig(entries, "10.0.0.1", "10.0.0.100"))
	if len(newDevices) != 1 {
		t.Fatalf("expected no further events, got %d", len(newDevices))
	}
}

func TestScanEmitsMissingImportantEvent(t *testing.T) {
	initial := []Device{{
		ID: "d1", Name: "NAS", IPAddress: "10.0.0.50",
		MACAddress: "AA:BB:CC:DD:EE:50", Type: TypeComputer, IsImportant: true,
	}}

	var missing []Device
	events := Events{MissingImportantDevice: func(dev Device) { missing = append(missing, dev) }}
	reg, _, _ := newTestRegistry(t, initial, nil, events)

	reg.Scan(context.Background(), scanConfig(nil, "10.0.0.1", "10.0.0.100"))

	if len(missing) != 1 {
		t.Fatalf("expected 1 missing-important event, got %d", len(missing))
	}
	if missing[0].ID != "d1" {
		t.Fatalf("missing device = %s, want d1", missing[0].ID)
	}
}

func TestUserMutations(t *testing.T) {
	initial := []Device{
		{ID: "d1", Name: "one", IPAddress: "10.0.0.5", MACAddress: "AA:BB:CC:DD:EE:05", Type: TypeUnknown},
		{ID: "d2", Name: "two", IPAddress: "10.0.0.6", MACAddress: "AA:BB:CC:DD:EE:06", Type: TypeUnknown},
	}
	reg, persister, _ := newTestRegistry(t, initial, nil, Events{})

	if err := reg.Rename("d1", "printer"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := reg.SetType("d1", TypeIoT); err != nil {
		t.Fatalf("set type: %v", err)
	}
	if err := reg.SetTags("d1", []string{"office", "wired"}); err != nil {
		t.Fatalf("set tags: %v", err)
	}
	if err := reg.SetNotes("d1", "third floor"); err != nil {
		t.Fatalf("set notes: %v", err)
	}
	if err := reg.ToggleImportant("d1"); err != nil {
		t.Fatalf("toggle important: %v", err)
	}

	devices := reg.Devices()
	var d1, d2 Device
	for _, dev := range devices {
		switch dev.ID {
		case "d1":
			d1 = dev
		case "d2":
			d2 = dev
		}
	}

	if d1.Name != "printer" || d1.Type != TypeIoT || d1.Notes != "third floor" || !d1.IsImportant {
		t.Fatalf("mutations not applied: %+v", d1)
	}
	if len(d1.Tags) != 2 || d1.Tags[0] != "office" {
		t.Fatalf("tags not applied: %v", d1.Tags)
	}
	// Other devices must be untouched.
	if d2.Name != "two" || d2.Type != TypeUnknown || d2.IsImportant {
		t.Fatalf("mutation leaked to other device: %+v", d2)
	}
	// Each mutation persists immediately.
	if len(persister.saved) != 5 {
		t.Fatalf("expected 5 persisted snapshots, got %d", len(persister.saved))
	}

	if err := reg.Rename("missing", "x"); err != ErrDeviceNotFound {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestUpdateVendorAppliesToAllMatchingDevices(t *testing.T) {
	initial := []Device{
		{ID: "d1", IPAddress: "10.0.0.5", MACAddress: "AA:BB:CC:11:22:33", Type: TypeUnknown},
		{ID: "d2", IPAddress: "10.0.0.6", MACAddress: "AA:BB:CC:44:55:66", Type: TypeUnknown},
		{ID: "d3", IPAddress: "10.0.0.7", MACAddress: "DD:EE:FF:00:11:22", Type: TypeUnknown},
	}
	reg, _, _ := newTestRegistry(t, initial, nil, Events{})

	reg.UpdateVendor("AABBCC", "Cisco Systems")

	for _, dev := range reg.Devices() {
		switch dev.ID {
		case "d1", "d2":
			if dev.Vendor != "Cisco Systems" {
				t.Fatalf("device %s vendor = %q", dev.ID, dev.Vendor)
			}
			if dev.Type != TypeRouter {
				t.Fatalf("device %s type = %s, want router", dev.ID, dev.Type)
			}
		case "d3":
			if dev.Vendor != "" {
				t.Fatalf("unrelated device gained vendor %q", dev.Vendor)
			}
		}
	}
}

func TestUpdateVendorNeverOverwritesUserType(t *testing.T) {
	initial := []Device{
		{ID: "d1", IPAddress: "10.0.0.5", MACAddress: "AA:BB:CC:11:22:33", Type: TypeIoT},
	}
	reg, _, _ := newTestRegistry(t, initial, nil, Events{})

	reg.UpdateVendor("AABBCC", "Apple")

	dev := reg.Devices()[0]
	if dev.Type != TypeIoT {
		t.Fatalf("user-assigned type overwritten: %s", dev.Type)
	}
	if dev.Vendor != "Apple" {
		t.Fatalf("vendor = %q, want Apple", dev.Vendor)
	}
}

func TestTagsQueries(t *testing.T) {
	initial := []Device{
		{ID: "d1", MACAddress: "AA:BB:CC:DD:EE:01", Tags: []string{"office", "wired"}},
		{ID: "d2", MACAddress: "AA:BB:CC:DD:EE:02", Tags: []string{"office"}},
		{ID: "d3", MACAddress: "AA:BB:CC:DD:EE:03"},
	}
	reg, _, _ := newTestRegistry(t, initial, nil, Events{})

	tags := reg.AllTags()
	if len(tags) != 2 || tags[0] != "office" || tags[1] != "wired" {
		t.Fatalf("AllTags = %v", tags)
	}

	tagged := reg.DevicesWithTag("office")
	if len(tagged) != 2 {
		t.Fatalf("expected 2 devices with tag office, got %d", len(tagged))
	}
}

func TestClearHistoryAndReset(t *testing.T) {
	initial := []Device{{ID: "d1", MACAddress: "AA:BB:CC:DD:EE:01"}}
	reg, _, resolver := newTestRegistry(t, initial, nil, Events{})

	reg.ClearHistory()
	if len(reg.Devices()) != 0 {
		t.Fatal("expected empty registry after clear")
	}

	reg.ResetAllData()
	if !resolver.refreshed {
		t.Fatal("reset must also clear the vendor cache")
	}
}

func TestRefreshVendorsStripsResolvedVendors(t *testing.T) {
	initial := []Device{{ID: "d1", MACAddress: "AA:BB:CC:DD:EE:01", Vendor: "Apple"}}
	reg, _, resolver := newTestRegistry(t, initial, nil, Events{})

	reg.RefreshVendors()

	if !resolver.refreshed {
		t.Fatal("resolver cache not refreshed")
	}
	if got := reg.Devices()[0].Vendor; got != "" {
		t.Fatalf("vendor = %q, want empty", got)
	}
}

func TestMergeServicesEnrichesByIP(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil, nil, Events{})

	cfg := scanConfig([]arp.Entry{{IP: "10.0.0.5", MAC: "AA:BB:CC:DD:EE:05"}}, "10.0.0.1", "10.0.0.100")
	cfg.Sources.Services = func(context.Context) []ServiceHit {
		return []ServiceHit{
			{Name: "Living Room", IP: "10.0.0.5", ServiceType: "_airplay._tcp"},
			{Name: "Ghost", IP: "10.0.0.99", ServiceType: "_http._tcp"},
		}
	}
	reg.Scan(context.Background(), cfg)

	devices := reg.Devices()
	if len(devices) != 1 {
		t.Fatalf("mDNS hits must not create devices, got %d", len(devices))
	}
	if devices[0].Name != "Living Room" {
		t.Fatalf("name = %q, want Living Room", devices[0].Name)
	}
	if devices[0].Type != TypeIoT {
		t.Fatalf("type = %s, want iot", devices[0].Type)
	}
}
