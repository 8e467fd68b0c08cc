// Package registry holds the authoritative device list and reconciles
// scan results into it.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ErrDeviceNotFound indicates no device with the given ID exists.
var ErrDeviceNotFound = errors.New("device not found")

// Persister stores and loads the device list. A nil Load result with a
// nil error means no saved state exists yet.
type Persister interface {
	Save(devices []Device) error
	Load() ([]Device, error)
}

// VendorResolver answers vendor lookups without blocking. The boolean is
// false while a lookup is pending or unavailable.
type VendorResolver interface {
	Resolve(mac string, online bool) (string, bool)
	ResolveManual(mac string) (string, bool)
	Refresh()
}

// Events carries the callbacks a presentation layer subscribes to. All
// callbacks are optional and invoked outside the registry lock.
type Events struct {
	DeviceListChanged      func(devices []Device)
	NewDevice              func(device Device)
	MissingImportantDevice func(device Device)
	ScanStatus             func(scanning bool)
}

// Registry owns the device list. Every mutation is serialized through one
// mutex because probe results and vendor callbacks arrive on independent
// goroutines and race to update the same records.
type Registry struct {
	mu      sync.Mutex
	devices []*Device

	persister Persister
	resolver  VendorResolver
	events    Events
	log       zerolog.Logger

	scanning bool
	now      func() time.Time
}

// New builds a Registry and loads previously persisted devices.
func New(persister Persister, resolver VendorResolver, events Events, log zerolog.Logger) *Registry {
	r := &Registry{
		persister: persister,
		resolver:  resolver,
		events:    events,
		log:       log,
		now:       time.Now,
	}

	saved, err := persister.Load()
	if err != nil {
		log.Warn().Err(err).Msg("loading saved devices failed, starting empty")
	}
	for i := range saved {
		dev := saved[i]
		dev.IsOnline = false
		r.devices = append(r.devices, &dev)
	}
	return r
}

// Devices returns a snapshot copy of the device list.
func (r *Registry) Devices() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Scanning reports whether a scan cycle is currently in flight.
func (r *Registry) Scanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanning
}

// Rename sets a device's display name.
func (r *Registry) Rename(id, name string) error {
	return r.mutate(id, func(dev *Device) {
		dev.Name = name
	})
}

// SetType assigns a device type chosen by the user.
func (r *Registry) SetType(id string, deviceType DeviceType) error {
	return r.mutate(id, func(dev *Device) {
		dev.Type = deviceType
	})
}

// SetTags replaces a device's tag list.
func (r *Registry) SetTags(id string, tags []string) error {
	return r.mutate(id, func(dev *Device) {
		dev.Tags = append([]string(nil), tags...)
	})
}

// SetNotes replaces a device's notes text.
func (r *Registry) SetNotes(id, notes string) error {
	return r.mutate(id, func(dev *Device) {
		dev.Notes = notes
	})
}

// ToggleImportant flips the important flag that drives missing-device
// alerts.
func (r *Registry) ToggleImportant(id string) error {
	return r.mutate(id, func(dev *Device) {
		dev.IsImportant = !dev.IsImportant
	})
}

// mutate applies fn to the device with the given ID and persists the
// registry immediately. Mutations are idempotent per device and never
// touch other records.
func (r *Registry) mutate(id string, fn func(*Device)) error {
	r.mu.Lock()
	dev := r.findByIDLocked(id)
	if dev == nil {
		r.mu.Unlock()
		return ErrDeviceNotFound
	}
	fn(dev)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snapshot)
	r.emitChanged(snapshot)
	return nil
}

// AllTags returns the unique tags across all devices, sorted.
func (r *Registry) AllTags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags := lo.Uniq(lo.FlatMap(r.devices, func(dev *Device, _ int) []string {
		return dev.Tags
	}))
	sort.Strings(tags)
	return tags
}

// DevicesWithTag returns devices carrying the given tag.
func (r *Registry) DevicesWithTag(tag string) []Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := lo.Filter(r.devices, func(dev *Device, _ int) bool {
		return lo.Contains(dev.Tags, tag)
	})
	return lo.Map(matched, func(dev *Device, _ int) Device {
		return cloneDevice(dev)
	})
}

// UpdateVendor records a freshly resolved vendor for every device sharing
// the OUI, not just the one that triggered the lookup. Called from the
// resolver's worker goroutine.
func (r *Registry) UpdateVendor(oui, vendorName string) {
	r.mu.Lock()
	updated := false
	for _, dev := range r.devices {
		if deviceOUI(dev.MACAddress) != oui {
			continue
		}
		dev.Vendor = vendorName
		if dev.Type == TypeUnknown {
			dev.Type = InferTypeFromVendor(vendorName)
		}
		updated = true
	}
	var snapshot []Device
	if updated {
		snapshot = r.snapshotLocked()
	}
	r.mu.Unlock()

	if updated {
		r.log.Info().Str("oui", oui).Str("vendor", vendorName).Msg("applied vendor to devices")
		r.persist(snapshot)
		r.emitChanged(snapshot)
	}
}

// RefreshVendors clears the vendor cache, strips resolved vendors from
// every device and immediately re-requests lookups, bypassing the
// online-only gate since the user asked for the refresh.
func (r *Registry) RefreshVendors() {
	r.resolver.Refresh()

	r.mu.Lock()
	for _, dev := range r.devices {
		dev.Vendor = ""
		if name, ok := r.resolver.ResolveManual(dev.MACAddress); ok {
			dev.Vendor = name
		}
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snapshot)
	r.emitChanged(snapshot)
}

// ClearHistory removes every device. Individual devices are never deleted;
// this wholesale reset is the only way records leave the registry.
func (r *Registry) ClearHistory() {
	r.mu.Lock()
	r.devices = nil
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snapshot)
	r.emitChanged(snapshot)
}

// ResetAllData clears the device history and the vendor cache.
func (r *Registry) ResetAllData() {
	r.ClearHistory()
	r.resolver.Refresh()
	r.log.Info().Msg("all data reset")
}

func (r *Registry) findByIDLocked(id string) *Device {
	for _, dev := range r.devices {
		if dev.ID == id {
			return dev
		}
	}
	return nil
}

func (r *Registry) findByMACLocked(mac string) *Device {
	for _, dev := range r.devices {
		if dev.MACAddress == mac {
			return dev
		}
	}
	return nil
}

func (r *Registry) snapshotLocked() []Device {
	out := make([]Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, cloneDevice(dev))
	}
	return out
}

func cloneDevice(dev *Device) Device {
	clone := *dev
	clone.Tags = append([]string(nil), dev.Tags...)
	return clone
}

func (r *Registry) persist(snapshot []Device) {
	if err := r.persister.Save(snapshot); err != nil {
		r.log.Warn().Err(err).Msg("persisting devices failed")
	}
}

func (r *Registry) emitChanged(snapshot []Device) {
	if r.events.DeviceListChanged != nil {
		r.events.DeviceListChanged(snapshot)
	}
}

func (r *Registry) emitStatus(scanning bool) {
	if r.events.ScanStatus != nil {
		r.events.ScanStatus(scanning)
	}
}
