package registry

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeviceType classifies a discovered device.
type DeviceType string

const (
	TypeComputer DeviceType = "computer"
	TypeMobile   DeviceType = "mobile"
	TypeIoT      DeviceType = "iot"
	TypeRouter   DeviceType = "router"
	TypeUnknown  DeviceType = "unknown"
)

// Device is one observed network endpoint. The ID is assigned once and
// never changes; the MAC address is the de-duplication key during
// reconciliation. An empty Vendor means a lookup is pending or
// unavailable, which is distinct from a resolved value of "Unknown".
type Device struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	IPAddress   string     `json:"ipAddress"`
	MACAddress  string     `json:"macAddress"`
	Type        DeviceType `json:"type"`
	IsOnline    bool       `json:"isOnline"`
	IsImportant bool       `json:"isImportant"`
	FirstSeen   time.Time  `json:"firstSeen"`
	LastSeen    time.Time  `json:"lastSeen"`
	Tags        []string   `json:"tags,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Vendor      string     `json:"vendor,omitempty"`
}

func newDevice(name, ip, mac string, deviceType DeviceType, vendor string, now time.Time) *Device {
	return &Device{
		ID:         uuid.NewString(),
		Name:       name,
		IPAddress:  ip,
		MACAddress: mac,
		Type:       deviceType,
		IsOnline:   true,
		FirstSeen:  now,
		LastSeen:   now,
		Vendor:     vendor,
	}
}

// Curated vendor-name fragments per category. Matched case-insensitively
// in priority order: computer, mobile, router, iot.
var (
	computerVendors = []string{"apple", "intel", "dell", "hp", "lenovo", "microsoft", "vmware", "parallels"}
	mobileVendors   = []string{"samsung", "lg", "sony", "htc", "huawei", "xiaomi", "oppo", "oneplus"}
	routerVendors   = []string{"cisco", "tp-link", "netgear", "d-link", "asus", "linksys", "ubiquiti", "mikrotik", "juniper", "aruba"}
	iotVendors      = []string{"nest", "ring", "ecobee", "philips", "amazon", "google", "sonos", "roku", "chromecast", "alexa", "espressif"}
)

// deviceOUI returns the uppercase six-hex-character prefix of a MAC.
func deviceOUI(mac string) string {
	normalized := strings.ToUpper(mac)
	for _, sep := range []string{":", "-", "."} {
		normalized = strings.ReplaceAll(normalized, sep, "")
	}
	if len(normalized) < 6 {
		return ""
	}
	return normalized[:6]
}

// InferTypeFromVendor guesses a device type from its vendor name. This is
// a heuristic; callers apply it only while the type is still unknown so a
// user-assigned type is never overwritten.
func InferTypeFromVendor(vendor string) DeviceType {
	if vendor == "" {
		return TypeUnknown
	}
	lower := strings.ToLower(vendor)

	for _, fragment := range computerVendors {
		if strings.Contains(lower, fragment) {
			return TypeComputer
		}
	}
	for _, fragment := range mobileVendors {
		if strings.Contains(lower, fragment) {
			return TypeMobile
		}
	}
	for _, fragment := range routerVendors {
		if strings.Contains(lower, fragment) {
			return TypeRouter
		}
	}
	for _, fragment := range iotVendors {
		if strings.Contains(lower, fragment) {
			return TypeIoT
		}
	}
	return TypeUnknown
}

// InferTypeFromService guesses a device type from an mDNS service type.
func InferTypeFromService(serviceType, instanceName string) DeviceType {
	switch {
	case strings.Contains(serviceType, "_airplay"), strings.Contains(serviceType, "_hap"),
		strings.Contains(serviceType, "_spotify-connect"), strings.Contains(serviceType, "_googlecast"):
		return TypeIoT
	case strings.Contains(serviceType, "_device-info"):
		name := strings.ToLower(instanceName)
		if strings.Contains(name, "iphone") || strings.Contains(name, "ipad") || strings.Contains(name, "android") {
			return TypeMobile
		}
		if strings.Contains(name, "mac") || strings.Contains(name, "pc") || strings.Contains(name, "desktop") {
			return TypeComputer
		}
	case strings.Contains(serviceType, "_workstation"), strings.Contains(serviceType, "_smb"):
		return TypeComputer
	case strings.Contains(serviceType, "_printer"), strings.Contains(serviceType, "_ipp"):
		return TypeIoT
	}
	return TypeUnknown
}
