// Package export renders the device registry as CSV or JSON for the
// presentation layer.
package export

import (
	"encoding/json"
	"strings"

	"github.com/ljay-net/NetworkMonitor/internal/registry"
)

// CSVHeader is the fixed column order of CSV exports.
const CSVHeader = "Name,IP Address,MAC Address,Vendor,Type,Status,First Seen,Last Seen,Important,Tags,Notes"

const csvTimeLayout = "2006-01-02 15:04"

// ToCSV renders devices with the fixed header. Notes are wrapped in
// quotes with embedded quotes doubled; tags are joined with "; ".
func ToCSV(devices []registry.Device) string {
	var b strings.Builder
	b.WriteString(CSVHeader)
	b.WriteByte('\n')

	for _, dev := range devices {
		status := "Offline"
		if dev.IsOnline {
			status = "Online"
		}
		important := "No"
		if dev.IsImportant {
			important = "Yes"
		}
		vendor := dev.Vendor
		if vendor == "" {
			vendor = "Unknown"
		}

		notes := "\"" + strings.ReplaceAll(dev.Notes, "\"", "\"\"") + "\""

		row := []string{
			dev.Name,
			dev.IPAddress,
			dev.MACAddress,
			vendor,
			string(dev.Type),
			status,
			dev.FirstSeen.Format(csvTimeLayout),
			dev.LastSeen.Format(csvTimeLayout),
			important,
			strings.Join(dev.Tags, "; "),
			notes,
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}

	return b.String()
}

// ToJSON renders devices as a pretty-printed array with ISO-8601
// timestamps.
func ToJSON(devices []registry.Device) ([]byte, error) {
	return json.MarshalIndent(devices, "", "  ")
}

// FromJSON parses a previously exported device array.
func FromJSON(data []byte) ([]registry.Device, error) {
	var devices []registry.Device
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}
