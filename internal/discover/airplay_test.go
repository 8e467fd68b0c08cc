package discover

import "testing"

func TestParseAirPlayResponse(t *testing.T) {
	sample := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
    <key>name</key>
    <string>Living Room</string>
    <key>model</key>
    <string>AppleTV6,2</string>
    <key>features</key>
    <integer>123456</integer>
</dict>
</plist>`)

	fields := parseAirPlayResponse(sample)
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d: %v", len(fields), fields)
	}

	if fields["name"] != "Living Room" {
		t.Fatalf("expected name preserved, got %q", fields["name"])
	}

	if fields["features"] != "123456" {
		t.Fatalf("expected features rendered as string, got %q", fields["features"])
	}
}

func TestParseAirPlayResponseRejectsGarbage(t *testing.T) {
	if fields := parseAirPlayResponse(nil); fields != nil {
		t.Fatalf("expected nil for empty payload, got %v", fields)
	}
	if fields := parseAirPlayResponse([]byte("not a plist")); fields != nil {
		t.Fatalf("expected nil for malformed payload, got %v", fields)
	}
}

func TestNormaliseAirPlayValue(t *testing.T) {
	ascii := []byte("Test String")
	if got := normaliseAirPlayValue(ascii); got != "Test String" {
		t.Fatalf("expected ASCII bytes to convert to string, got %q", got)
	}

	binary := []byte{0x00, 0x01, 0x02}
	if got := normaliseAirPlayValue(binary); got != "000102" {
		t.Fatalf("expected binary bytes to be hex encoded, got %q", got)
	}

	nested := map[string]any{"name": "AirPlay", "active": true}
	if got := normaliseAirPlayValue(nested); got != "active=true, name=AirPlay" {
		t.Fatalf("unexpected nested normalisation: %q", got)
	}
}
