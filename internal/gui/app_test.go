package gui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ljay-net/NetworkMonitor/internal/registry"
)

func testDevices() []registry.Device {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return []registry.Device{
		{
			ID:         "d1",
			Name:       "Router",
			IPAddress:  "10.0.0.1",
			MACAddress: "AA:BB:CC:DD:EE:01",
			Type:       registry.TypeRouter,
			IsOnline:   true,
			FirstSeen:  now,
			LastSeen:   now,
		},
	}
}

func TestHandleDevices(t *testing.T) {
	app := New(testDevices, func() {})

	rec := httptest.NewRecorder()
	app.handleDevices(rec, httptest.NewRequest(http.MethodGet, "/devices", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var devices []registry.Device
	if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(devices) != 1 || devices[0].IPAddress != "10.0.0.1" {
		t.Fatalf("unexpected devices payload: %+v", devices)
	}
}

func TestHandleScanTriggersCallback(t *testing.T) {
	triggered := make(chan struct{}, 1)
	app := New(testDevices, func() { triggered <- struct{}{} })

	rec := httptest.NewRecorder()
	app.handleScan(rec, httptest.NewRequest(http.MethodPost, "/scan", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	select {
	case <-triggered:
	case <-time.After(time.Second):
		t.Fatal("scan callback never fired")
	}
}

func TestHandleScanRejectsGet(t *testing.T) {
	app := New(testDevices, func() { t.Fatal("scan must not trigger on GET") })

	rec := httptest.NewRecorder()
	app.handleScan(rec, httptest.NewRequest(http.MethodGet, "/scan", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestHandleExportCSV(t *testing.T) {
	app := New(testDevices, func() {})

	rec := httptest.NewRecorder()
	app.handleExportCSV(rec, httptest.NewRequest(http.MethodGet, "/export.csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "Name,IP Address,MAC Address,") {
		t.Fatalf("missing CSV header: %q", body)
	}
	if !strings.Contains(body, "Router,10.0.0.1,AA:BB:CC:DD:EE:01") {
		t.Fatalf("missing device row: %q", body)
	}
}
