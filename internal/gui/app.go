// Package gui hosts a minimal local web dashboard over the device
// registry, pushing updates to the browser via server-sent events.
package gui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"

	"github.com/ljay-net/NetworkMonitor/internal/export"
	"github.com/ljay-net/NetworkMonitor/internal/registry"
)

// App serves the dashboard. Devices and scan triggers are supplied as
// callbacks so the package stays free of wiring concerns.
type App struct {
	devices func() []registry.Device
	scan    func()

	mu       sync.Mutex
	scanning bool
	clients  map[chan event]struct{}
}

// New constructs an App around the given device source and scan trigger.
func New(devices func() []registry.Device, scan func()) *App {
	return &App{
		devices: devices,
		scan:    scan,
		clients: make(map[chan event]struct{}),
	}
}

// Run starts the HTTP server hosting the dashboard and blocks until it
// stops.
func (a *App) Run() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", a.handleIndex)
	mux.HandleFunc("/devices", a.handleDevices)
	mux.HandleFunc("/scan", a.handleScan)
	mux.HandleFunc("/export.csv", a.handleExportCSV)
	mux.HandleFunc("/export.json", a.handleExportJSON)
	mux.HandleFunc("/events", a.handleEvents)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	addr := ln.Addr().String()
	fmt.Printf("NetworkMonitor dashboard available at http://%s\n", addr)
	a.launchBrowser(addr)

	server := &http.Server{Handler: mux}
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NotifyDevices pushes a fresh device list to connected browsers. Wire it
// to the registry's device list change callback.
func (a *App) NotifyDevices(devices []registry.Device) {
	a.broadcast(a.snapshotEvent(devices))
}

// NotifyStatus pushes the scanning flag to connected browsers.
func (a *App) NotifyStatus(scanning bool) {
	a.mu.Lock()
	a.scanning = scanning
	a.mu.Unlock()
	a.broadcast(a.snapshotEvent(a.devices()))
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, indexHTML)
}

func (a *App) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a.devices())
}

func (a *App) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	go a.scan()
	w.WriteHeader(http.StatusAccepted)
}

func (a *App) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=devices.csv")
	io.WriteString(w, export.ToCSV(a.devices()))
}

func (a *App) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := export.ToJSON(a.devices())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=devices.json")
	w.Write(data)
}

func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch := make(chan event, 8)
	a.addClient(ch)
	defer a.removeClient(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent(w, a.snapshotEvent(a.devices()))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeEvent(w, ev)
			flusher.Flush()
		}
	}
}

func (a *App) snapshotEvent(devices []registry.Device) event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return event{
		Type:     "snapshot",
		Scanning: a.scanning,
		Devices:  devices,
	}
}

func (a *App) addClient(ch chan event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clients[ch] = struct{}{}
}

func (a *App) removeClient(ch chan event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.clients, ch)
	close(ch)
}

func (a *App) broadcast(ev event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for ch := range a.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func writeEvent(w http.ResponseWriter, ev event) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (a *App) launchBrowser(addr string) {
	url := "http://" + addr
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if cmd != nil {
		cmd.Start()
	}
}

type event struct {
	Type     string            `json:"type"`
	Scanning bool              `json:"scanning"`
	Devices  []registry.Device `json:"devices"`
}
