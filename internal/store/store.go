// Package store persists the device registry as a JSON file.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ljay-net/NetworkMonitor/internal/registry"
)

// Store reads and writes the device registry file.
type Store struct {
	path string
	log  zerolog.Logger
}

// New creates a Store for the given file path.
func New(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Save writes the full device list, replacing previous content. The write
// goes through a temp file and rename so a crash never leaves a torn file.
func (s *Store) Save(devices []registry.Device) error {
	data, err := json.MarshalIndent(devices, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the persisted device list. A missing file returns (nil, nil);
// a malformed file is logged and also treated as absent so the registry
// starts empty rather than crashing.
func (s *Store) Load() ([]registry.Device, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var devices []registry.Device
	if err := json.Unmarshal(data, &devices); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("device file malformed, starting empty")
		return nil, nil
	}
	return devices, nil
}
