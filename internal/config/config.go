// Package config loads heap tuning knobs from a JSON file and, optionally,
// watches that file for changes so a long-running process can pick up new
// limits without a restart.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// File is the on-disk shape of a heap configuration file. Every field is
// optional; a missing field simply leaves the corresponding Config default
// untouched.
type File struct {
	ArenaReserve         uintptr `json:"arena_reserve,omitempty"`
	EnableDebug          bool    `json:"enable_debug,omitempty"`
	MinCompatibleVersion string  `json:"min_compatible_version,omitempty"`
}

// Load reads and parses a configuration file. A missing file is not an
// error; it yields a zero-value File so callers can layer it under their
// own defaults.
func Load(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}

		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return &f, nil
}

// Save writes a configuration file, overwriting any existing one.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}

	return nil
}
