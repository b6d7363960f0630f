// Package pprof profiles the process while a computation runs. File mode
// writes one profile per type when the collector stops; HTTP mode serves
// the standard /debug/pprof endpoints for on-demand collection.
package pprof

import (
	"fmt"
	"strings"
)

// ModeType defines the pprof collection mode.
type ModeType string

const (
	// ModeFile writes profiles to OutputDir when the collector stops.
	ModeFile ModeType = "file"
	// ModeHTTP exposes pprof endpoints on Addr.
	ModeHTTP ModeType = "http"
)

// ProfileType defines the type of profile to collect.
type ProfileType string

const (
	ProfileCPU       ProfileType = "cpu"
	ProfileHeap      ProfileType = "heap"
	ProfileGoroutine ProfileType = "goroutine"
	ProfileBlock     ProfileType = "block"
	ProfileMutex     ProfileType = "mutex"
	ProfileAllocs    ProfileType = "allocs"
)

// AllProfileTypes returns all supported profile types.
func AllProfileTypes() []ProfileType {
	return []ProfileType{
		ProfileCPU,
		ProfileHeap,
		ProfileGoroutine,
		ProfileBlock,
		ProfileMutex,
		ProfileAllocs,
	}
}

// DefaultProfileTypes returns the default profile types to collect.
func DefaultProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap}
}

// ParseProfileTypes parses a comma-separated string into profile types.
// Duplicates are dropped.
func ParseProfileTypes(s string) ([]ProfileType, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultProfileTypes(), nil
	}

	valid := make(map[ProfileType]bool)
	for _, pt := range AllProfileTypes() {
		valid[pt] = true
	}

	seen := make(map[ProfileType]bool)
	var types []ProfileType
	for _, p := range strings.Split(s, ",") {
		pt := ProfileType(strings.TrimSpace(strings.ToLower(p)))
		if !valid[pt] {
			return nil, fmt.Errorf("unknown profile type: %q", p)
		}
		if !seen[pt] {
			seen[pt] = true
			types = append(types, pt)
		}
	}

	return types, nil
}

// Config holds the pprof configuration.
type Config struct {
	Enabled   bool
	Mode      ModeType
	OutputDir string
	Profiles  []ProfileType
	// Addr is the listen address of HTTP mode.
	Addr string
	// CPURate is the CPU sampling rate in Hz, 0 keeps the runtime default.
	CPURate int
}

// DefaultConfig returns a disabled file-mode configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:      ModeFile,
		OutputDir: "./pprof",
		Profiles:  DefaultProfileTypes(),
		Addr:      "localhost:6060",
	}
}

// HasProfile reports whether pt is requested.
func (c *Config) HasProfile(pt ProfileType) bool {
	for _, p := range c.Profiles {
		if p == pt {
			return true
		}
	}
	return false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeFile:
		if c.OutputDir == "" {
			return fmt.Errorf("output directory is required in file mode")
		}
		if len(c.Profiles) == 0 {
			return fmt.Errorf("at least one profile type is required")
		}
	case ModeHTTP:
		if c.Addr == "" {
			return fmt.Errorf("listen address is required in http mode")
		}
	default:
		return fmt.Errorf("invalid pprof mode: %q (valid: file, http)", c.Mode)
	}
	if c.CPURate < 0 {
		return fmt.Errorf("cpu rate must not be negative")
	}
	return nil
}
