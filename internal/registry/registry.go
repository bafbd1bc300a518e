// Package registry models the set of targets to monitor. A Registry is
// an immutable snapshot built wholesale from the targets file; reloads
// build a new one rather than mutating in place.
package registry

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = time.Second
)

// Target is one monitored endpoint. Immutable once part of a Registry.
type Target struct {
	Address  string
	Interval time.Duration
	Timeout  time.Duration
	Active   bool
}

// Registry is the snapshot of targets in effect at a point in time.
// Version is the modification time of the file it was loaded from.
type Registry struct {
	Targets   []Target
	ProbeRate float64 // probes per second across all targets, 0 = unlimited
	Version   time.Time
}

// ActiveCount reports how many targets are marked active.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, t := range r.Targets {
		if t.Active {
			n++
		}
	}
	return n
}

// targetSpec accepts both file forms: a bare address string, or an
// object with per-target overrides.
type targetSpec struct {
	Address  string `yaml:"address"`
	Interval *int   `yaml:"interval"` // seconds
	Timeout  *int   `yaml:"timeout"`  // milliseconds
	Active   *bool  `yaml:"active"`
}

func (t *targetSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&t.Address)
	}
	type plain targetSpec
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = targetSpec(p)
	return nil
}

type fileModel struct {
	Settings struct {
		DefaultInterval int     `yaml:"default_interval"` // seconds
		DefaultTimeout  int     `yaml:"default_timeout"`  // milliseconds
		ProbeRate       float64 `yaml:"probe_rate"`
	} `yaml:"settings"`
	Targets []targetSpec `yaml:"targets"`
}

// Parse builds a Registry from targets-file bytes. Registry-wide
// defaults fill in whatever a target omits; explicit zero or negative
// values are rejected rather than silently defaulted.
func Parse(data []byte, version time.Time) (*Registry, error) {
	var f fileModel
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse targets file: %w", err)
	}

	defInterval := DefaultInterval
	if f.Settings.DefaultInterval != 0 {
		if f.Settings.DefaultInterval < 0 {
			return nil, fmt.Errorf("settings.default_interval must be positive, got %d", f.Settings.DefaultInterval)
		}
		defInterval = time.Duration(f.Settings.DefaultInterval) * time.Second
	}
	defTimeout := DefaultTimeout
	if f.Settings.DefaultTimeout != 0 {
		if f.Settings.DefaultTimeout < 0 {
			return nil, fmt.Errorf("settings.default_timeout must be positive, got %d", f.Settings.DefaultTimeout)
		}
		defTimeout = time.Duration(f.Settings.DefaultTimeout) * time.Millisecond
	}
	if f.Settings.ProbeRate < 0 {
		return nil, fmt.Errorf("settings.probe_rate must not be negative, got %v", f.Settings.ProbeRate)
	}

	reg := &Registry{
		Targets:   make([]Target, 0, len(f.Targets)),
		ProbeRate: f.Settings.ProbeRate,
		Version:   version,
	}
	seen := make(map[string]bool, len(f.Targets))
	for i, spec := range f.Targets {
		if spec.Address == "" {
			return nil, fmt.Errorf("target %d: address is required", i)
		}
		if seen[spec.Address] {
			return nil, fmt.Errorf("target %d: duplicate address %q", i, spec.Address)
		}
		seen[spec.Address] = true

		t := Target{
			Address:  spec.Address,
			Interval: defInterval,
			Timeout:  defTimeout,
			Active:   true,
		}
		if spec.Interval != nil {
			if *spec.Interval <= 0 {
				return nil, fmt.Errorf("target %q: interval must be positive, got %d", spec.Address, *spec.Interval)
			}
			t.Interval = time.Duration(*spec.Interval) * time.Second
		}
		if spec.Timeout != nil {
			if *spec.Timeout <= 0 {
				return nil, fmt.Errorf("target %q: timeout must be positive, got %d", spec.Address, *spec.Timeout)
			}
			t.Timeout = time.Duration(*spec.Timeout) * time.Millisecond
		}
		if spec.Active != nil {
			t.Active = *spec.Active
		}
		reg.Targets = append(reg.Targets, t)
	}
	return reg, nil
}
