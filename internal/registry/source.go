package registry

import (
	"fmt"
	"os"
	"time"
)

// FileSource loads registries from a YAML targets file on disk. The
// file's modification time doubles as the registry version marker.
type FileSource struct {
	Path string
}

// Version returns the file's current modification time.
func (s *FileSource) Version() (time.Time, error) {
	fi, err := os.Stat(s.Path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat targets file %q: %w", s.Path, err)
	}
	return fi.ModTime(), nil
}

// Load reads and parses the targets file. The returned registry carries
// the mtime observed just before the read.
func (s *FileSource) Load() (*Registry, error) {
	version, err := s.Version()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read targets file %q: %w", s.Path, err)
	}
	reg, err := Parse(data, version)
	if err != nil {
		return nil, fmt.Errorf("targets file %q: %w", s.Path, err)
	}
	return reg, nil
}
