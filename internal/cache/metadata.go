package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/cruciblehq/rubypack/internal/fingerprint"
	"github.com/cruciblehq/rubypack/internal/paths"
	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
)

// Format version of the metadata record. Records with another version are
// treated as absent.
const metadataVersion = 1

// Record persisted next to a cached artifact.
//
// The fingerprint is encoded last, so any truncation of the file either
// removes it or leaves it malformed, and the record is rejected.
type Metadata struct {
	Version     int                     `toml:"version"`                 // Record format version.
	Identity    string                  `toml:"identity"`                // Non-content identity, such as a tool version.
	CreatedAt   time.Time               `toml:"created_at"`              // When the artifact was committed.
	Size        int64                   `toml:"size"`                    // Size of the artifact in bytes at commit time.
	Inputs      map[string]string       `toml:"inputs,inline,omitempty"` // Per-input digests, keyed by input name.
	Fingerprint fingerprint.Fingerprint `toml:"fingerprint"`             // Fingerprint of the inputs the artifact was built from.
}

// Returns a deep copy of m.
func (m *Metadata) clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.Inputs != nil {
		c.Inputs = make(map[string]string, len(m.Inputs))
		for k, v := range m.Inputs {
			c.Inputs[k] = v
		}
	}
	return &c
}

// Checks that a decoded record is complete.
func (m *Metadata) validate() error {
	if m.Version != metadataVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptEntry, m.Version)
	}
	if m.Fingerprint.IsZero() {
		return fmt.Errorf("%w: missing fingerprint", ErrCorruptEntry)
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing creation time", ErrCorruptEntry)
	}
	return nil
}

// Reads the metadata record of the cache directory dir.
//
// Returns (nil, nil) when there is no record. Any other failure, including a
// record that exists but cannot be read, is returned so the caller can log it
// before treating the record as absent.
func readMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(paths.Metadata(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrCorruptEntry, err)
	}

	var m Metadata
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptEntry, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Atomically replaces the metadata record of the cache directory dir.
//
// The record is written to a temporary file in dir and renamed over the old
// one, so readers observe either the old record or the new one.
func writeMetadata(dir string, m *Metadata) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheIO, err)
	}
	if err := renameio.WriteFile(paths.Metadata(dir), data, paths.DefaultFileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheIO, err)
	}
	return nil
}
