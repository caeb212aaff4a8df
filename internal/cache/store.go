package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/cruciblehq/rubypack/internal/fingerprint"
	"github.com/cruciblehq/rubypack/internal/paths"
)

// Valid cache names: lowercase alphanumerics, dots, dashes and underscores,
// starting with an alphanumeric.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Named cache directory and its metadata record.
//
// A Store is not safe for concurrent use. Distinct stores may be used
// concurrently as long as they refer to distinct directories.
type Store struct {
	name    string           // Cache name, unique within the root.
	dir     string           // Absolute path of the cache directory.
	meta    *Metadata        // Record loaded at open or written by the last commit.
	ignored error            // Why the record found at open was discarded.
	now     func() time.Time // Clock used for commit timestamps.
}

// Returns true if name can name a cache.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Opens the cache named name under root, creating its directory if needed.
//
// The metadata record is loaded eagerly. An unreadable or malformed record is
// logged and treated as absent; it never fails the open.
func Open(root, name string) (*Store, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	dir, err := filepath.Abs(paths.CacheDir(root, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheIO, err)
	}
	if err := os.MkdirAll(dir, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheIO, err)
	}

	s := &Store{name: name, dir: dir, now: time.Now}
	s.loadMetadata()
	return s, nil
}

// Reads the record of the cache directory, logging and discarding it if
// unusable.
func (s *Store) loadMetadata() {
	meta, err := readMetadata(s.dir)
	if err != nil {
		slog.Warn("ignoring cache metadata", "cache", s.name, "error", err)
		s.ignored = err
		return
	}
	s.meta = meta
}

// Returns the cache name.
func (s *Store) Name() string {
	return s.name
}

// Returns the absolute path of the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Returns the error that made [Open] discard an existing metadata record, or
// nil if the record was usable or absent.
func (s *Store) Ignored() error {
	return s.ignored
}

// Returns a copy of the current metadata record, or nil if there is none.
func (s *Store) Metadata() *Metadata {
	return s.meta.clone()
}

// Empties the cache directory and forgets the metadata record.
//
// The directory itself is kept so the regenerating command can write into it.
func (s *Store) Reset() error {
	if err := s.removeContents(); err != nil {
		return err
	}
	s.meta = nil
	return nil
}

// Removes the cache directory entirely.
//
// The store remains usable; its directory is recreated on the next [Store.Reset]
// or [Store.Commit].
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheIO, err)
	}
	s.meta = nil
	return nil
}

// Records that the cache directory now holds the artifact for result.
//
// Must only be called after the regenerating command succeeded. The record is
// replaced atomically, so a crash at any point leaves either the previous
// record or the new one.
func (s *Store) Commit(result fingerprint.Result, identity string) error {
	if result.Fingerprint.IsZero() {
		return fmt.Errorf("%w: zero fingerprint", fingerprint.ErrInvalid)
	}
	if err := os.MkdirAll(s.dir, paths.DefaultDirMode); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheIO, err)
	}

	size, err := dirSize(s.dir)
	if err != nil {
		return err
	}

	meta := &Metadata{
		Version:     metadataVersion,
		Fingerprint: result.Fingerprint,
		Identity:    identity,
		CreatedAt:   s.now().UTC().Truncate(time.Second),
		Size:        size,
		Inputs:      result.Summary(),
	}
	if err := writeMetadata(s.dir, meta); err != nil {
		return err
	}

	s.meta = meta
	slog.Debug("cache committed", "cache", s.name, "fingerprint", meta.Fingerprint.Short(), "size", size)
	return nil
}

// Removes everything inside the cache directory.
func (s *Store) removeContents() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = os.MkdirAll(s.dir, paths.DefaultDirMode)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCacheIO, err)
		}
		return nil
	}

	// Drop the record first so an interrupted reset is never mistaken for a
	// valid cache.
	if err := os.Remove(paths.Metadata(s.dir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrCacheIO, err)
	}

	for _, entry := range entries {
		if entry.Name() == paths.MetadataFile {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			return fmt.Errorf("%w: %w", ErrCacheIO, err)
		}
	}
	return nil
}

// Returns the total size of regular files under dir, excluding the metadata
// record.
func dirSize(dir string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || path == paths.Metadata(dir) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCacheIO, err)
	}
	return size, nil
}

// Cache directory found under a root.
type Entry struct {
	Name     string    // Cache name.
	Dir      string    // Absolute path of the cache directory.
	Metadata *Metadata // Metadata record, or nil if absent or unreadable.
}

// Lists the caches under root, sorted by name.
//
// A root that does not exist yet holds no caches. Directories whose names are
// not valid cache names are skipped.
func List(root string) ([]Entry, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheIO, err)
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrCacheIO, err)
	}

	var entries []Entry
	for _, d := range dirents {
		if !d.IsDir() || !ValidName(d.Name()) {
			continue
		}
		s := &Store{name: d.Name(), dir: filepath.Join(abs, d.Name())}
		s.loadMetadata()
		entries = append(entries, Entry{
			Name:     s.name,
			Dir:      s.dir,
			Metadata: s.meta,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
