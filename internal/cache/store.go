// Package cache implements the local key-value store used by the
// synchronization controller. Entries survive process restarts and are
// scoped by a versioned key prefix so that layout changes between releases
// never feed stale shapes into consumers.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// keyPrefix scopes all entries written by this release line.
	keyPrefix = "construo."

	// Version is the current cache layout version. Bump it whenever the
	// persisted entry shapes change; ClearStaleVersions reclaims entries
	// written under earlier versions.
	Version = "v2"
)

// Aggregate bookkeeping keys shared across the whole cached payload.
const (
	KeyLastFetch = "lastFetch"
	KeyDataHash  = "dataHash"
)

// ErrMiss is returned by Read when a key is absent or its stored entry is
// corrupt. Corrupt entries are indistinguishable from missing ones on
// purpose: they must never crash the caller.
var ErrMiss = errors.New("cache: miss")

// Store is a file-backed key-value store. Writes are whole-value overwrites
// under distinct keys, so no cross-key locking is required.
type Store struct {
	dir     string
	version string
	log     *slog.Logger

	// writeFile is swappable so tests can simulate storage exhaustion.
	writeFile func(name string, data []byte, perm os.FileMode) error
}

// New creates a Store rooted at dir. The directory is created lazily on the
// first write; a missing or unwritable directory degrades every Read to a
// miss rather than failing the caller.
func New(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		dir:       dir,
		version:   Version,
		log:       log,
		writeFile: os.WriteFile,
	}
}

func (s *Store) filename(key string) string {
	return filepath.Join(s.dir, keyPrefix+s.version+"."+key+".json")
}

// Save serializes value under key. Writes are best-effort: on a write
// failure the store clears every entry under the current version and retries
// once, and if the retry also fails the error is reported to the caller,
// who is expected to log and continue.
func (s *Store) Save(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}

	if err := s.write(key, data); err == nil {
		return nil
	}

	// Storage may be exhausted; reclaim our own entries and retry once.
	s.log.Warn("cache write failed, clearing current version and retrying", "key", key)
	if err := s.ClearAll(); err != nil {
		s.log.Warn("cache clear during write recovery failed", "error", err)
	}
	if err := s.write(key, data); err != nil {
		return fmt.Errorf("cache: save %s: %w", key, err)
	}
	return nil
}

func (s *Store) write(key string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return err
	}
	// Temp-file then rename keeps a concurrent reader from observing a
	// partially written entry.
	path := s.filename(key)
	tmp := path + ".tmp"
	if err := s.writeFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Read deserializes the entry under key into out. It returns ErrMiss when
// the key is absent or the stored entry fails to parse.
func (s *Store) Read(key string, out any) error {
	data, err := os.ReadFile(s.filename(key))
	if err != nil {
		return ErrMiss
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.log.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return ErrMiss
	}
	return nil
}

// Has reports whether an entry exists under key without parsing it.
func (s *Store) Has(key string) bool {
	_, err := os.Stat(s.filename(key))
	return err == nil
}

// ClearAll removes every entry under the current version prefix. Used on
// forced refresh and when caching has been administratively disabled.
func (s *Store) ClearAll() error {
	return s.removeMatching(func(name string) bool {
		return strings.HasPrefix(name, keyPrefix+s.version+".")
	})
}

// ClearStaleVersions removes entries written under previous cache versions
// to reclaim space. It runs once per process lifetime at startup.
func (s *Store) ClearStaleVersions() error {
	return s.removeMatching(func(name string) bool {
		return strings.HasPrefix(name, keyPrefix) &&
			!strings.HasPrefix(name, keyPrefix+s.version+".")
	})
}

func (s *Store) removeMatching(match func(name string) bool) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cache: list entries: %w", err)
	}
	var firstErr error
	for _, e := range entries {
		if e.IsDir() || !match(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cache: remove %s: %w", e.Name(), err)
		}
	}
	return firstErr
}
