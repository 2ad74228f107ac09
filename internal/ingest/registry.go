package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Registry records which documents have been ingested and under which content
// hash. It is the source of truth for change detection: a document whose
// current hash equals its recorded hash is skipped.
//
// The registry is a flat JSON object mapping the document's path (relative to
// the documents root, forward slashes) to its sha256 content hash. Writes are
// atomic (temp file + rename). An OS-level file lock, held for the registry's
// whole lifetime, enforces a single writer: without it, a CLI ingest running
// against a live service would read the file once, mutate its own in-memory
// copy, and clobber the other process's entries on save.
//
// Registry is safe for concurrent use by multiple goroutines.
type Registry struct {
	path string
	lock *flock.Flock

	mu      sync.RWMutex
	entries map[string]string
}

// OpenRegistry loads the registry at path, creating an empty one when the
// file does not exist yet. It fails when another process already holds the
// registry; the caller must Close the registry to release it.
func OpenRegistry(path string) (*Registry, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking registry %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("registry %s is held by another process", path)
	}

	r := &Registry{path: path, lock: lock, entries: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r, nil
		}
		_ = lock.Unlock()
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}
	if len(data) == 0 {
		return r, nil
	}

	if err := json.Unmarshal(data, &r.entries); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}
	return r, nil
}

// Close releases the registry's file lock.
func (r *Registry) Close() error {
	if err := r.lock.Unlock(); err != nil {
		return fmt.Errorf("unlocking registry %s: %w", r.path, err)
	}
	return nil
}

// Hash returns the recorded content hash for a document path.
func (r *Registry) Hash(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[path]
	return h, ok
}

// Snapshot returns a copy of all recorded path to hash entries.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Len reports the number of recorded documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Set records a document's content hash and persists the registry.
func (r *Registry) Set(path, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[path] = hash
	return r.save()
}

// Remove deletes a document's entry and persists the registry. Removing an
// unknown path is a no-op.
func (r *Registry) Remove(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[path]; !ok {
		return nil
	}
	delete(r.entries, path)
	return r.save()
}

// save writes the registry atomically. Callers must hold mu; the file lock is
// held since OpenRegistry.
func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("creating registry temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing registry temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing registry temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing registry temp file: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replacing registry %s: %w", r.path, err)
	}
	return nil
}
