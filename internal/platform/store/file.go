// Package store provides the durable state layer: a single JSON snapshot
// file holding the whole pipeline state. Every mutation is serialized and
// followed by a full atomic rewrite of the snapshot, so a reader never
// observes a partial write. A corrupt snapshot at startup is quarantined
// aside and the store starts from the zero value instead of crashing.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	perr "relay/internal/platform/errors"
	"relay/internal/platform/logger"
)

// File is a snapshot-backed store for a single state value of type T.
// All access goes through View and Mutate; Mutate holds the write lock for
// the apply-then-persist cycle, so concurrent mutations queue rather than
// interleave.
type File[T any] struct {
	path string
	mu   sync.RWMutex
	data T
	log  logger.Logger
}

// Open loads the snapshot at path, or starts empty when the file does not
// exist. An unreadable snapshot is renamed to <path>.bak and replaced by
// the zero value; that is logged loudly but is not an error, since refusing
// to start would be strictly worse than starting fresh.
func Open[T any](path string) (*File[T], error) {
	f := &File[T]{path: path, log: *logger.Named("store")}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeStorageCorrupt, "read state snapshot %s", path)
	}

	if err := json.Unmarshal(raw, &f.data); err != nil {
		backup := path + ".bak"
		f.log.Error().Err(err).Str("path", path).Str("backup", backup).
			Msg("state snapshot corrupt; quarantining and starting empty")
		if rerr := os.Rename(path, backup); rerr != nil {
			return nil, perr.Wrapf(rerr, perr.ErrorCodeStorageCorrupt, "quarantine corrupt snapshot %s", path)
		}
		var zero T
		f.data = zero
	}
	return f, nil
}

// Path returns the snapshot path
func (f *File[T]) Path() string { return f.path }

// View runs fn with read access to the current state. fn must not retain
// references to the state beyond the call.
func (f *File[T]) View(fn func(T)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn(f.data)
}

// Mutate applies fn to the state and persists the full snapshot. An error
// from fn aborts the persist. A failed persist is returned as
// ErrorCodeStorageWrite and is fatal to the operation; it is never
// swallowed, because state diverging from reality is unacceptable.
func (f *File[T]) Mutate(fn func(*T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := fn(&f.data); err != nil {
		return err
	}
	return f.write(f.data)
}

// write performs the atomic snapshot: marshal, temp file in the same dir, rename
func (f *File[T]) write(data T) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStorageWrite, "encode state snapshot")
	}
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp*")
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStorageWrite, "create temp snapshot in %s", dir)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return perr.Wrapf(err, perr.ErrorCodeStorageWrite, "write temp snapshot %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return perr.Wrapf(err, perr.ErrorCodeStorageWrite, "close temp snapshot %s", tmpName)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return perr.Wrapf(err, perr.ErrorCodeStorageWrite, "replace state snapshot %s", f.path)
	}
	return nil
}
