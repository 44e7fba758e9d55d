// Package filesystem wraps every file access behind a swappable afero backend.
package filesystem

import (
	"sync"

	"github.com/spf13/afero"
)

var (
	mu      sync.RWMutex
	backend = afero.Afero{Fs: afero.NewOsFs()}
)

// API returns the active backend.
func API() afero.Afero {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetOsFs restores the native operating system backend.
func SetOsFs() {
	set(afero.NewOsFs())
}

// SetMemMapFs switches to a volatile in-memory backend. Used by tests.
func SetMemMapFs() {
	set(afero.NewMemMapFs())
}

// SetReadOnly wraps the current backend so every write fails.
// Used by tests that exercise persistence failure paths.
func SetReadOnly() {
	set(afero.NewReadOnlyFs(API().Fs))
}

func set(fs afero.Fs) {
	mu.Lock()
	defer mu.Unlock()
	backend = afero.Afero{Fs: fs}
}
