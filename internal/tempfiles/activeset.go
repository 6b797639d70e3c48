// Package tempfiles manages the download scratch directory: tracking which
// files belong to in-flight episodes and sweeping everything else once it
// ages out.
package tempfiles

import (
	"path/filepath"
	"sync"
)

// ActiveSet tracks temp files owned by running pipeline work. The janitor
// never removes a registered file regardless of its age.
type ActiveSet struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewActiveSet returns an empty set.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{paths: make(map[string]struct{})}
}

// Register marks a path as in use.
func (a *ActiveSet) Register(path string) {
	if path == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths[filepath.Clean(path)] = struct{}{}
}

// Release removes a path from the set.
func (a *ActiveSet) Release(path string) {
	if path == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.paths, filepath.Clean(path))
}

// Contains reports whether a path is currently in use.
func (a *ActiveSet) Contains(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.paths[filepath.Clean(path)]
	return ok
}

// Snapshot returns the registered paths.
func (a *ActiveSet) Snapshot() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.paths))
	for path := range a.paths {
		out = append(out, path)
	}
	return out
}
