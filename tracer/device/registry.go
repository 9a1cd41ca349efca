package device

import (
	"fmt"
	"sort"
	"sync"
)

// A Backend enumerates and opens devices of one kind.
type Backend interface {
	List() ([]Info, error)
	Open(opts Options) (Device, error)
}

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Backend)
)

// Register makes a backend available by name. It panics if called twice with
// the same name.
func Register(name string, backend Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if backend == nil {
		panic("device: Register backend is nil")
	}
	if _, dup := backends[name]; dup {
		panic("device: Register called twice for backend " + name)
	}
	backends[name] = backend
}

// Backends returns the sorted names of the registered backends.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	list := make([]string, 0, len(backends))
	for name := range backends {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// Open a device using the named backend.
func Open(backend string, opts Options) (Device, error) {
	b, err := lookup(backend)
	if err != nil {
		return nil, err
	}
	return b.Open(opts)
}

// List the devices exposed by the named backend.
func List(backend string) ([]Info, error) {
	b, err := lookup(backend)
	if err != nil {
		return nil, err
	}
	return b.List()
}

func lookup(name string) (Backend, error) {
	backendsMu.RLock()
	b, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownBackend, name, Backends())
	}
	return b, nil
}
