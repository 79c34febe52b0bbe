package observability

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrUnknownObserver is returned by GetObserver for unregistered names.
var ErrUnknownObserver = errors.New("unknown observer")

var (
	registry = map[string]Observer{
		"noop":  NoOpObserver{},
		"slog":  NewSlogObserver(nil),
		"trace": TraceObserver{},
	}
	registryMu sync.RWMutex
)

// GetObserver resolves the observer named in configuration. Pre-registered
// names are "noop", "slog" (slog.Default at emit time), and "trace" (span
// events on the context's span).
func GetObserver(name string) (Observer, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	obs, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownObserver, name, observerNamesLocked())
	}
	return obs, nil
}

// RegisterObserver makes observer resolvable by name, replacing any previous
// registration. Applications register composite observers, such as a
// MultiObserver over slog and metrics, before building a kernel from config.
func RegisterObserver(name string, observer Observer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = observer
}

// ObserverNames lists registered names in lexical order.
func ObserverNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return observerNamesLocked()
}

func observerNamesLocked() []string {
	return slices.Sorted(maps.Keys(registry))
}
