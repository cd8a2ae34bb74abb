package score

import (
	"fmt"
	"sort"
	"sync"
)

var (
	strategies   = make(map[string]func() Strategy)
	strategiesMu sync.RWMutex
)

// RegisterStrategy registers a strategy constructor under its name.
// It panics on an empty name or a duplicate registration. Intended to
// be called from init() functions.
func RegisterStrategy(name string, newFn func() Strategy) {
	if name == "" {
		panic("score: strategy name must not be empty")
	}
	if newFn == nil {
		panic(fmt.Sprintf("score: strategy %s: constructor must not be nil", name))
	}

	strategiesMu.Lock()
	defer strategiesMu.Unlock()

	if _, exists := strategies[name]; exists {
		panic(fmt.Sprintf("score: strategy already registered: %s", name))
	}
	strategies[name] = newFn
}

// NewStrategy instantiates the strategy registered under name.
func NewStrategy(name string) (Strategy, error) {
	strategiesMu.RLock()
	newFn, ok := strategies[name]
	strategiesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("score: unknown strategy %q", name)
	}
	return newFn(), nil
}

// Resolve instantiates every named strategy in order.
func Resolve(names []string) ([]Strategy, error) {
	resolved := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, err := NewStrategy(name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, s)
	}
	return resolved, nil
}

// Names returns all registered strategy names, sorted.
func Names() []string {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()

	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
