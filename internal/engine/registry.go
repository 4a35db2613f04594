package engine

import (
	"fmt"
	"slices"
	"sync"
)

// Factory constructs an engine, returning ErrUnavailable if it cannot run here.
type Factory func() (Engine, error)

var (
	mu        sync.Mutex
	factories = map[string]Factory{}
	instances = map[string]Engine{}
)

// Register makes an engine available by name. It panics on duplicates.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := factories[name]; ok {
		panic("engine: engine " + name + " already registered")
	}
	factories[name] = f
}

// Names lists registered engines in sorted order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the named engine, constructing it on first use.
func Lookup(name string) (Engine, error) {
	mu.Lock()
	defer mu.Unlock()
	if e, ok := instances[name]; ok {
		return e, nil
	}
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("engine %q not registered", name)
	}
	e, err := f()
	if err != nil {
		return nil, fmt.Errorf("engine %q: %w", name, err)
	}
	instances[name] = e
	return e, nil
}

// Preference is the order Default tries engines in.
var Preference = []string{"llamacpp", "toy"}

// Default returns the first engine in Preference that can be constructed.
func Default() (Engine, error) {
	var lastErr error
	for _, name := range Preference {
		e, err := Lookup(name)
		if err == nil {
			return e, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrUnavailable
	}
	return nil, lastErr
}

// Resolve maps a user-facing selector ("auto", "" or an engine name) to an engine.
func Resolve(name string) (Engine, error) {
	switch name {
	case "", "auto":
		return Default()
	default:
		return Lookup(name)
	}
}
