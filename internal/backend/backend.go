// Package backend is the registry through which model implementations are
// discovered by a host. Implementations register in init; the host asks for
// the one that accepts a given file.
package backend

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samcharles93/llmodel/pkg/llmodel"
)

// Build variants.
const (
	CPU      = "cpu"
	LlamaCpp = "llamacpp"
	Auto     = "auto"
)

var ErrNoImplementation = errors.New("no backend implementation accepts this model")

// Implementation describes one registered backend.
type Implementation struct {
	ModelType    string
	BuildVariant string
	MagicMatch   func(path string) bool
	Construct    func() llmodel.LLModel
}

func (i Implementation) String() string {
	return i.ModelType + "/" + i.BuildVariant
}

var (
	mu    sync.RWMutex
	impls []Implementation
)

// Register adds impl. It panics if the model type and variant are already registered.
func Register(impl Implementation) {
	if impl.ModelType == "" || impl.MagicMatch == nil || impl.Construct == nil {
		panic("backend: incomplete implementation " + impl.String())
	}
	mu.Lock()
	defer mu.Unlock()
	for _, existing := range impls {
		if existing.ModelType == impl.ModelType && existing.BuildVariant == impl.BuildVariant {
			panic("backend: implementation " + impl.String() + " already registered")
		}
	}
	impls = append(impls, impl)
}

// Implementations returns the registered implementations in registration order.
func Implementations() []Implementation {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Clone(impls)
}

// IsImplementation reports whether this process carries any backend.
func IsImplementation() bool {
	mu.RLock()
	defer mu.RUnlock()
	return len(impls) > 0
}

// Find returns the first implementation of the requested variant whose
// MagicMatch accepts path.
func Find(path, variant string) (Implementation, error) {
	variant, err := Normalize(variant)
	if err != nil {
		return Implementation{}, err
	}
	for _, impl := range Implementations() {
		if variant != Auto && impl.BuildVariant != variant {
			continue
		}
		if impl.MagicMatch(path) {
			return impl, nil
		}
	}
	return Implementation{}, fmt.Errorf("%s: %w", path, ErrNoImplementation)
}

// Construct finds an implementation for path and returns a new, unloaded model.
func Construct(path, variant string) (llmodel.LLModel, Implementation, error) {
	impl, err := Find(path, variant)
	if err != nil {
		return nil, Implementation{}, err
	}
	return impl.Construct(), impl, nil
}

func Normalize(name string) (string, error) {
	variant := strings.ToLower(strings.TrimSpace(name))
	if variant == "" {
		return Auto, nil
	}
	switch variant {
	case CPU, LlamaCpp, Auto:
		return variant, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected auto, cpu, or llamacpp)", variant)
	}
}
