// Package envconfig reads process-wide settings from the environment.
package envconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Var returns an environment variable stripped of leading and trailing quotes or spaces.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// BoolWithDefault returns a getter for a boolean variable. Any non-empty
// value that does not parse as a bool counts as true.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// Uint returns a getter for an unsigned integer with a fallback for unset or invalid values.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

var (
	// LibPath is the directory holding the llama.cpp shared libraries.
	LibPath = String("LLMODEL_LIB")
	// ForceCPU disables GPU device enumeration.
	ForceCPU = Bool("LLMODEL_FORCE_CPU")
	// NumThreads overrides the derived evaluation thread count. Zero means unset.
	NumThreads = Uint("LLMODEL_NUM_THREADS", 0)
)

// Models returns the directory searched for model files.
func Models() string {
	if s := Var("LLMODEL_MODELS_DIR"); s != "" {
		return s
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "llmodel", "models")
}

const verboseKey = "LLMODEL_VERBOSE_LLAMACPP"

var (
	verboseOnce = sync.OnceValue(func() bool {
		return Var(verboseKey) != ""
	})
	verboseOverride atomic.Pointer[bool]
)

// Verbose reports whether engine logging below error level is forwarded.
// The environment is consulted once per process.
func Verbose() bool {
	if v := verboseOverride.Load(); v != nil {
		return *v
	}
	return verboseOnce()
}

// SetVerbose overrides Verbose until the returned func is called.
func SetVerbose(v bool) (restore func()) {
	prev := verboseOverride.Swap(&v)
	return func() {
		verboseOverride.Store(prev)
	}
}

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		verboseKey:            {verboseKey, Verbose(), "Forward engine log output below error level"},
		"LLMODEL_LIB":         {"LLMODEL_LIB", LibPath(), "Directory containing the llama.cpp shared libraries"},
		"LLMODEL_FORCE_CPU":   {"LLMODEL_FORCE_CPU", ForceCPU(), "Never offload to a GPU device"},
		"LLMODEL_NUM_THREADS": {"LLMODEL_NUM_THREADS", NumThreads(), "Evaluation thread count (default: min(4, cores))"},
		"LLMODEL_MODELS_DIR":  {"LLMODEL_MODELS_DIR", Models(), "Directory searched for model files"},
	}
}
