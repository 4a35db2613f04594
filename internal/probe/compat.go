package probe

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/llmodel/internal/gguf"
	"github.com/samcharles93/llmodel/internal/logger"
)

var (
	// SupportedArchitectures are handled by the llama backend.
	SupportedArchitectures = []string{"llama", "starcoder", "falcon", "mpt"}
	// DeferredArchitectures are valid but served by other backends.
	DeferredArchitectures = []string{"gptj", "bert"}
)

var ErrUnsupportedVersion = errors.New("probe: unsupported gguf version")

// Compatibility is the outcome of inspecting a GGUF file.
type Compatibility struct {
	Version      uint32
	Architecture string
	Supported    bool
	Deferred     bool
}

// Inspect parses the metadata of path and classifies its architecture.
// A missing or non-string architecture key is returned as gguf.ErrMissingArchitecture.
func Inspect(path string) (Compatibility, error) {
	f, err := gguf.OpenMetadata(path)
	if err != nil {
		return Compatibility{}, err
	}
	c := Compatibility{Version: f.Header.Version}
	if c.Version > gguf.MaxVersion {
		return c, fmt.Errorf("%w: %d", ErrUnsupportedVersion, c.Version)
	}
	arch, err := f.Architecture()
	if err != nil {
		return c, err
	}
	c.Architecture = arch
	c.Supported = slices.Contains(SupportedArchitectures, arch)
	c.Deferred = slices.Contains(DeferredArchitectures, arch)
	return c, nil
}

// MagicMatch reports whether the llama backend can serve path. A false
// result is a dispatch signal and is only noted at debug level.
func MagicMatch(path string) bool {
	return MagicMatchContext(context.Background(), path)
}

func MagicMatchContext(ctx context.Context, path string) bool {
	log := logger.FromContext(ctx).With("path", path)
	c, err := Inspect(path)
	switch {
	case err != nil:
		log.Debug("magic_match: not a match", "error", err)
		return false
	case c.Supported:
		return true
	case c.Deferred:
		return false
	default:
		log.Debug("magic_match: unsupported model architecture", "arch", c.Architecture)
		return false
	}
}
