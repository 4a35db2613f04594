//go:build yzma

package llamacpp

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"

	"github.com/samcharles93/llmodel/internal/envconfig"
)

var load = sync.OnceValue(func() error {
	libPath := envconfig.LibPath()
	if libPath == "" {
		return fmt.Errorf("LLMODEL_LIB is not set")
	}
	if runtime.GOOS == "windows" {
		if path := os.Getenv("PATH"); !strings.Contains(path, libPath) {
			os.Setenv("PATH", libPath+";"+path)
		}
	}
	if err := llama.Load(libPath); err != nil {
		return fmt.Errorf("load llama.cpp libraries from %s: %w", libPath, err)
	}
	llama.Init()
	return nil
})

// Load loads and initializes the libraries once per process.
func Load() error {
	return load()
}
