//go:build yzma

package gpu

import (
	"strings"

	"github.com/hybridgroup/yzma/pkg/llama"

	"github.com/samcharles93/llmodel/internal/envconfig"
	"github.com/samcharles93/llmodel/internal/llamacpp"
)

func platformBackend() Backend {
	if envconfig.ForceCPU() {
		return None()
	}
	if err := llamacpp.Load(); err != nil {
		return None()
	}
	return llamaBackend{}
}

// llamaBackend exposes the ggml devices of the loaded llama.cpp library.
// ggml does not report heap sizes through this binding, so HeapSize is 0.
type llamaBackend struct{}

func (llamaBackend) Name() string { return "llamacpp" }

func (llamaBackend) Devices() ([]Device, error) {
	if !llama.SupportsGpuOffload() {
		return nil, ErrNoGPUSupport
	}
	count := llama.GGMLBackendDeviceCount()
	devices := make([]Device, 0, count)
	for i := uint64(0); i < count; i++ {
		name := llama.GGMLBackendDeviceName(llama.GGMLBackendDeviceGet(i))
		vendor, ok := gpuVendor(name)
		if !ok {
			continue
		}
		devices = append(devices, Device{
			Index:  int(i),
			Type:   1,
			Name:   name,
			Vendor: vendor,
		})
	}
	return devices, nil
}

func (llamaBackend) Init(d Device) error {
	if !llama.SupportsGpuOffload() {
		return ErrNoGPUSupport
	}
	if uint64(d.Index) >= llama.GGMLBackendDeviceCount() {
		return ErrNoDevice
	}
	return nil
}

func (llamaBackend) Release(Device) {}

func (llamaBackend) WholeModelOffload() bool { return true }

func gpuVendor(name string) (string, bool) {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "cuda"):
		return "nvidia", true
	case strings.Contains(n, "hip"), strings.Contains(n, "rocm"):
		return "amd", true
	case strings.Contains(n, "metal"):
		return "apple", true
	case strings.Contains(n, "vulkan"), strings.Contains(n, "gpu"):
		return "", true
	default:
		return "", false
	}
}
