package llamamodel

import (
	"github.com/samcharles93/llmodel/internal/gpu"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

func (m *Model) AvailableGPUDevices(memoryRequired uint64) []llmodel.GPUDevice {
	devices := m.gpu.AvailableDevices(memoryRequired)
	out := make([]llmodel.GPUDevice, len(devices))
	for i, d := range devices {
		out[i] = llmodel.GPUDevice(d)
	}
	return out
}

// InitializeGPUDevice must be called before LoadModel for the model to offload.
func (m *Model) InitializeGPUDevice(d llmodel.GPUDevice) (bool, string) {
	ok, reason := m.gpu.InitDevice(gpu.Device(d))
	m.ownsGPU = m.ownsGPU || ok
	return ok, reason
}

func (m *Model) InitializeGPUDeviceByIndex(index int) (bool, string) {
	ok, reason := m.gpu.InitIndex(index)
	if !ok {
		m.log.Debug("gpu init failed", "index", index, "reason", reason)
	}
	m.ownsGPU = m.ownsGPU || ok
	return ok, reason
}

func (m *Model) InitializeGPUDeviceByName(memoryRequired uint64, name string) (bool, string) {
	ok, reason := m.gpu.InitName(memoryRequired, name)
	if !ok {
		m.log.Debug("gpu init failed", "name", name, "reason", reason)
	}
	m.ownsGPU = m.ownsGPU || ok
	return ok, reason
}

func (m *Model) HasGPUDevice() bool {
	return m.gpu.HasDevice()
}

// UsingGPUDevice reports whether the loaded model was offloaded.
func (m *Model) UsingGPUDevice() bool {
	return m.state == StateLoaded && m.modelParams.NGPULayers > 0 && m.gpu.UsingDevice()
}
