// Package gpu enumerates compute offload devices and tracks which one the
// process has acquired.
package gpu

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/samcharles93/llmodel/internal/logger"
)

const (
	ReasonInitFailed = "failed to init GPU"
	ReasonNoSupport  = "built without GPU support"
	ReasonBusy       = "GPU device already in use"
)

var (
	ErrNoGPUSupport = errors.New(ReasonNoSupport)
	ErrDeviceBusy   = errors.New(ReasonBusy)
	ErrNoDevice     = errors.New("no matching GPU device")
)

// Device is a snapshot of an enumerable device at query time.
type Device struct {
	Index    int    `json:"index"`
	Type     int    `json:"type"`
	HeapSize uint64 `json:"heap_size"`
	Name     string `json:"name"`
	Vendor   string `json:"vendor"`
}

func (d Device) String() string {
	if d.Vendor == "" {
		return fmt.Sprintf("%d:%s", d.Index, d.Name)
	}
	return fmt.Sprintf("%d:%s (%s)", d.Index, d.Name, d.Vendor)
}

// Backend is a device family the process was built with.
type Backend interface {
	Name() string
	Devices() ([]Device, error)
	Init(d Device) error
	Release(d Device)
	// WholeModelOffload reports whether a non-zero layer count moves the whole model to the device.
	WholeModelOffload() bool
}

// Manager serializes device acquisition. At most one device is held at a time.
type Manager struct {
	mu      sync.Mutex
	backend Backend
	log     logger.Logger
	active  *Device
	inUse   bool
}

func NewManager(b Backend, log logger.Logger) *Manager {
	if b == nil {
		b = None()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Manager{backend: b, log: log.With("component", "gpu", "backend", b.Name())}
}

var defaultManager = sync.OnceValue(func() *Manager {
	return NewManager(platformBackend(), logger.Default())
})

// Default returns the process-wide manager for the backend selected at build time.
func Default() *Manager {
	return defaultManager()
}

func (m *Manager) BackendName() string {
	return m.backend.Name()
}

func (m *Manager) WholeModelOffload() bool {
	return m.backend.WholeModelOffload()
}

// AvailableDevices returns devices with at least memoryRequired bytes of heap.
// A device that reports no heap size is assumed to be large enough.
func (m *Manager) AvailableDevices(memoryRequired uint64) []Device {
	devices, err := m.backend.Devices()
	if err != nil {
		if !errors.Is(err, ErrNoGPUSupport) {
			m.log.Warn("device enumeration failed", "error", err)
		}
		return []Device{}
	}
	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.HeapSize == 0 || d.HeapSize >= memoryRequired {
			out = append(out, d)
		}
	}
	return out
}

// InitDevice acquires d. On failure the reason is suitable for display.
func (m *Manager) InitDevice(d Device) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		if m.active.Index == d.Index && m.active.Name == d.Name {
			return true, ""
		}
		return false, ReasonBusy
	}
	if err := m.backend.Init(d); err != nil {
		if errors.Is(err, ErrNoGPUSupport) {
			return false, ReasonNoSupport
		}
		m.log.Warn("device init failed", "device", d.String(), "error", err)
		return false, ReasonInitFailed
	}
	m.active = &d
	m.inUse = false
	m.log.Debug("device acquired", "device", d.String())
	return true, ""
}

// InitIndex acquires the device enumerated at index.
func (m *Manager) InitIndex(index int) (bool, string) {
	devices, err := m.backend.Devices()
	if err != nil {
		return false, reasonFor(err)
	}
	for _, d := range devices {
		if d.Index == index {
			return m.InitDevice(d)
		}
	}
	return false, ReasonInitFailed
}

// InitName acquires the first device with enough memory whose name or vendor
// matches name. "gpu", "amd", "nvidia" and "intel" select by vendor.
func (m *Manager) InitName(memoryRequired uint64, name string) (bool, string) {
	devices := m.AvailableDevices(memoryRequired)
	if len(devices) == 0 {
		if _, err := m.backend.Devices(); err != nil {
			return false, reasonFor(err)
		}
		return false, ReasonInitFailed
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for _, d := range devices {
		if matchName(d, want) {
			return m.InitDevice(d)
		}
	}
	return false, ReasonInitFailed
}

func matchName(d Device, want string) bool {
	switch want {
	case "", "gpu":
		return true
	case "amd", "nvidia", "intel", "apple":
		return strings.Contains(strings.ToLower(d.Vendor), want)
	default:
		return strings.EqualFold(d.Name, want)
	}
}

// HasDevice reports whether a device is currently acquired.
func (m *Manager) HasDevice() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// UsingDevice reports whether a loaded model is running on the acquired device.
func (m *Manager) UsingDevice() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && m.inUse
}

// Active returns the acquired device, if any.
func (m *Manager) Active() (Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return Device{}, false
	}
	return *m.active, true
}

// MarkInUse records that a model has been placed on the acquired device.
func (m *Manager) MarkInUse(inUse bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		m.inUse = inUse
	}
}

// Release frees the acquired device. It is a no-op when none is held.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return
	}
	m.backend.Release(*m.active)
	m.log.Debug("device released", "device", m.active.String())
	m.active = nil
	m.inUse = false
}

func reasonFor(err error) string {
	if errors.Is(err, ErrNoGPUSupport) {
		return ReasonNoSupport
	}
	return ReasonInitFailed
}
