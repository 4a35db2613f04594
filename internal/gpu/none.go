package gpu

type noneBackend struct{}

// None is the backend of CPU-only builds.
func None() Backend { return noneBackend{} }

func (noneBackend) Name() string { return "none" }

func (noneBackend) Devices() ([]Device, error) { return nil, ErrNoGPUSupport }

func (noneBackend) Init(Device) error { return ErrNoGPUSupport }

func (noneBackend) Release(Device) {}

func (noneBackend) WholeModelOffload() bool { return false }
