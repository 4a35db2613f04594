package gpu

import (
	"fmt"
	"slices"
	"sync"
)

// Static is a backend over a fixed device list. Devices whose index is in
// Broken fail to initialize.
type Static struct {
	List   []Device
	Broken []int
	Whole  bool

	mu       sync.Mutex
	inits    int
	releases int
}

func (s *Static) Name() string { return "static" }

func (s *Static) Devices() ([]Device, error) {
	return slices.Clone(s.List), nil
}

func (s *Static) Init(d Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.Broken, d.Index) {
		return fmt.Errorf("device %d did not respond", d.Index)
	}
	s.inits++
	return nil
}

func (s *Static) Release(Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
}

func (s *Static) WholeModelOffload() bool { return s.Whole }

// Counts returns how many times Init succeeded and Release was called.
func (s *Static) Counts() (inits, releases int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inits, s.releases
}
