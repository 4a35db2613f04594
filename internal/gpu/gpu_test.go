package gpu

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testDevices() []Device {
	return []Device{
		{Index: 0, Type: 2, HeapSize: 8 << 30, Name: "Radeon RX 7600", Vendor: "AMD"},
		{Index: 1, Type: 1, HeapSize: 2 << 30, Name: "Intel Arc A310", Vendor: "Intel"},
		{Index: 2, Type: 1, Name: "lavapipe", Vendor: "Mesa"},
	}
}

func TestNoneBackend(t *testing.T) {
	m := NewManager(None(), nil)

	devices := m.AvailableDevices(0)
	if devices == nil || len(devices) != 0 {
		t.Fatalf("AvailableDevices = %#v, want empty non-nil slice", devices)
	}

	ok, reason := m.InitDevice(Device{Index: 0})
	if ok || reason != ReasonNoSupport {
		t.Fatalf("InitDevice = %v, %q", ok, reason)
	}
	if ok, reason := m.InitIndex(0); ok || reason != ReasonNoSupport {
		t.Fatalf("InitIndex = %v, %q", ok, reason)
	}
	if ok, reason := m.InitName(0, "gpu"); ok || reason != ReasonNoSupport {
		t.Fatalf("InitName = %v, %q", ok, reason)
	}
	if m.HasDevice() || m.UsingDevice() {
		t.Fatal("CPU-only manager reports a device")
	}
}

func TestAvailableDevicesFiltersByMemory(t *testing.T) {
	m := NewManager(&Static{List: testDevices()}, nil)

	got := m.AvailableDevices(4 << 30)
	want := []Device{testDevices()[0], testDevices()[2]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("AvailableDevices mismatch (-want +got):\n%s", diff)
	}
}

func TestInitAndRelease(t *testing.T) {
	s := &Static{List: testDevices(), Whole: true}
	m := NewManager(s, nil)

	if ok, reason := m.InitIndex(1); !ok {
		t.Fatalf("InitIndex(1) failed: %s", reason)
	}
	if !m.HasDevice() || m.UsingDevice() {
		t.Fatal("expected device held but not in use")
	}
	if d, _ := m.Active(); d.Index != 1 {
		t.Fatalf("Active = %+v", d)
	}

	if ok, _ := m.InitIndex(1); !ok {
		t.Fatal("re-acquiring the held device should succeed")
	}
	if ok, reason := m.InitIndex(0); ok || reason != ReasonBusy {
		t.Fatalf("acquiring a second device = %v, %q", ok, reason)
	}

	m.MarkInUse(true)
	if !m.UsingDevice() {
		t.Fatal("UsingDevice should be true after MarkInUse")
	}

	m.Release()
	m.Release()
	if m.HasDevice() || m.UsingDevice() {
		t.Fatal("device still held after Release")
	}
	if inits, releases := s.Counts(); inits != 1 || releases != 1 {
		t.Fatalf("inits=%d releases=%d, want 1/1", inits, releases)
	}
}

func TestInitFailures(t *testing.T) {
	m := NewManager(&Static{List: testDevices(), Broken: []int{0}}, nil)

	if ok, reason := m.InitDevice(testDevices()[0]); ok || reason != ReasonInitFailed {
		t.Fatalf("broken device = %v, %q", ok, reason)
	}
	if ok, reason := m.InitIndex(9); ok || reason != ReasonInitFailed {
		t.Fatalf("unknown index = %v, %q", ok, reason)
	}
	if m.HasDevice() {
		t.Fatal("failed init left a device held")
	}
}

func TestInitName(t *testing.T) {
	tests := []struct {
		name    string
		mem     uint64
		want    int
		wantErr bool
	}{
		{"gpu", 0, 0, false},
		{"intel", 0, 1, false},
		{"lavapipe", 0, 2, false},
		{"Intel Arc A310", 0, 1, false},
		{"intel", 4 << 30, 0, true},
		{"nvidia", 0, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager(&Static{List: testDevices()}, nil)
			ok, _ := m.InitName(tc.mem, tc.name)
			if tc.wantErr {
				if ok {
					t.Fatal("expected failure")
				}
				return
			}
			if !ok {
				t.Fatal("expected success")
			}
			if d, _ := m.Active(); d.Index != tc.want {
				t.Fatalf("acquired %+v, want index %d", d, tc.want)
			}
		})
	}
}
