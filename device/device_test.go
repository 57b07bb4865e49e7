package device

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBattery_Critical(t *testing.T) {
	tests := []struct {
		name    string
		battery Battery
		want    bool
	}{
		{"full", Battery{Level: 100}, false},
		{"threshold", Battery{Level: BatteryCriticalLevel}, true},
		{"empty charging", Battery{Level: 1, Charging: true}, false},
		{"above threshold", Battery{Level: BatteryCriticalLevel + 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.battery.Critical(); got != tt.want {
				t.Errorf("Critical() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimulator_Storage(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.bin"), make([]byte, 1000), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewSimulator(Config{Root: root, StorageTotal: 10_000})

	st, err := s.Storage()
	if err != nil {
		t.Fatalf("Storage failed: %v", err)
	}
	if st.Free != 9000 {
		t.Errorf("Free = %d, want 9000", st.Free)
	}
	if st.FreePercent() != 90 {
		t.Errorf("FreePercent() = %d, want 90", st.FreePercent())
	}
}

func TestSimulator_RebootAndLock(t *testing.T) {
	s := NewSimulator(Config{Locked: true})
	var seen []RebootReason
	s.OnReboot(func(r RebootReason) { seen = append(seen, r) })

	if err := s.Reboot(RebootUpdate); err != nil {
		t.Fatalf("Reboot failed: %v", err)
	}
	if got := s.Reboots(); len(got) != 1 || got[0] != RebootUpdate {
		t.Errorf("Reboots() = %v, want [update]", got)
	}
	if len(seen) != 1 {
		t.Errorf("callback ran %d times, want 1", len(seen))
	}

	if !s.IsLocked() {
		t.Error("IsLocked() = false, want true")
	}
	s.SetLocked(false)
	if s.IsLocked() {
		t.Error("IsLocked() = true after SetLocked(false)")
	}
}

func TestSimulator_Install(t *testing.T) {
	s := NewSimulator(Config{})
	if err := s.Install(t.Context(), "/tmp/ecoboot.bin"); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if got := s.InstalledImages(); len(got) != 1 || got[0] != "/tmp/ecoboot.bin" {
		t.Errorf("InstalledImages() = %v", got)
	}
}
