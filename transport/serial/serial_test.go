package serial

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name    string
		port    string
		wantMsg string
	}{
		{"empty port", "", "serial port is required"},
		{"missing device", filepath.Join(t.TempDir(), "ttyACM9"), "open serial port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(Config{Port: tt.port})
			if err == nil {
				_ = s.Close()
				t.Fatal("Open succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}
