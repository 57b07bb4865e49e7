package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `transport:
  port: /dev/ttyACM0
  baud: 115200
  read_timeout: 200ms
  read_buffer: 8192
  send_queue: 32

parser:
  timeout: 1s
  max_payload: 1048576

device:
  root: ./phone
  serial: SN0001
  version: 1.2.0
  battery: 75
  locked: true
  onboarded: true
  passcode: "1234"

update:
  allow_downgrade: true

backup:
  export: true

settings:
  backend: file
  path: ./settings.msgpack

journal:
  dataset: desklink
  backend: s3
  path: my-bucket/prefix
  region: eu-west-1
  endpoint: https://minio.example.com
  s3_path_style: true

adapter:
  type: webhook
  url: https://hooks.example.com/desklink
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "transport.port", cfg.Transport.Port, "/dev/ttyACM0")
	if cfg.Transport.Baud != 115200 || cfg.Transport.ReadTimeout.Duration != 200*time.Millisecond {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Transport.ReadBuffer != 8192 || cfg.Transport.SendQueue != 32 {
		t.Errorf("transport buffers = %+v", cfg.Transport)
	}
	if cfg.Parser.Timeout.Duration != time.Second || cfg.Parser.MaxPayload != 1<<20 {
		t.Errorf("parser = %+v", cfg.Parser)
	}

	assertEqual(t, "device.serial", cfg.Device.Serial, "SN0001")
	assertEqual(t, "device.version", cfg.Device.Version, "1.2.0")
	assertEqual(t, "device.passcode", cfg.Device.Passcode, "1234")
	if cfg.Device.Battery == nil || *cfg.Device.Battery != 75 {
		t.Errorf("device.battery = %v, want 75", cfg.Device.Battery)
	}
	if !cfg.Device.Locked || cfg.Device.Onboarded == nil || !*cfg.Device.Onboarded {
		t.Errorf("device flags = %+v", cfg.Device)
	}

	if !cfg.Update.AllowDowngrade {
		t.Error("expected update.allow_downgrade=true")
	}
	if !cfg.Backup.Export {
		t.Error("expected backup.export=true")
	}

	assertEqual(t, "settings.backend", cfg.Settings.Backend, "file")
	assertEqual(t, "settings.path", cfg.Settings.Path, "./settings.msgpack")

	assertEqual(t, "journal.backend", cfg.Journal.Backend, "s3")
	assertEqual(t, "journal.path", cfg.Journal.Path, "my-bucket/prefix")
	assertEqual(t, "journal.region", cfg.Journal.Region, "eu-west-1")
	if !cfg.Journal.S3PathStyle {
		t.Error("expected journal.s3_path_style=true")
	}

	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/desklink")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("adapter.timeout = %v, want 10s", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Error("expected adapter.retries=3")
	}
	if cfg.Adapter.Headers["Authorization"] != "Bearer token123" {
		t.Error("expected Authorization header")
	}
}

func TestLoad_EmptyConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "whitespace", content: "  \n\n  \n"},
		{name: "comments", content: "# desklink config\n# nothing set\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, tt.content))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Transport.Port != "" || cfg.Settings.Backend != "" {
				t.Errorf("cfg = %+v, want zero", cfg)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "invalid yaml", content: "{{invalid yaml", want: "invalid YAML"},
		{name: "unknown key", content: "bogus_key: 1\n", want: "bogus_key"},
		{name: "unknown nested key", content: "journal:\n  backend: fs\n  path: ./j\n  unknown_field: bad\n", want: "unknown_field"},
		{name: "bad duration", content: "parser:\n  timeout: soon\n", want: "invalid duration"},
		{name: "settings backend", content: "settings:\n  backend: etcd\n", want: "settings.backend"},
		{name: "file settings without path", content: "settings:\n  backend: file\n", want: "settings.path"},
		{name: "redis settings without url", content: "settings:\n  backend: redis\n", want: "settings.url"},
		{name: "journal backend", content: "journal:\n  backend: gcs\n", want: "journal.backend"},
		{name: "journal without path", content: "journal:\n  backend: fs\n", want: "journal.path"},
		{name: "adapter type", content: "adapter:\n  type: kafka\n", want: "adapter.type"},
		{name: "negative retries", content: "adapter:\n  type: redis\n  retries: -1\n", want: "adapter.retries"},
		{name: "battery range", content: "device:\n  battery: 101\n", want: "device.battery"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.content))
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/desklink.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("DESKLINK_TEST_PORT", "/dev/ttyUSB3")

	cfg, err := Load(writeTemp(t, "transport:\n  port: ${DESKLINK_TEST_PORT}\n  baud: ${DESKLINK_TEST_BAUD:-9600}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "transport.port", cfg.Transport.Port, "/dev/ttyUSB3")
	if cfg.Transport.Baud != 9600 {
		t.Errorf("transport.baud = %d, want 9600", cfg.Transport.Baud)
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	cfg, err := Load(writeTemp(t, "adapter:\n  type: webhook\n  url: http://x\n  retries: 0\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 0 {
		t.Errorf("retries = %v, want explicit 0", cfg.Adapter.Retries)
	}

	cfg, err = Load(writeTemp(t, "adapter:\n  type: webhook\n  url: http://x\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("retries = %v, want nil", *cfg.Adapter.Retries)
	}
}

func TestLoad_RedisAdapter(t *testing.T) {
	cfg, err := Load(writeTemp(t, "adapter:\n  type: redis\n  url: redis://localhost:6379/0\n  channel: phones\n  per_device: true\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "adapter.channel", cfg.Adapter.Channel, "phones")
	if !cfg.Adapter.PerDevice {
		t.Error("expected adapter.per_device=true")
	}
}

func TestDuration_EmptyIsZero(t *testing.T) {
	cfg, err := Load(writeTemp(t, "parser:\n  timeout: \"\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Parser.Timeout.Duration != 0 {
		t.Errorf("timeout = %v, want 0", cfg.Parser.Timeout.Duration)
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "desklink.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
