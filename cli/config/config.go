package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents a desklink.yaml configuration file.
// All values are optional and act as defaults for desklink flags.
// CLI flags always override config values.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Parser    ParserConfig    `yaml:"parser"`
	Device    DeviceConfig    `yaml:"device"`
	Update    UpdateConfig    `yaml:"update"`
	Backup    BackupConfig    `yaml:"backup"`
	Settings  SettingsConfig  `yaml:"settings"`
	Journal   JournalConfig   `yaml:"journal"`
	Adapter   AdapterConfig   `yaml:"adapter"`
}

// TransportConfig selects the link to the desktop tool.
type TransportConfig struct {
	// Port is a serial device path. "-" serves stdin/stdout.
	Port        string   `yaml:"port"`
	Baud        int      `yaml:"baud"`
	ReadTimeout Duration `yaml:"read_timeout"`
	ReadBuffer  int      `yaml:"read_buffer"`
	SendQueue   int      `yaml:"send_queue"`
}

// ParserConfig tunes the frame parser.
type ParserConfig struct {
	Timeout    Duration `yaml:"timeout"`
	MaxPayload int      `yaml:"max_payload"`
}

// DeviceConfig seeds the simulated device.
type DeviceConfig struct {
	Root         string `yaml:"root"`
	Serial       string `yaml:"serial"`
	Version      string `yaml:"version"`
	GitRevision  string `yaml:"git_revision"`
	CaseColour   string `yaml:"case_colour"`
	Battery      *int   `yaml:"battery,omitempty"`
	Charging     bool   `yaml:"charging"`
	Locked       bool   `yaml:"locked"`
	Onboarded    *bool  `yaml:"onboarded,omitempty"`
	Passcode     string `yaml:"passcode,omitempty"`
	StorageTotal uint64 `yaml:"storage_total"`
}

// UpdateConfig holds update engine policy.
type UpdateConfig struct {
	AllowDowngrade bool `yaml:"allow_downgrade"`
}

// BackupConfig holds backup policy.
type BackupConfig struct {
	// Export copies every archive into the journal store.
	Export bool `yaml:"export"`
}

// SettingsConfig selects the settings backend.
type SettingsConfig struct {
	// Backend is memory, file or redis.
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	URL     string `yaml:"url"`
	// Key is the redis hash holding the settings.
	Key string `yaml:"key"`
}

// JournalConfig selects the journal store.
type JournalConfig struct {
	Dataset string `yaml:"dataset"`
	// Backend is fs, s3 or memory. Empty disables the journal.
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type      string            `yaml:"type"`
	URL       string            `yaml:"url"`
	Channel   string            `yaml:"channel,omitempty"`
	PerDevice bool              `yaml:"per_device,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Timeout   Duration          `yaml:"timeout,omitempty"`
	Retries   *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	var errs []error
	switch c.Settings.Backend {
	case "", "memory", "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("settings.backend: unknown backend %q", c.Settings.Backend))
	}
	if c.Settings.Backend == "file" && c.Settings.Path == "" {
		errs = append(errs, errors.New("settings.path is required for the file backend"))
	}
	if c.Settings.Backend == "redis" && c.Settings.URL == "" {
		errs = append(errs, errors.New("settings.url is required for the redis backend"))
	}
	switch c.Journal.Backend {
	case "", "fs", "s3", "memory":
	default:
		errs = append(errs, fmt.Errorf("journal.backend: unknown backend %q", c.Journal.Backend))
	}
	if (c.Journal.Backend == "fs" || c.Journal.Backend == "s3") && c.Journal.Path == "" {
		errs = append(errs, fmt.Errorf("journal.path is required for the %s backend", c.Journal.Backend))
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		errs = append(errs, fmt.Errorf("adapter.type: unknown adapter %q", c.Adapter.Type))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}
	if b := c.Device.Battery; b != nil && (*b < 0 || *b > 100) {
		errs = append(errs, fmt.Errorf("device.battery must be 0-100, got %d", *b))
	}
	if c.Parser.MaxPayload < 0 {
		errs = append(errs, fmt.Errorf("parser.max_payload must be >= 0, got %d", c.Parser.MaxPayload))
	}
	return errors.Join(errs...)
}
