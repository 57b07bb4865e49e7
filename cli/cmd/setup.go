package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/desklink/adapter"
	"github.com/pithecene-io/desklink/adapter/redis"
	"github.com/pithecene-io/desklink/adapter/webhook"
	"github.com/pithecene-io/desklink/cli/config"
	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/lode"
	"github.com/pithecene-io/desklink/log"
	"github.com/pithecene-io/desklink/metrics"
	"github.com/pithecene-io/desklink/settings"
	"github.com/pithecene-io/desklink/transport"
	"github.com/pithecene-io/desklink/transport/serial"
	"github.com/pithecene-io/desklink/types"
)

// Defaults for values neither the config file nor a flag set.
const (
	DefaultRoot     = "device"
	DefaultSerial   = "SN0000000000"
	DefaultVersion  = "1.0.0"
	DefaultBattery  = 100
	settingsFile    = "settings.msgpack"
	stdioPort       = "-"
	transportSerial = "serial"
	transportStdio  = "stdio"
)

// loadConfig reads --config when given, applies flag overrides and fills
// defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyOverrides(c, cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

// applyOverrides copies every flag the user set over the config value.
// Flags a command does not define are never set.
func applyOverrides(c *cli.Context, cfg *config.Config) {
	overrideString(c, "port", &cfg.Transport.Port)
	if c.IsSet("baud") {
		cfg.Transport.Baud = c.Int("baud")
	}
	if c.IsSet("parser-timeout") {
		cfg.Parser.Timeout.Duration = c.Duration("parser-timeout")
	}

	overrideString(c, "root", &cfg.Device.Root)
	overrideString(c, "serial", &cfg.Device.Serial)
	overrideString(c, "os-version", &cfg.Device.Version)
	overrideString(c, "passcode", &cfg.Device.Passcode)
	if c.IsSet("battery") {
		b := c.Int("battery")
		cfg.Device.Battery = &b
	}
	if c.IsSet("locked") {
		cfg.Device.Locked = c.Bool("locked")
	}
	if c.IsSet("onboarded") {
		o := c.Bool("onboarded")
		cfg.Device.Onboarded = &o
	}

	if c.IsSet("allow-downgrade") {
		cfg.Update.AllowDowngrade = c.Bool("allow-downgrade")
	}
	if c.IsSet("export-backups") {
		cfg.Backup.Export = c.Bool("export-backups")
	}

	overrideString(c, "settings-backend", &cfg.Settings.Backend)
	overrideString(c, "settings-path", &cfg.Settings.Path)
	overrideString(c, "settings-url", &cfg.Settings.URL)

	overrideString(c, "journal-backend", &cfg.Journal.Backend)
	overrideString(c, "journal-path", &cfg.Journal.Path)
	overrideString(c, "journal-region", &cfg.Journal.Region)

	overrideString(c, "adapter", &cfg.Adapter.Type)
	overrideString(c, "adapter-url", &cfg.Adapter.URL)
	overrideString(c, "adapter-channel", &cfg.Adapter.Channel)
}

func applyDefaults(cfg *config.Config) {
	d := &cfg.Device
	if d.Root == "" {
		d.Root = DefaultRoot
	}
	if d.Serial == "" {
		d.Serial = DefaultSerial
	}
	if d.Version == "" {
		d.Version = DefaultVersion
	}
	if d.Battery == nil {
		b := DefaultBattery
		d.Battery = &b
	}
	if cfg.Settings.Backend == "" {
		cfg.Settings.Backend = "file"
	}
	if cfg.Settings.Backend == "file" && cfg.Settings.Path == "" {
		cfg.Settings.Path = filepath.Join(d.Root, settingsFile)
	}
}

// openSettings opens the configured settings store.
func openSettings(cfg config.SettingsConfig) (settings.Store, error) {
	switch cfg.Backend {
	case "memory":
		return settings.NewMemory(nil), nil
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create settings directory: %w", err)
		}
		return settings.OpenFile(cfg.Path)
	case "redis":
		return settings.NewRedis(settings.RedisConfig{URL: cfg.URL, Key: cfg.Key})
	default:
		return nil, fmt.Errorf("unknown settings backend: %s (must be memory, file or redis)", cfg.Backend)
	}
}

// seedSettings writes the device flags from the config into store. An
// unset onboarding flag keeps the stored value and defaults to finished.
func seedSettings(ctx context.Context, store settings.Store, cfg config.DeviceConfig) error {
	if cfg.Onboarded != nil {
		if err := settings.SetBool(ctx, store, settings.KeyOnboardingFinished, *cfg.Onboarded); err != nil {
			return err
		}
	} else if _, err := store.Get(ctx, settings.KeyOnboardingFinished); errors.Is(err, settings.ErrNotFound) {
		if err := settings.SetBool(ctx, store, settings.KeyOnboardingFinished, true); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if cfg.Passcode != "" {
		if err := store.Set(ctx, settings.KeyLockPasscode, cfg.Passcode); err != nil {
			return err
		}
	}
	return nil
}

// openJournal opens the configured journal. An empty backend disables it
// and returns nil.
func openJournal(ctx context.Context, cfg config.JournalConfig, serial string, collector *metrics.Collector) (*lode.Journal, error) {
	jcfg := lode.Config{Dataset: cfg.Dataset, Device: serial}
	switch cfg.Backend {
	case "":
		return nil, nil
	case "memory":
		return lode.NewMemory(jcfg, collector)
	case "fs":
		return lode.NewFS(jcfg, cfg.Path, collector)
	case "s3":
		bucket, prefix := lode.ParseS3Path(cfg.Path)
		return lode.NewS3(ctx, jcfg, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		}, collector)
	default:
		return nil, fmt.Errorf("unknown journal backend: %s (must be fs, s3 or memory)", cfg.Backend)
	}
}

// openAdapter builds the configured event adapter, or nil when none is set.
func openAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := -1
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}
	switch cfg.Type {
	case "":
		return nil, nil
	case "webhook":
		if retries < 0 {
			retries = webhook.DefaultRetries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		if retries < 0 {
			retries = redis.DefaultRetries
		}
		return redis.New(redis.Config{
			URL:       cfg.URL,
			Channel:   cfg.Channel,
			Timeout:   cfg.Timeout.Duration,
			Retries:   retries,
			PerDevice: cfg.PerDevice,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", cfg.Type)
	}
}

// newSimulator builds the simulated device from its config.
func newSimulator(cfg config.DeviceConfig) *device.Simulator {
	battery := DefaultBattery
	if cfg.Battery != nil {
		battery = *cfg.Battery
	}
	return device.NewSimulator(device.Config{
		Root:         cfg.Root,
		SerialNumber: cfg.Serial,
		OSVersion:    cfg.Version,
		GitRevision:  cfg.GitRevision,
		CaseColour:   cfg.CaseColour,
		BatteryLevel: battery,
		Charging:     cfg.Charging,
		Locked:       cfg.Locked,
		StorageTotal: cfg.StorageTotal,
	})
}

// sessionLogger returns the session logger, writing to stderr or, when
// path is set, appending to path.
func sessionLogger(session *types.SessionMeta, path string) (*log.Logger, func(), error) {
	logger := log.NewLogger(session)
	if path == "" {
		return logger, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	redirected := logger.WithOutput(f)
	return redirected, func() {
		_ = redirected.Sync()
		_ = f.Close()
	}, nil
}

// stdio joins stdin and stdout into one link.
type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return os.Stdin.Close() }

// openTransport opens the serial port, or stdin/stdout for "-".
func openTransport(cfg config.TransportConfig, logger *log.Logger, collector *metrics.Collector) (*transport.Stream, error) {
	streamCfg := transport.StreamConfig{
		ReadBuffer: cfg.ReadBuffer,
		SendQueue:  cfg.SendQueue,
		Logger:     logger,
		Collector:  collector,
	}
	switch cfg.Port {
	case "":
		return nil, errors.New("transport.port or --port is required (use - for stdin/stdout)")
	case stdioPort:
		return transport.NewStream(stdio{Reader: os.Stdin, Writer: os.Stdout}, streamCfg), nil
	default:
		return serial.Open(serial.Config{
			Port:        cfg.Port,
			BaudRate:    cfg.Baud,
			ReadTimeout: cfg.ReadTimeout.Duration,
			Stream:      streamCfg,
		})
	}
}

// transportName is the metrics dimension for port.
func transportName(port string) string {
	if port == stdioPort {
		return transportStdio
	}
	return transportSerial
}
