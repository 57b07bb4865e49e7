// Package serial opens the USB CDC virtual serial port as a transport.
package serial

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/pithecene-io/desklink/transport"
)

// DefaultBaudRate is ignored by CDC ACM devices but required by the API.
const DefaultBaudRate = 115200

// Config configures the serial transport.
type Config struct {
	// Port is the device path, e.g. /dev/ttyACM0.
	Port     string
	BaudRate int
	// ReadTimeout makes reads return periodically so that cancellation is
	// noticed without closing the port. Zero blocks.
	ReadTimeout time.Duration
	Stream      transport.StreamConfig
}

// Open opens the port and wraps it in a transport.Stream.
func Open(cfg Config) (*transport.Stream, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port is required")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("reset input buffer: %w", err)
	}
	return transport.NewStream(port, cfg.Stream), nil
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
