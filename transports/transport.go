// Package transports provides the serial channels a mercury.Port runs on.
package transports

import (
	"fmt"
	"io"
	"time"
)

// Drivers selectable through SerialConfig.Driver.
const (
	DriverBugst = "bugst"
	DriverTarm  = "tarm"
)

// Transport mirrors mercury.Transport so this package stays free of the
// protocol core.
type Transport interface {
	io.ReadWriteCloser
	SetReadTimeout(timeout time.Duration) error
	Flush() error
	SetBaudRate(baud int) error
}

// SerialConfig holds configuration for opening a serial port.
type SerialConfig struct {
	// Driver is DriverBugst (default) or DriverTarm.
	Driver   string
	Port     string
	BaudRate int
	// Timeout bounds a single Read. Default is 1ms.
	Timeout time.Duration
}

func (c SerialConfig) withDefaults() SerialConfig {
	if c.BaudRate == 0 {
		c.BaudRate = 1000000
	}
	if c.Timeout == 0 {
		c.Timeout = time.Millisecond
	}
	return c
}

// Open opens a serial port with the configured driver.
func Open(cfg SerialConfig) (Transport, error) {
	var (
		t   Transport
		err error
	)
	switch cfg.Driver {
	case "", DriverBugst:
		t, err = OpenSerial(cfg)
	case DriverTarm:
		t, err = OpenTarm(cfg)
	default:
		return nil, fmt.Errorf("unknown serial driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
