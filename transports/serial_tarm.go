package transports

import (
	"errors"
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// TarmTransport implements Transport on github.com/tarm/serial. That library
// fixes baud rate and read timeout at open time, so changing either reopens
// the port. On POSIX systems its read timeout has 100ms granularity, which
// delays timeout detection but not reception.
type TarmTransport struct {
	port *serial.Port
	cfg  serial.Config
}

// OpenTarm opens a serial port through the tarm driver.
func OpenTarm(cfg SerialConfig) (*TarmTransport, error) {
	if cfg.Port == "" {
		return nil, errors.New("serial port path is required")
	}
	cfg = cfg.withDefaults()

	t := &TarmTransport{cfg: serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.Timeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}}
	if err := t.open(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TarmTransport) open() error {
	port, err := serial.OpenPort(&t.cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", t.cfg.Name, err)
	}
	t.port = port
	return nil
}

func (t *TarmTransport) reopen() error {
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", t.cfg.Name, err)
	}
	return t.open()
}

func (t *TarmTransport) Read(p []byte) (int, error) {
	return t.port.Read(p)
}

func (t *TarmTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *TarmTransport) Close() error {
	return t.port.Close()
}

func (t *TarmTransport) SetReadTimeout(timeout time.Duration) error {
	if timeout == t.cfg.ReadTimeout {
		return nil
	}
	t.cfg.ReadTimeout = timeout
	return t.reopen()
}

func (t *TarmTransport) SetBaudRate(baud int) error {
	if baud == t.cfg.Baud {
		return nil
	}
	t.cfg.Baud = baud
	return t.reopen()
}

func (t *TarmTransport) Flush() error {
	return t.port.Flush()
}

// PortName returns the serial port name.
func (t *TarmTransport) PortName() string {
	return t.cfg.Name
}
