package mercury

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Port timing defaults.
const (
	DefaultBaudRate     = 1000000
	DefaultLatencyTimer = 16 * time.Millisecond
	DefaultPollInterval = time.Millisecond

	// slack added to every packet timeout on top of twice the latency timer
	timeoutSlack = 2 * time.Millisecond
)

// PortConfig holds configuration for creating a new Port.
type PortConfig struct {
	// Name identifies the port in log output, e.g. "/dev/ttyUSB0".
	Name string

	// BaudRate is the line speed used for timeout budgets. Default is 1000000.
	BaudRate int

	// LatencyTimer is the USB-serial adapter latency. Default is 16ms.
	LatencyTimer time.Duration

	// PollInterval is the read timeout of one poll in the receive loop.
	// Default is 1ms.
	PollInterval time.Duration

	// Logger receives debug output. Nil discards it.
	Logger logrus.FieldLogger
}

// Port owns one open Transport: it tracks the single in-flight request and
// the timeout budget of that request.
type Port struct {
	transport    Transport
	name         string
	baudRate     int
	latency      time.Duration
	pollInterval time.Duration
	log          *logrus.Entry

	busy atomic.Bool

	// owned by the request holding busy
	start   time.Time
	timeout time.Duration
	now     func() time.Time
}

// NewPort wraps an open transport.
func NewPort(t Transport, cfg PortConfig) (*Port, error) {
	if t == nil {
		return nil, errors.New("transport is required")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.BaudRate < 0 {
		return nil, fmt.Errorf("invalid baud rate %d", cfg.BaudRate)
	}
	if cfg.LatencyTimer == 0 {
		cfg.LatencyTimer = DefaultLatencyTimer
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = discardLogger()
	}

	p := &Port{
		transport:    t,
		name:         cfg.Name,
		baudRate:     cfg.BaudRate,
		latency:      cfg.LatencyTimer,
		pollInterval: cfg.PollInterval,
		log:          logger.WithField("port", cfg.Name),
		now:          time.Now,
	}
	if err := t.SetReadTimeout(p.pollInterval); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	return p, nil
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Name returns the port name given at construction.
func (p *Port) Name() string {
	return p.name
}

// Close closes the underlying transport.
func (p *Port) Close() error {
	return p.transport.Close()
}

// BaudRate returns the current line speed.
func (p *Port) BaudRate() int {
	return p.baudRate
}

// SetBaudRate reprograms the transport and the timing model.
func (p *Port) SetBaudRate(baud int) error {
	if baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", baud)
	}
	if err := p.transport.SetBaudRate(baud); err != nil {
		return fmt.Errorf("failed to set baud rate %d: %w", baud, err)
	}
	p.baudRate = baud
	p.log.WithField("baud", baud).Debug("baud rate changed")
	return nil
}

// InUse reports whether a request is in flight.
func (p *Port) InUse() bool {
	return p.busy.Load()
}

func (p *Port) acquire() bool {
	return p.busy.CompareAndSwap(false, true)
}

func (p *Port) release() {
	p.busy.Store(false)
}

// ByteTransmitTime returns the time n bytes occupy the line: ten bits per
// byte (start, eight data, stop).
func (p *Port) ByteTransmitTime(n int) time.Duration {
	return time.Duration(n) * 10 * time.Second / time.Duration(p.baudRate)
}

// PacketTimeout returns the budget for receiving a response of n bytes.
func (p *Port) PacketTimeout(n int) time.Duration {
	return p.ByteTransmitTime(n) + 2*p.latency + timeoutSlack
}

// SetPacketTimeout marks the current instant and sizes the budget for a
// response of n bytes.
func (p *Port) SetPacketTimeout(n int) {
	p.SetPacketTimeoutDuration(p.PacketTimeout(n))
}

// SetPacketTimeoutDuration marks the current instant and sets an explicit
// budget.
func (p *Port) SetPacketTimeoutDuration(d time.Duration) {
	p.timeout = d
	p.MarkInstant()
}

// Timeout returns the budget set by the last SetPacketTimeout call.
func (p *Port) Timeout() time.Duration {
	return p.timeout
}

// MarkInstant records the reference point for Elapsed.
func (p *Port) MarkInstant() {
	p.start = p.now()
}

// Elapsed returns the time since the last MarkInstant.
func (p *Port) Elapsed() time.Duration {
	return p.now().Sub(p.start)
}

// IsPacketTimeout reports whether the budget has run out.
func (p *Port) IsPacketTimeout() bool {
	return p.Elapsed() > p.timeout
}

// Write sends raw bytes.
func (p *Port) Write(b []byte) (int, error) {
	return p.transport.Write(b)
}

// ReadAvailable returns whatever bytes are buffered, waiting at most one poll
// interval. An empty read is not an error.
func (p *Port) ReadAvailable(buf []byte) (int, error) {
	n, err := p.transport.Read(buf)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}

// ClearInput discards stale input.
func (p *Port) ClearInput() error {
	return p.transport.Flush()
}
