package mercury

import (
	"io"
	"time"
)

// Transport is the raw serial channel underneath a Port. Implementations live
// in the transports package; tests use transports.MockTransport.
//
// Read must not block longer than the configured read timeout and may return
// (0, nil) or (0, io.EOF) when nothing is buffered.
type Transport interface {
	io.ReadWriteCloser

	// SetReadTimeout sets how long a single Read may wait for the first byte.
	SetReadTimeout(timeout time.Duration) error

	// Flush discards any buffered input data.
	Flush() error

	// SetBaudRate reprograms the line speed.
	SetBaudRate(baud int) error
}
