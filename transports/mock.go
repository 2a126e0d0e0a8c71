package transports

import (
	"io"
	"sync"
	"time"
)

// MockTransport implements Transport for testing.
type MockTransport struct {
	mu sync.Mutex

	ReadData    []byte
	ReadErr     error
	WriteData   []byte
	Writes      [][]byte
	WriteErr    error
	ShortWrite  int // when > 0, Write reports this many bytes written
	Closed      bool
	ReadTimeout time.Duration
	BaudRate    int
	Flushed     bool

	// ReadFunc allows custom read behavior for complex tests
	ReadFunc func(p []byte) (int, error)

	// OnWrite is called with every written frame; it may queue a response
	// with Respond.
	OnWrite func(m *MockTransport, p []byte)
}

// Respond queues bytes for the next reads.
func (m *MockTransport) Respond(data ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range data {
		m.ReadData = append(m.ReadData, d...)
	}
}

func (m *MockTransport) Read(p []byte) (int, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	if m.WriteErr != nil {
		m.mu.Unlock()
		return 0, m.WriteErr
	}
	frame := append([]byte(nil), p...)
	m.WriteData = append(m.WriteData, frame...)
	m.Writes = append(m.Writes, frame)
	n := len(p)
	if m.ShortWrite > 0 {
		n = m.ShortWrite
	}
	onWrite := m.OnWrite
	m.mu.Unlock()

	if onWrite != nil {
		onWrite(m, frame)
	}
	return n, nil
}

func (m *MockTransport) Close() error {
	m.Closed = true
	return nil
}

func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.ReadTimeout = timeout
	return nil
}

func (m *MockTransport) SetBaudRate(baud int) error {
	m.BaudRate = baud
	return nil
}

func (m *MockTransport) Flush() error {
	m.Flushed = true
	// Don't clear ReadData - tests need to preserve mock response data
	return nil
}
