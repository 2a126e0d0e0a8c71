package mercury

import (
	"testing"
	"time"

	"github.com/hipsterbrown/mercury-servo/transports"
)

func newTestHandler(t *testing.T, proto Protocol) (*Handler, *transports.MockTransport) {
	t.Helper()
	mock := &transports.MockTransport{}
	port, err := NewPort(mock, PortConfig{Name: "mock", LatencyTimer: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewPort failed: %v", err)
	}
	h, err := NewHandler(port, proto)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	return h, mock
}

func statusFrame(t *testing.T, proto Protocol, id byte, hwErr HardwareError, data ...byte) []byte {
	t.Helper()
	frame, err := proto.EncodeStatus(id, hwErr, data)
	if err != nil {
		t.Fatalf("EncodeStatus failed: %v", err)
	}
	return frame
}

// replyEach answers the n-th written frame with replies[n].
func replyEach(mock *transports.MockTransport, replies ...[]byte) {
	i := 0
	mock.OnWrite = func(m *transports.MockTransport, p []byte) {
		if i < len(replies) {
			m.Respond(replies[i])
		}
		i++
	}
}

// sent decodes the n-th written frame.
func sent(t *testing.T, proto Protocol, mock *transports.MockTransport, n int) Packet {
	t.Helper()
	if len(mock.Writes) <= n {
		t.Fatalf("frame %d not written, %d writes", n, len(mock.Writes))
	}
	pkt, _, res := proto.TryDecode(mock.Writes[n])
	if res != DecodeFrame {
		t.Fatalf("frame %d: got %v, want %v", n, res, DecodeFrame)
	}
	return pkt
}
