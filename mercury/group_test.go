package mercury

import (
	"bytes"
	"errors"
	"testing"
)

func TestGroupBulkRead_Slicing(t *testing.T) {
	tests := []struct {
		proto  Protocol
		params []byte
	}{
		{Protocol1, []byte{0x00, 4, 1, 10, 1, 2, 20}},
		{Protocol2, []byte{1, 10, 0, 4, 0, 2, 20, 0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.proto.String(), func(t *testing.T) {
			h, mock := newTestHandler(t, tt.proto)
			replyEach(mock, statusFrame(t, tt.proto, 1, 0,
				0x00, 0x78, 0x56, 0x34, 0x12, // A: error, 4 bytes
				0x00, 0x9A, // B: error, 1 byte
			))

			g := NewGroupBulkRead(h)
			if !g.AddParam(1, 10, 4) || !g.AddParam(2, 20, 1) {
				t.Fatal("AddParam failed")
			}
			if err := g.TxRxPacket(); err != nil {
				t.Fatalf("TxRxPacket failed: %v", err)
			}

			if pkt := sent(t, tt.proto, mock, 0); !bytes.Equal(pkt.Params, tt.params) {
				t.Errorf("params: got %X, want %X", pkt.Params, tt.params)
			}

			a, err := g.GetData(1, 10, 4)
			if err != nil || a != 0x12345678 {
				t.Errorf("A: got %08X, %v", a, err)
			}
			b, err := g.GetData(2, 20, 1)
			if err != nil || b != 0x9A {
				t.Errorf("B: got %02X, %v", b, err)
			}
			if g.IsAvailable(2, 20, 2) {
				t.Error("B reports bytes beyond its range")
			}
			if !g.IsAvailable(1, 11, 2) {
				t.Error("A sub-range not available")
			}
		})
	}
}

func TestGroupBulkRead_Protocol1FieldWidth(t *testing.T) {
	h, mock := newTestHandler(t, Protocol1)
	g := NewGroupBulkRead(h)
	g.AddParam(1, 300, 2)

	if err := g.TxPacket(); err != CommTxError {
		t.Errorf("TxPacket: got %v, want %v", err, CommTxError)
	}
	if len(mock.Writes) != 0 {
		t.Errorf("wrote %d frames, want 0", len(mock.Writes))
	}
}

func TestGroupSyncRead(t *testing.T) {
	h, mock := newTestHandler(t, Protocol2)
	replyEach(mock, statusFrame(t, Protocol2, 1, 0,
		0x00, 0x01, 0x00,
		0x00, 0x02, 0x00,
		0x20, 0x03, 0x00,
	))

	g := NewGroupSyncRead(h, 132, 2)
	for _, id := range []byte{1, 2, 3} {
		if !g.AddParam(id) {
			t.Fatalf("AddParam(%d) failed", id)
		}
	}
	if g.AddParam(2) {
		t.Error("duplicate id accepted")
	}
	if g.AddParam(BroadcastID) {
		t.Error("broadcast id accepted")
	}

	if err := g.TxRxPacket(); err != nil {
		t.Fatalf("TxRxPacket failed: %v", err)
	}
	pkt := sent(t, Protocol2, mock, 0)
	if pkt.ID != BroadcastID || pkt.Instruction != InstSyncRead {
		t.Errorf("sent: got id %d %v", pkt.ID, pkt.Instruction)
	}
	if want := []byte{132, 0, 2, 0, 1, 2, 3}; !bytes.Equal(pkt.Params, want) {
		t.Errorf("params: got %X, want %X", pkt.Params, want)
	}

	for id := byte(1); id <= 3; id++ {
		v, err := g.GetData(id, 132, 2)
		if err != nil || v != uint32(id) {
			t.Errorf("id %d: got %d, %v", id, v, err)
		}
	}
	if hwErr, ok := g.GetError(3); !ok || hwErr != 0x20 {
		t.Errorf("GetError(3): got %02X, %v", byte(hwErr), ok)
	}
	if _, ok := g.GetError(1); ok {
		t.Error("GetError(1) reports an error")
	}
}

func TestGroupSyncRead_Protocol1(t *testing.T) {
	h, mock := newTestHandler(t, Protocol1)
	g := NewGroupSyncRead(h, 36, 2)
	g.AddParam(1)

	if err := g.TxRxPacket(); err != CommNotAvailable {
		t.Errorf("TxRxPacket: got %v, want %v", err, CommNotAvailable)
	}
	if len(mock.Writes) != 0 {
		t.Errorf("wrote %d frames, want 0", len(mock.Writes))
	}
}

func TestGroupSyncRead_LengthMismatch(t *testing.T) {
	h, mock := newTestHandler(t, Protocol2)
	replyEach(mock, statusFrame(t, Protocol2, 1, 0, 0x00, 0x01, 0x00, 0x00, 0x02))

	g := NewGroupSyncRead(h, 132, 2)
	g.AddParam(1)
	g.AddParam(2)

	if err := g.TxRxPacket(); err != CommRxCorrupt {
		t.Fatalf("TxRxPacket: got %v, want %v", err, CommRxCorrupt)
	}
	if g.IsAvailable(1, 132, 2) {
		t.Error("data available after a corrupt response")
	}
}

func TestGroupRead_GetDataUnavailable(t *testing.T) {
	h, _ := newTestHandler(t, Protocol2)
	g := NewGroupSyncRead(h, 132, 4)
	g.AddParam(1)

	_, err := g.GetData(1, 132, 4)
	if !errors.Is(err, ErrDataNotAvailable) {
		t.Errorf("before any transaction: got %v, want %v", err, ErrDataNotAvailable)
	}
	_, err = g.GetData(9, 132, 4)
	if !errors.Is(err, ErrDataNotAvailable) {
		t.Errorf("unknown id: got %v, want %v", err, ErrDataNotAvailable)
	}
}

func TestGroupRead_Empty(t *testing.T) {
	h, mock := newTestHandler(t, Protocol2)

	if err := NewGroupSyncRead(h, 0, 1).TxRxPacket(); err != CommNotAvailable {
		t.Errorf("sync read: got %v, want %v", err, CommNotAvailable)
	}
	if err := NewGroupBulkRead(h).TxRxPacket(); err != CommNotAvailable {
		t.Errorf("bulk read: got %v, want %v", err, CommNotAvailable)
	}
	if len(mock.Writes) != 0 {
		t.Errorf("wrote %d frames, want 0", len(mock.Writes))
	}
}

func TestGroupSyncWrite(t *testing.T) {
	h, mock := newTestHandler(t, Protocol2)
	g := NewGroupSyncWrite(h, 116, 4)

	if err := g.TxPacket(); err != CommNotAvailable {
		t.Errorf("empty TxPacket: got %v, want %v", err, CommNotAvailable)
	}
	if len(mock.Writes) != 0 {
		t.Fatalf("empty group wrote %d frames", len(mock.Writes))
	}

	if !g.AddParam(1, []byte{1, 0, 0, 0}) {
		t.Fatal("AddParam(1) failed")
	}
	if g.AddParam(1, []byte{9, 9, 9, 9}) {
		t.Error("duplicate id accepted")
	}
	if g.AddParam(2, []byte{1, 2, 3}) {
		t.Error("short data accepted")
	}
	if !g.AddParam(2, []byte{2, 0, 0, 0}) || !g.AddParam(3, []byte{3, 0, 0, 0}) {
		t.Fatal("AddParam failed")
	}
	if !g.ChangeParam(1, []byte{0x10, 0, 0, 0}) {
		t.Error("ChangeParam(1) failed")
	}
	if g.ChangeParam(7, []byte{0, 0, 0, 0}) {
		t.Error("ChangeParam on unknown id succeeded")
	}
	g.RemoveParam(2)

	if !bytes.Equal(g.IDs(), []byte{1, 3}) {
		t.Errorf("IDs: got %v, want [1 3]", g.IDs())
	}
	if err := g.TxPacket(); err != nil {
		t.Fatalf("TxPacket failed: %v", err)
	}

	pkt := sent(t, Protocol2, mock, 0)
	want := []byte{116, 0, 4, 0, 1, 0x10, 0, 0, 0, 3, 3, 0, 0, 0}
	if pkt.ID != BroadcastID || pkt.Instruction != InstSyncWrite || !bytes.Equal(pkt.Params, want) {
		t.Errorf("sent: got id %d %v %X, want %X", pkt.ID, pkt.Instruction, pkt.Params, want)
	}

	g.ClearParam()
	if g.Len() != 0 {
		t.Errorf("Len after ClearParam: got %d", g.Len())
	}
}

func TestGroupSyncWrite_Protocol1(t *testing.T) {
	h, mock := newTestHandler(t, Protocol1)
	g := NewGroupSyncWrite(h, 30, 2)
	g.AddParam(1, []byte{0x00, 0x02})
	g.AddParam(2, []byte{0x00, 0x01})

	if err := g.TxPacket(); err != nil {
		t.Fatalf("TxPacket failed: %v", err)
	}
	want := []byte{30, 2, 1, 0x00, 0x02, 2, 0x00, 0x01}
	if pkt := sent(t, Protocol1, mock, 0); !bytes.Equal(pkt.Params, want) {
		t.Errorf("params: got %X, want %X", pkt.Params, want)
	}
}

func TestGroupBulkWrite(t *testing.T) {
	h, mock := newTestHandler(t, Protocol2)
	g := NewGroupBulkWrite(h)

	if !g.AddParam(1, 64, []byte{1}) || !g.AddParam(2, 116, []byte{0x00, 0x08, 0x00, 0x00}) {
		t.Fatal("AddParam failed")
	}
	if g.AddParam(1, 65, []byte{1}) {
		t.Error("duplicate id accepted")
	}
	if err := g.TxPacket(); err != nil {
		t.Fatalf("TxPacket failed: %v", err)
	}

	want := []byte{
		1, 64, 0, 1, 0, 1,
		2, 116, 0, 4, 0, 0x00, 0x08, 0x00, 0x00,
	}
	pkt := sent(t, Protocol2, mock, 0)
	if pkt.Instruction != InstBulkWrite || !bytes.Equal(pkt.Params, want) {
		t.Errorf("sent: got %v %X, want %X", pkt.Instruction, pkt.Params, want)
	}
}

func TestGroupBulkWrite_Protocol1(t *testing.T) {
	h, mock := newTestHandler(t, Protocol1)
	g := NewGroupBulkWrite(h)
	g.AddParam(1, 24, []byte{1})

	if err := g.TxPacket(); err != CommNotAvailable {
		t.Errorf("TxPacket: got %v, want %v", err, CommNotAvailable)
	}
	if len(mock.Writes) != 0 {
		t.Errorf("wrote %d frames, want 0", len(mock.Writes))
	}
}
