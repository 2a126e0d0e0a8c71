package mercury

import (
	"bytes"
	"testing"
)

func TestEncode_Protocol1(t *testing.T) {
	tests := []struct {
		name   string
		id     byte
		inst   Instruction
		params []byte
		want   []byte
	}{
		{"ping", 0x01, InstPing, nil, []byte{0xFF, 0xFF, 0x01, 0x02, 0x01, 0xFB}},
		{"read", 0x01, InstRead, []byte{0x38, 0x02}, []byte{0xFF, 0xFF, 0x01, 0x04, 0x02, 0x38, 0x02, 0xBE}},
		{"broadcast write", BroadcastID, InstWrite, []byte{0x05, 0x01}, []byte{0xFF, 0xFF, 0xFE, 0x04, 0x03, 0x05, 0x01, 0xF4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Protocol1.Encode(tt.id, tt.inst, tt.params)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %X, want %X", got, tt.want)
			}
		})
	}
}

func TestEncode_Protocol2(t *testing.T) {
	tests := []struct {
		name   string
		inst   Instruction
		params []byte
		want   []byte
	}{
		{"ping", InstPing, nil, []byte{0xFF, 0xFF, 0xFD, 0x00, 0x01, 0x03, 0x00, 0x01, 0x19, 0x4E}},
		{"read", InstRead, []byte{0x84, 0x00, 0x04, 0x00},
			[]byte{0xFF, 0xFF, 0xFD, 0x00, 0x01, 0x07, 0x00, 0x02, 0x84, 0x00, 0x04, 0x00, 0x1D, 0x15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Protocol2.Encode(0x01, tt.inst, tt.params)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %X, want %X", got, tt.want)
			}
		})
	}
}

func TestEncode_Rejects(t *testing.T) {
	if _, err := Protocol1.Encode(1, InstSyncRead, nil); err != CommNotAvailable {
		t.Errorf("sync read on 1.0: got %v, want %v", err, CommNotAvailable)
	}
	if _, err := Protocol1.Encode(1, InstBulkWrite, nil); err != CommNotAvailable {
		t.Errorf("bulk write on 1.0: got %v, want %v", err, CommNotAvailable)
	}
	if _, err := Protocol2.Encode(InvalidID, InstPing, nil); err != CommTxError {
		t.Errorf("invalid id: got %v, want %v", err, CommTxError)
	}
	if _, err := Protocol1.Encode(1, InstWrite, make([]byte, 250)); err != CommTxError {
		t.Errorf("oversize 1.0 frame: got %v, want %v", err, CommTxError)
	}
	if _, err := Protocol2.Encode(1, InstWrite, make([]byte, 1024)); err != CommTxError {
		t.Errorf("oversize 2.0 frame: got %v, want %v", err, CommTxError)
	}
}

func TestTryDecode_StatusVector(t *testing.T) {
	// ping status from id 1: model 1030, firmware 0x26
	frame := []byte{0xFF, 0xFF, 0xFD, 0x00, 0x01, 0x07, 0x00, 0x55, 0x00, 0x06, 0x04, 0x26, 0x65, 0x5D}

	pkt, consumed, res := Protocol2.TryDecode(frame)
	if res != DecodeFrame {
		t.Fatalf("result: got %v, want %v", res, DecodeFrame)
	}
	if consumed != len(frame) {
		t.Errorf("consumed: got %d, want %d", consumed, len(frame))
	}
	st, ok := Protocol2.status(pkt)
	if !ok {
		t.Fatal("not a status packet")
	}
	if st.ID != 1 || st.Error != 0 {
		t.Errorf("status: got id %d error %02X", st.ID, byte(st.Error))
	}
	if !bytes.Equal(st.Data, []byte{0x06, 0x04, 0x26}) {
		t.Errorf("data: got %X, want 060426", st.Data)
	}
}

func TestTryDecode_RoundTrip(t *testing.T) {
	data := []byte{0x10, 0x20, 0xFF, 0xFF, 0xFD, 0x30}
	for _, p := range []Protocol{Protocol1, Protocol2} {
		t.Run(p.String(), func(t *testing.T) {
			frame, err := p.EncodeStatus(7, 0x04, data)
			if err != nil {
				t.Fatalf("EncodeStatus failed: %v", err)
			}
			pkt, consumed, res := p.TryDecode(frame)
			if res != DecodeFrame || consumed != len(frame) {
				t.Fatalf("TryDecode: got %v consumed %d, want frame consumed %d", res, consumed, len(frame))
			}
			st, ok := p.status(pkt)
			if !ok {
				t.Fatal("not a status packet")
			}
			if st.ID != 7 || st.Error != 0x04 || !bytes.Equal(st.Data, data) {
				t.Errorf("got id %d error %02X data %X", st.ID, byte(st.Error), st.Data)
			}
		})
	}
}

func TestTryDecode_Partial(t *testing.T) {
	for _, p := range []Protocol{Protocol1, Protocol2} {
		t.Run(p.String(), func(t *testing.T) {
			frame, _ := p.EncodeStatus(1, 0, []byte{1, 2, 3, 4})
			for n := 1; n < len(frame); n++ {
				_, consumed, res := p.TryDecode(frame[:n])
				if res != DecodeNeedMore || consumed != 0 {
					t.Fatalf("prefix %d: got %v consumed %d, want need more consumed 0", n, res, consumed)
				}
			}
		})
	}
}

func TestTryDecode_LeadingGarbage(t *testing.T) {
	frame, _ := Protocol2.EncodeStatus(3, 0, []byte{0xAA})
	buf := append([]byte{0x00, 0x12, 0xFF}, frame...)

	pkt, consumed, res := Protocol2.TryDecode(buf)
	if res != DecodeFrame {
		t.Fatalf("result: got %v, want %v", res, DecodeFrame)
	}
	if consumed != len(buf) {
		t.Errorf("consumed: got %d, want %d", consumed, len(buf))
	}
	if pkt.ID != 3 {
		t.Errorf("ID: got %d, want 3", pkt.ID)
	}
}

func TestTryDecode_Garbage(t *testing.T) {
	_, consumed, res := Protocol1.TryDecode([]byte{0x01, 0x02, 0x03, 0xFF})
	if res != DecodeCorrupt {
		t.Fatalf("result: got %v, want %v", res, DecodeCorrupt)
	}
	// trailing FF may start a header
	if consumed != 3 {
		t.Errorf("consumed: got %d, want 3", consumed)
	}
}

func TestTryDecode_BitFlips(t *testing.T) {
	tests := []struct {
		proto       Protocol
		lengthBytes []int // flips here may only shorten or lengthen the frame
	}{
		{Protocol1, []int{3}},
		{Protocol2, []int{5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.proto.String(), func(t *testing.T) {
			frame, err := tt.proto.EncodeStatus(1, 0, []byte{0x11, 0x22, 0x33, 0x44})
			if err != nil {
				t.Fatalf("EncodeStatus failed: %v", err)
			}
			for i := range frame {
				for bit := 0; bit < 8; bit++ {
					buf := bytes.Clone(frame)
					buf[i] ^= 1 << bit

					_, _, res := tt.proto.TryDecode(buf)
					if res == DecodeFrame {
						t.Fatalf("byte %d bit %d: corrupted frame decoded", i, bit)
					}
					isLength := false
					for _, l := range tt.lengthBytes {
						isLength = isLength || l == i
					}
					if !isLength && res != DecodeCorrupt {
						t.Errorf("byte %d bit %d: got %v, want %v", i, bit, res, DecodeCorrupt)
					}
				}
			}
		})
	}
}

func TestStuffing(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		stuffed []byte
	}{
		{"none", []byte{0x01, 0xFF, 0xFD}, []byte{0x01, 0xFF, 0xFD}},
		{"one", []byte{0xFF, 0xFF, 0xFD}, []byte{0xFF, 0xFF, 0xFD, 0xFD}},
		{"two", []byte{0xFF, 0xFF, 0xFD, 0xFF, 0xFF, 0xFD}, []byte{0xFF, 0xFF, 0xFD, 0xFD, 0xFF, 0xFF, 0xFD, 0xFD}},
		{"trailing FD", []byte{0xFF, 0xFF, 0xFD, 0xFD}, []byte{0xFF, 0xFF, 0xFD, 0xFD, 0xFD}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stuff(tt.raw); !bytes.Equal(got, tt.stuffed) {
				t.Errorf("stuff: got %X, want %X", got, tt.stuffed)
			}
			if got := unstuff(tt.stuffed); !bytes.Equal(got, tt.raw) {
				t.Errorf("unstuff: got %X, want %X", got, tt.raw)
			}
		})
	}
}

func TestEncode_StuffedLength(t *testing.T) {
	frame, err := Protocol2.Encode(1, InstWrite, []byte{0x00, 0x00, 0xFF, 0xFF, 0xFD})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// instruction + 5 params + 1 stuffed byte + crc
	if got := int(frame[5]) | int(frame[6])<<8; got != 9 {
		t.Errorf("length field: got %d, want 9", got)
	}
	pkt, _, res := Protocol2.TryDecode(frame)
	if res != DecodeFrame {
		t.Fatalf("result: got %v, want %v", res, DecodeFrame)
	}
	if !bytes.Equal(pkt.Params, []byte{0x00, 0x00, 0xFF, 0xFF, 0xFD}) {
		t.Errorf("params: got %X", pkt.Params)
	}
}
