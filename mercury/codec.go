package mercury

import (
	"bytes"
	"encoding/binary"
)

// Packet is a decoded frame. For Protocol 1.0 status frames the Instruction
// field carries the device's error byte, since that format has no status
// opcode.
type Packet struct {
	ID          byte
	Instruction Instruction
	Params      []byte
}

// Status is a device's response to an instruction packet.
type Status struct {
	ID    byte
	Error HardwareError
	Data  []byte
}

// DecodeResult tells the caller of TryDecode what the buffer holds.
type DecodeResult int

const (
	// DecodeNeedMore means a frame may still complete with more bytes.
	DecodeNeedMore DecodeResult = iota
	// DecodeCorrupt means the leading bytes can never form a valid frame.
	DecodeCorrupt
	// DecodeFrame means a complete, checksum-valid frame was found.
	DecodeFrame
)

func (r DecodeResult) String() string {
	switch r {
	case DecodeNeedMore:
		return "need more"
	case DecodeCorrupt:
		return "corrupt"
	case DecodeFrame:
		return "frame"
	}
	return "unknown"
}

// Encode builds an instruction packet. It returns CommNotAvailable when the
// protocol has no such instruction and CommTxError when the frame would exceed
// the protocol's maximum length.
func (p Protocol) Encode(id byte, inst Instruction, params []byte) ([]byte, error) {
	if !p.Supports(inst) || inst == InstStatus {
		return nil, CommNotAvailable
	}
	if id == InvalidID || id > BroadcastID {
		return nil, CommTxError
	}
	return p.encodeFrame(id, byte(inst), params)
}

// EncodeStatus builds the status packet a device would send. It is the
// inverse of the receive path and is used by simulators and tests.
func (p Protocol) EncodeStatus(id byte, hwErr HardwareError, data []byte) ([]byte, error) {
	if id > MaxID {
		return nil, CommTxError
	}
	switch p {
	case Protocol1:
		return p.encodeFrame(id, byte(hwErr), data)
	case Protocol2:
		params := make([]byte, 0, 1+len(data))
		params = append(params, byte(hwErr))
		params = append(params, data...)
		return p.encodeFrame(id, byte(InstStatus), params)
	}
	return nil, CommNotAvailable
}

func (p Protocol) encodeFrame(id, inst byte, params []byte) ([]byte, error) {
	v := p.variant()
	if v == nil {
		return nil, CommNotAvailable
	}

	switch p {
	case Protocol1:
		// header(2) + id(1) + length(1) + instruction(1) + params(n) + checksum(1)
		length := len(params) + 2
		if 4+length > v.maxFrame {
			return nil, CommTxError
		}
		buf := make([]byte, 0, 4+length)
		buf = append(buf, v.header...)
		buf = append(buf, id, byte(length), inst)
		buf = append(buf, params...)
		return append(buf, Checksum(buf[2:])), nil

	default:
		body := make([]byte, 0, 1+len(params))
		body = append(body, inst)
		body = stuff(append(body, params...))

		// header(4) + id(1) + length(2) + body(n) + crc(2)
		length := len(body) + 2
		if 7+length > v.maxFrame {
			return nil, CommTxError
		}
		buf := make([]byte, 0, 7+length)
		buf = append(buf, v.header...)
		buf = append(buf, id)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(length))
		buf = append(buf, body...)
		return binary.LittleEndian.AppendUint16(buf, CRC(buf)), nil
	}
}

// TryDecode scans buf for the first frame. The caller must drop
// buf[:consumed] whatever the result: on DecodeFrame it covers the frame, on
// DecodeCorrupt the bytes that can never start a frame, and on DecodeNeedMore
// any garbage ahead of a partial header.
func (p Protocol) TryDecode(buf []byte) (pkt Packet, consumed int, res DecodeResult) {
	v := p.variant()
	if v == nil {
		return Packet{}, len(buf), DecodeCorrupt
	}

	start := bytes.Index(buf, v.marker)
	if start < 0 {
		keep := partialHeader(buf, v.marker)
		if len(buf)-keep > 0 {
			return Packet{}, len(buf) - keep, DecodeCorrupt
		}
		return Packet{}, 0, DecodeNeedMore
	}

	frame := buf[start:]
	hdr := len(v.header)
	prefix := hdr + 1 + v.lengthWidth // header + id + length
	if len(frame) < prefix {
		return Packet{}, start, DecodeNeedMore
	}
	if p == Protocol2 && frame[3] != 0x00 {
		return Packet{}, start + 1, DecodeCorrupt
	}

	id := frame[hdr]
	if id == InvalidID || id > BroadcastID {
		return Packet{}, start + 1, DecodeCorrupt
	}

	var length int
	if v.lengthWidth == 1 {
		length = int(frame[hdr+1])
	} else {
		length = int(binary.LittleEndian.Uint16(frame[hdr+1:]))
	}
	// length covers instruction/error byte + params + checksum
	total := prefix + length
	if length < 1+v.checkWidth || total > v.maxFrame {
		return Packet{}, start + 1, DecodeCorrupt
	}
	if len(frame) < total {
		return Packet{}, start, DecodeNeedMore
	}
	frame = frame[:total]

	if p == Protocol1 {
		if Checksum(frame[2:total-1]) != frame[total-1] {
			return Packet{}, start + 1, DecodeCorrupt
		}
		pkt = Packet{
			ID:          id,
			Instruction: Instruction(frame[prefix]),
			Params:      bytes.Clone(frame[prefix+1 : total-1]),
		}
		return pkt, start + total, DecodeFrame
	}

	if CRC(frame[:total-2]) != binary.LittleEndian.Uint16(frame[total-2:]) {
		return Packet{}, start + 1, DecodeCorrupt
	}
	body := unstuff(frame[prefix : total-2])
	pkt = Packet{
		ID:          id,
		Instruction: Instruction(body[0]),
		Params:      body[1:],
	}
	return pkt, start + total, DecodeFrame
}

// status interprets a decoded frame as a status packet.
func (p Protocol) status(pkt Packet) (Status, bool) {
	if pkt.ID > MaxID {
		return Status{}, false
	}
	switch p {
	case Protocol1:
		if pkt.Instruction > 0x7F {
			return Status{}, false
		}
		return Status{ID: pkt.ID, Error: HardwareError(pkt.Instruction), Data: pkt.Params}, true
	case Protocol2:
		if pkt.Instruction != InstStatus || len(pkt.Params) < 1 {
			return Status{}, false
		}
		return Status{ID: pkt.ID, Error: HardwareError(pkt.Params[0]), Data: pkt.Params[1:]}, true
	}
	return Status{}, false
}

// partialHeader returns the length of the longest suffix of buf that is a
// proper prefix of header.
func partialHeader(buf, header []byte) int {
	for n := min(len(header)-1, len(buf)); n > 0; n-- {
		if bytes.Equal(buf[len(buf)-n:], header[:n]) {
			return n
		}
	}
	return 0
}

// stuff escapes every FF FF FD inside a Protocol 2.0 body as FF FF FD FD.
func stuff(body []byte) []byte {
	out := make([]byte, 0, len(body)+len(body)/3)
	for _, b := range body {
		out = append(out, b)
		n := len(out)
		if b == 0xFD && n >= 3 && out[n-2] == 0xFF && out[n-3] == 0xFF {
			out = append(out, 0xFD)
		}
	}
	return out
}

// unstuff reverses stuff.
func unstuff(body []byte) []byte {
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		b := body[i]
		out = append(out, b)
		n := len(out)
		if b == 0xFD && n >= 3 && out[n-2] == 0xFF && out[n-3] == 0xFF &&
			i+1 < len(body) && body[i+1] == 0xFD {
			i++
		}
	}
	return out
}
