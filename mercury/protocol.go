// Package mercury implements the master side of the half-duplex servo bus:
// framing for Protocol 1.0 and 2.0, the single-device request/response
// exchange and the sync/bulk group transactions.
package mercury

import (
	"encoding/binary"
	"fmt"
)

// Protocol selects one of the two wire formats spoken on the bus.
type Protocol int

const (
	Protocol1 Protocol = 1 // legacy: FF FF header, 1-byte sum checksum
	Protocol2 Protocol = 2 // FF FF FD 00 header, CRC-16, byte stuffing
)

// Instruction is the 1-byte opcode of an instruction packet.
type Instruction byte

// Instruction codes.
const (
	InstPing         Instruction = 0x01
	InstRead         Instruction = 0x02
	InstWrite        Instruction = 0x03
	InstRegWrite     Instruction = 0x04
	InstAction       Instruction = 0x05
	InstFactoryReset Instruction = 0x06
	InstReboot       Instruction = 0x08
	InstStatus       Instruction = 0x55
	InstSyncRead     Instruction = 0x82
	InstSyncWrite    Instruction = 0x83
	InstBulkRead     Instruction = 0x92
	InstBulkWrite    Instruction = 0x93
)

func (i Instruction) String() string {
	switch i {
	case InstPing:
		return "ping"
	case InstRead:
		return "read"
	case InstWrite:
		return "write"
	case InstRegWrite:
		return "reg_write"
	case InstAction:
		return "action"
	case InstFactoryReset:
		return "factory_reset"
	case InstReboot:
		return "reboot"
	case InstStatus:
		return "status"
	case InstSyncRead:
		return "sync_read"
	case InstSyncWrite:
		return "sync_write"
	case InstBulkRead:
		return "bulk_read"
	case InstBulkWrite:
		return "bulk_write"
	}
	return fmt.Sprintf("instruction(0x%02X)", byte(i))
}

// Special ID values.
const (
	BroadcastID = 0xFE
	InvalidID   = 0xFD
	MaxID       = 0xFC
)

// Factory reset options (Protocol 2.0 only).
const (
	ResetAll             byte = 0xFF
	ResetAllExceptID     byte = 0x01
	ResetAllExceptIDBaud byte = 0x02
)

// variant holds the per-protocol framing constants and capability table.
type variant struct {
	name        string
	header      []byte
	marker      []byte // searched for when scanning; the rest of the header is validated
	lengthWidth int    // width of the length field in bytes
	checkWidth  int    // width of the trailing checksum/CRC
	maxFrame    int
	minStatus   int // smallest valid status frame on the wire
	supported   map[Instruction]bool
}

var (
	protocol1 = variant{
		name:        "1.0",
		header:      []byte{0xFF, 0xFF},
		marker:      []byte{0xFF, 0xFF},
		lengthWidth: 1,
		checkWidth:  1,
		maxFrame:    250,
		minStatus:   6,
		supported: map[Instruction]bool{
			InstPing:         true,
			InstRead:         true,
			InstWrite:        true,
			InstRegWrite:     true,
			InstAction:       true,
			InstFactoryReset: true,
			InstSyncWrite:    true,
			InstBulkRead:     true,
		},
	}
	protocol2 = variant{
		name:        "2.0",
		header:      []byte{0xFF, 0xFF, 0xFD, 0x00},
		marker:      []byte{0xFF, 0xFF, 0xFD},
		lengthWidth: 2,
		checkWidth:  2,
		maxFrame:    1024,
		minStatus:   11,
		supported: map[Instruction]bool{
			InstPing:         true,
			InstRead:         true,
			InstWrite:        true,
			InstRegWrite:     true,
			InstAction:       true,
			InstFactoryReset: true,
			InstReboot:       true,
			InstStatus:       true,
			InstSyncRead:     true,
			InstSyncWrite:    true,
			InstBulkRead:     true,
			InstBulkWrite:    true,
		},
	}
)

func (p Protocol) variant() *variant {
	switch p {
	case Protocol1:
		return &protocol1
	case Protocol2:
		return &protocol2
	}
	return nil
}

// Valid reports whether p is one of the known wire formats.
func (p Protocol) Valid() bool {
	return p.variant() != nil
}

func (p Protocol) String() string {
	if v := p.variant(); v != nil {
		return v.name
	}
	return fmt.Sprintf("protocol(%d)", int(p))
}

// Supports reports whether the instruction can be encoded for this protocol.
func (p Protocol) Supports(inst Instruction) bool {
	v := p.variant()
	return v != nil && v.supported[inst]
}

// MaxFrameLen returns the largest frame, in bytes, the protocol accepts.
func (p Protocol) MaxFrameLen() int {
	if v := p.variant(); v != nil {
		return v.maxFrame
	}
	return 0
}

// StatusLen returns the wire length of a status frame carrying dataLen bytes,
// before any byte stuffing.
func (p Protocol) StatusLen(dataLen int) int {
	if v := p.variant(); v != nil {
		return v.minStatus + dataLen
	}
	return 0
}

// ByteOrder returns the byte order of multi-byte register values.
// Both protocols are little-endian.
func (p Protocol) ByteOrder() binary.ByteOrder {
	return binary.LittleEndian
}

// addressWidth returns the width of address and length fields inside
// read/write parameter blocks.
func (p Protocol) addressWidth() int {
	if p == Protocol1 {
		return 1
	}
	return 2
}

// putField appends an address or length field in protocol width.
// It fails when a Protocol 1.0 field does not fit in one byte.
func (p Protocol) putField(buf []byte, value uint16) ([]byte, error) {
	if p.addressWidth() == 1 {
		if value > 0xFF {
			return buf, CommTxError
		}
		return append(buf, byte(value)), nil
	}
	return binary.LittleEndian.AppendUint16(buf, value), nil
}
