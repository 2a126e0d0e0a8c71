package mercury

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	readChunk = 256

	// broadcast ping waits this long per possible responder
	broadcastSlotDelay = 3 * time.Millisecond
	broadcastPingBase  = 16 * time.Millisecond
)

// Handler drives request/response exchanges in one protocol over a Port.
// Several handlers may share a Port; the Port's busy flag serializes them.
//
// Handler performs no retries: a caller that wants to retry on CommRxTimeout
// re-invokes the method.
type Handler struct {
	port  *Port
	proto Protocol
	log   *logrus.Entry
}

// NewHandler binds a protocol to a port.
func NewHandler(port *Port, proto Protocol) (*Handler, error) {
	if port == nil {
		return nil, errors.New("port is required")
	}
	if !proto.Valid() {
		return nil, fmt.Errorf("unsupported protocol version: %d", int(proto))
	}
	return &Handler{
		port:  port,
		proto: proto,
		log:   port.log.WithField("protocol", proto.String()),
	}, nil
}

// Protocol returns the wire format of this handler.
func (h *Handler) Protocol() Protocol {
	return h.proto
}

// Port returns the port this handler talks through.
func (h *Handler) Port() *Port {
	return h.port
}

// txPacket encodes and writes one instruction packet. On success the port is
// left busy; the caller releases it directly or through receive.
func (h *Handler) txPacket(op string, id byte, inst Instruction, params []byte) error {
	if !h.proto.Supports(inst) {
		return CommNotAvailable
	}
	if !h.port.acquire() {
		return CommPortBusy
	}

	packet, err := h.proto.Encode(id, inst, params)
	if err != nil {
		h.port.release()
		return err
	}

	if err := h.port.ClearInput(); err != nil {
		h.log.WithError(err).Warn("failed to clear input")
	}

	n, err := h.port.Write(packet)
	if err != nil {
		h.port.release()
		h.log.WithError(err).WithField("op", op).Warn("write failed")
		return &CommError{Op: op, ID: id, Result: CommTxFail, Err: err}
	}
	if n != len(packet) {
		h.port.release()
		return &CommError{
			Op: op, ID: id, Result: CommTxFail,
			Err: fmt.Errorf("incomplete write: %d of %d bytes", n, len(packet)),
		}
	}

	h.log.WithFields(logrus.Fields{
		"op":    op,
		"id":    id,
		"frame": hex.EncodeToString(packet),
	}).Debug("tx")
	return nil
}

// receive polls the port, feeding every status packet from id (any id when
// id is BroadcastID) to accept until accept returns true or the packet
// timeout runs out. The port is released on return.
func (h *Handler) receive(op string, id byte, accept func(Status) bool) error {
	defer h.port.release()

	var buf []byte
	chunk := make([]byte, readChunk)
	sawCorrupt := false

	for {
		n, err := h.port.ReadAvailable(chunk)
		if err != nil {
			h.log.WithError(err).WithField("op", op).Warn("read failed")
			return &CommError{Op: op, ID: id, Result: CommRxFail, Err: err}
		}
		buf = append(buf, chunk[:n]...)

		for len(buf) > 0 {
			pkt, consumed, res := h.proto.TryDecode(buf)
			buf = buf[consumed:]
			if res == DecodeNeedMore {
				break
			}
			if res == DecodeCorrupt {
				sawCorrupt = true
				h.log.WithField("op", op).Debug("dropped corrupt bytes")
				continue
			}

			st, ok := h.proto.status(pkt)
			if !ok {
				h.log.WithFields(logrus.Fields{"op": op, "id": pkt.ID}).Debug("dropped non-status frame")
				continue
			}
			if id != BroadcastID && st.ID != id {
				h.log.WithFields(logrus.Fields{"op": op, "want": id, "got": st.ID}).Debug("dropped status from other id")
				continue
			}
			if accept(st) {
				return nil
			}
		}

		if h.port.IsPacketTimeout() {
			h.log.WithFields(logrus.Fields{
				"op":      op,
				"id":      id,
				"timeout": h.port.Timeout(),
				"pending": len(buf),
			}).Debug("rx timeout")
			if sawCorrupt {
				return CommRxCorrupt
			}
			return CommRxTimeout
		}
		if n == 0 {
			time.Sleep(h.port.pollInterval)
		}
	}
}

// RxStatus receives one status packet from id, or from any device when id is
// BroadcastID. It completes an exchange started by one of the Tx primitives.
func (h *Handler) RxStatus(id byte) (Status, error) {
	if !h.port.InUse() {
		return Status{}, CommNotAvailable
	}
	var got Status
	err := h.receive("rx", id, func(st Status) bool {
		got = st
		return true
	})
	return got, err
}

// txRxPacket sends an instruction and waits for the status of id. Broadcast
// instructions get no status and return as soon as the write completes.
func (h *Handler) txRxPacket(op string, id byte, inst Instruction, params []byte, dataLen int) (Status, error) {
	if err := h.txPacket(op, id, inst, params); err != nil {
		return Status{}, err
	}
	if id == BroadcastID {
		h.port.release()
		return Status{}, nil
	}

	h.port.SetPacketTimeout(h.proto.StatusLen(dataLen))
	return h.RxStatus(id)
}

// txOnly sends an instruction without waiting for any status.
func (h *Handler) txOnly(op string, id byte, inst Instruction, params []byte) error {
	if err := h.txPacket(op, id, inst, params); err != nil {
		return err
	}
	h.port.release()
	return nil
}

// Ping checks that a device answers.
func (h *Handler) Ping(id byte) (HardwareError, error) {
	if id == BroadcastID {
		return 0, CommNotAvailable
	}
	st, err := h.txRxPacket("ping", id, InstPing, nil, 3)
	return st.Error, err
}

// PingModel pings a device and returns its model number. Protocol 2.0 carries
// the model in the ping status; Protocol 1.0 needs a follow-up read of the
// first two control table bytes.
func (h *Handler) PingModel(id byte) (uint16, HardwareError, error) {
	if id == BroadcastID {
		return 0, 0, CommNotAvailable
	}

	st, err := h.txRxPacket("ping", id, InstPing, nil, 3)
	if err != nil {
		return 0, st.Error, err
	}

	if h.proto == Protocol1 {
		return h.Read2Byte(id, 0)
	}
	// model number (2) + firmware version (1)
	if len(st.Data) < 3 {
		return 0, st.Error, CommRxCorrupt
	}
	return h.proto.ByteOrder().Uint16(st.Data), st.Error, nil
}

// BroadcastPing pings every device at once and returns the sorted ids that
// answered before the timeout. Protocol 2.0 only.
func (h *Handler) BroadcastPing() ([]byte, error) {
	if h.proto != Protocol2 {
		return nil, CommNotAvailable
	}
	if err := h.txPacket("broadcast_ping", BroadcastID, InstPing, nil); err != nil {
		return nil, err
	}

	responders := MaxID + 1
	h.port.SetPacketTimeoutDuration(
		h.port.ByteTransmitTime(h.proto.StatusLen(3)*responders) +
			broadcastSlotDelay*time.Duration(responders) + broadcastPingBase,
	)

	seen := make(map[byte]bool)
	err := h.receive("broadcast_ping", BroadcastID, func(st Status) bool {
		seen[st.ID] = true
		return false
	})
	if len(seen) == 0 {
		return nil, err
	}
	if ResultOf(err) != CommRxTimeout && ResultOf(err) != CommRxCorrupt {
		return nil, err
	}

	ids := make([]byte, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Action triggers the writes staged by RegWrite. Sent to BroadcastID it
// triggers every device and returns after the write.
func (h *Handler) Action(id byte) (HardwareError, error) {
	st, err := h.txRxPacket("action", id, InstAction, nil, 0)
	return st.Error, err
}

// Reboot restarts a device. Protocol 2.0 only.
func (h *Handler) Reboot(id byte) (HardwareError, error) {
	if !h.proto.Supports(InstReboot) {
		return 0, CommNotAvailable
	}
	st, err := h.txRxPacket("reboot", id, InstReboot, nil, 0)
	return st.Error, err
}

// FactoryReset restores a device's control table. The option selects what
// survives the reset on Protocol 2.0 and is not sent on Protocol 1.0.
func (h *Handler) FactoryReset(id byte, option byte) (HardwareError, error) {
	var params []byte
	if h.proto == Protocol2 {
		params = []byte{option}
	}
	st, err := h.txRxPacket("factory_reset", id, InstFactoryReset, params, 0)
	return st.Error, err
}

func (h *Handler) readParams(address, length uint16) ([]byte, error) {
	params, err := h.proto.putField(make([]byte, 0, 4), address)
	if err != nil {
		return nil, err
	}
	return h.proto.putField(params, length)
}

func (h *Handler) writeParams(address uint16, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, CommTxError
	}
	params, err := h.proto.putField(make([]byte, 0, 2+len(data)), address)
	if err != nil {
		return nil, err
	}
	return append(params, data...), nil
}

// ReadTx sends a read request and leaves the port busy until ReadRx.
func (h *Handler) ReadTx(id byte, address, length uint16) error {
	if id == BroadcastID {
		return CommNotAvailable
	}
	if length == 0 {
		return CommTxError
	}
	params, err := h.readParams(address, length)
	if err != nil {
		return err
	}
	if err := h.txPacket("read", id, InstRead, params); err != nil {
		return err
	}
	h.port.SetPacketTimeout(h.proto.StatusLen(int(length)))
	return nil
}

// ReadRx receives the status of a request sent by ReadTx.
func (h *Handler) ReadRx(id byte, length uint16) ([]byte, HardwareError, error) {
	st, err := h.RxStatus(id)
	if err != nil {
		return nil, st.Error, err
	}
	if len(st.Data) < int(length) {
		return nil, st.Error, CommRxCorrupt
	}
	return st.Data[:length], st.Error, nil
}

// Read reads length bytes at address from one device.
func (h *Handler) Read(id byte, address, length uint16) ([]byte, HardwareError, error) {
	if err := h.ReadTx(id, address, length); err != nil {
		return nil, 0, err
	}
	return h.ReadRx(id, length)
}

// Read1Byte reads a 1-byte register.
func (h *Handler) Read1Byte(id byte, address uint16) (uint8, HardwareError, error) {
	data, hwErr, err := h.Read(id, address, 1)
	if err != nil {
		return 0, hwErr, err
	}
	return data[0], hwErr, nil
}

// Read2Byte reads a little-endian 2-byte register.
func (h *Handler) Read2Byte(id byte, address uint16) (uint16, HardwareError, error) {
	data, hwErr, err := h.Read(id, address, 2)
	if err != nil {
		return 0, hwErr, err
	}
	return h.proto.ByteOrder().Uint16(data), hwErr, nil
}

// Read4Byte reads a little-endian 4-byte register.
func (h *Handler) Read4Byte(id byte, address uint16) (uint32, HardwareError, error) {
	data, hwErr, err := h.Read(id, address, 4)
	if err != nil {
		return 0, hwErr, err
	}
	return h.proto.ByteOrder().Uint32(data), hwErr, nil
}

// WriteTxOnly writes data at address without waiting for a status.
func (h *Handler) WriteTxOnly(id byte, address uint16, data []byte) error {
	params, err := h.writeParams(address, data)
	if err != nil {
		return err
	}
	return h.txOnly("write", id, InstWrite, params)
}

// Write writes data at address and waits for the device's status.
func (h *Handler) Write(id byte, address uint16, data []byte) (HardwareError, error) {
	params, err := h.writeParams(address, data)
	if err != nil {
		return 0, err
	}
	st, err := h.txRxPacket("write", id, InstWrite, params, 0)
	return st.Error, err
}

// Write1ByteTxOnly writes a 1-byte register without waiting for a status.
func (h *Handler) Write1ByteTxOnly(id byte, address uint16, value uint8) error {
	return h.WriteTxOnly(id, address, []byte{value})
}

// Write1Byte writes a 1-byte register.
func (h *Handler) Write1Byte(id byte, address uint16, value uint8) (HardwareError, error) {
	return h.Write(id, address, []byte{value})
}

// Write2ByteTxOnly writes a 2-byte register without waiting for a status.
func (h *Handler) Write2ByteTxOnly(id byte, address uint16, value uint16) error {
	return h.WriteTxOnly(id, address, binary.LittleEndian.AppendUint16(nil, value))
}

// Write2Byte writes a little-endian 2-byte register.
func (h *Handler) Write2Byte(id byte, address uint16, value uint16) (HardwareError, error) {
	return h.Write(id, address, binary.LittleEndian.AppendUint16(nil, value))
}

// Write4ByteTxOnly writes a 4-byte register without waiting for a status.
func (h *Handler) Write4ByteTxOnly(id byte, address uint16, value uint32) error {
	return h.WriteTxOnly(id, address, binary.LittleEndian.AppendUint32(nil, value))
}

// Write4Byte writes a little-endian 4-byte register.
func (h *Handler) Write4Byte(id byte, address uint16, value uint32) (HardwareError, error) {
	return h.Write(id, address, binary.LittleEndian.AppendUint32(nil, value))
}

// RegWriteTxOnly stages data at address without waiting for a status. The
// write takes effect on the next Action.
func (h *Handler) RegWriteTxOnly(id byte, address uint16, data []byte) error {
	params, err := h.writeParams(address, data)
	if err != nil {
		return err
	}
	return h.txOnly("reg_write", id, InstRegWrite, params)
}

// RegWrite stages data at address and waits for the device's status.
func (h *Handler) RegWrite(id byte, address uint16, data []byte) (HardwareError, error) {
	params, err := h.writeParams(address, data)
	if err != nil {
		return 0, err
	}
	st, err := h.txRxPacket("reg_write", id, InstRegWrite, params, 0)
	return st.Error, err
}

// SyncReadTx asks every device in ids for length bytes at address. The port
// stays busy until the combined status is collected with RxStatus.
// Protocol 2.0 only.
func (h *Handler) SyncReadTx(address, length uint16, ids []byte) error {
	if !h.proto.Supports(InstSyncRead) {
		return CommNotAvailable
	}
	if len(ids) == 0 || length == 0 {
		return CommTxError
	}
	params, err := h.readParams(address, length)
	if err != nil {
		return err
	}
	params = append(params, ids...)

	if err := h.txPacket("sync_read", BroadcastID, InstSyncRead, params); err != nil {
		return err
	}
	h.port.SetPacketTimeout(h.proto.StatusLen(len(ids) * (1 + int(length))))
	return nil
}

// SyncWriteTxOnly writes the same register on many devices. params is the
// concatenation of [id, data...] tuples, each data exactly length bytes long.
func (h *Handler) SyncWriteTxOnly(address, length uint16, params []byte) error {
	if length == 0 || len(params) == 0 || len(params)%(1+int(length)) != 0 {
		return CommTxError
	}
	block, err := h.readParams(address, length)
	if err != nil {
		return err
	}
	return h.txOnly("sync_write", BroadcastID, InstSyncWrite, append(block, params...))
}

// bulkReadEntryLen is the size of one device's record in a bulk read block:
// [length, id, address] on 1.0, [id, address(2), length(2)] on 2.0.
func (h *Handler) bulkReadEntryLen() int {
	if h.proto == Protocol1 {
		return 3
	}
	return 5
}

// BulkReadTx asks several devices for independent registers. The port stays
// busy until the combined status is collected with RxStatus.
func (h *Handler) BulkReadTx(params []byte) error {
	entry := h.bulkReadEntryLen()
	if len(params) == 0 || len(params)%entry != 0 {
		return CommTxError
	}

	want := 0
	for i := 0; i < len(params); i += entry {
		if h.proto == Protocol1 {
			want += 1 + int(params[i])
		} else {
			want += 1 + int(h.proto.ByteOrder().Uint16(params[i+3:]))
		}
	}

	block := params
	if h.proto == Protocol1 {
		// 1.0 bulk read starts with a reserved zero byte
		block = append([]byte{0x00}, params...)
	}
	if err := h.txPacket("bulk_read", BroadcastID, InstBulkRead, block); err != nil {
		return err
	}
	h.port.SetPacketTimeout(h.proto.StatusLen(want))
	return nil
}

// BulkWriteTxOnly writes independent registers on several devices. params is
// the concatenation of [id, address(2), length(2), data...] records.
// Protocol 2.0 only.
func (h *Handler) BulkWriteTxOnly(params []byte) error {
	if !h.proto.Supports(InstBulkWrite) {
		return CommNotAvailable
	}
	if len(params) == 0 {
		return CommTxError
	}
	return h.txOnly("bulk_write", BroadcastID, InstBulkWrite, params)
}
