package mercury

import (
	"encoding/binary"
	"fmt"
)

// Register is a span of a device's control table.
type Register struct {
	Address uint16
	Length  uint16 // 1, 2 or 4 for the integer accessors
}

// Device is a convenience view of one device on a Handler.
type Device struct {
	id byte
	h  *Handler
}

// NewDevice returns a Device for id. Broadcast and reserved ids are rejected.
func NewDevice(h *Handler, id byte) (*Device, error) {
	if h == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if !validDeviceID(id) {
		return nil, fmt.Errorf("device id %d: %w", id, ErrInvalidID)
	}
	return &Device{id: id, h: h}, nil
}

// ID returns the device's ID.
func (d *Device) ID() byte {
	return d.id
}

// Ping verifies communication with the device.
func (d *Device) Ping() error {
	hwErr, err := d.h.Ping(d.id)
	return d.result("ping", hwErr, err)
}

// Model pings the device and returns its model number.
func (d *Device) Model() (uint16, error) {
	model, hwErr, err := d.h.PingModel(d.id)
	if err := d.result("ping", hwErr, err); err != nil {
		return 0, err
	}
	return model, nil
}

// ReadBytes reads the raw bytes of reg.
func (d *Device) ReadBytes(reg Register) ([]byte, error) {
	data, hwErr, err := d.h.Read(d.id, reg.Address, reg.Length)
	if err := d.result("read", hwErr, err); err != nil {
		return nil, err
	}
	return data, nil
}

// Read reads a 1, 2 or 4 byte register as an unsigned value.
func (d *Device) Read(reg Register) (uint32, error) {
	if !intRegister(reg) {
		return 0, fmt.Errorf("register at %d has unsupported length %d", reg.Address, reg.Length)
	}
	data, err := d.ReadBytes(reg)
	if err != nil {
		return 0, err
	}
	var buf [4]byte
	copy(buf[:], data)
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteBytes writes data at reg's address and waits for the status.
func (d *Device) WriteBytes(reg Register, data []byte) error {
	hwErr, err := d.h.Write(d.id, reg.Address, data)
	return d.result("write", hwErr, err)
}

// Write writes value to a 1, 2 or 4 byte register.
func (d *Device) Write(reg Register, value uint32) error {
	data, err := encodeRegister(reg, value)
	if err != nil {
		return err
	}
	return d.WriteBytes(reg, data)
}

// RegWrite stages value in reg until the next Action.
func (d *Device) RegWrite(reg Register, value uint32) error {
	data, err := encodeRegister(reg, value)
	if err != nil {
		return err
	}
	hwErr, err := d.h.RegWrite(d.id, reg.Address, data)
	return d.result("reg_write", hwErr, err)
}

// Action applies writes staged with RegWrite.
func (d *Device) Action() error {
	hwErr, err := d.h.Action(d.id)
	return d.result("action", hwErr, err)
}

// Reboot restarts the device.
func (d *Device) Reboot() error {
	hwErr, err := d.h.Reboot(d.id)
	return d.result("reboot", hwErr, err)
}

// FactoryReset restores the control table; option is one of the Reset*
// constants.
func (d *Device) FactoryReset(option byte) error {
	hwErr, err := d.h.FactoryReset(d.id, option)
	return d.result("factory_reset", hwErr, err)
}

// result folds a communication result and the device's hardware error into
// one error.
func (d *Device) result(op string, hwErr HardwareError, err error) error {
	if err != nil {
		return err
	}
	if hwErr.HasError() {
		return fmt.Errorf("%s id %d: %s: %w", op, d.id, d.h.Protocol().DescribeHardwareError(hwErr), hwErr)
	}
	return nil
}

func intRegister(reg Register) bool {
	return reg.Length == 1 || reg.Length == 2 || reg.Length == 4
}

func encodeRegister(reg Register, value uint32) ([]byte, error) {
	switch reg.Length {
	case 1:
		if value > 0xFF {
			return nil, fmt.Errorf("value %d overflows 1-byte register at %d", value, reg.Address)
		}
		return []byte{byte(value)}, nil
	case 2:
		if value > 0xFFFF {
			return nil, fmt.Errorf("value %d overflows 2-byte register at %d", value, reg.Address)
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(value)), nil
	case 4:
		return binary.LittleEndian.AppendUint32(nil, value), nil
	}
	return nil, fmt.Errorf("register at %d has unsupported length %d", reg.Address, reg.Length)
}
