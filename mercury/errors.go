package mercury

import (
	"errors"
	"fmt"
	"strings"
)

// CommResult is the outcome of one bus exchange. Every value other than
// CommSuccess satisfies error and is returned as such.
type CommResult int

// Communication results.
const (
	CommSuccess      CommResult = 0
	CommPortBusy     CommResult = -1000
	CommTxFail       CommResult = -1001
	CommRxFail       CommResult = -1002
	CommTxError      CommResult = -2000
	CommRxWaiting    CommResult = -3000
	CommRxTimeout    CommResult = -3001
	CommRxCorrupt    CommResult = -3002
	CommNotAvailable CommResult = -9000
)

func (r CommResult) Error() string {
	switch r {
	case CommSuccess:
		return "communication success"
	case CommPortBusy:
		return "port is in use"
	case CommTxFail:
		return "failed to transmit instruction packet"
	case CommRxFail:
		return "failed to get status packet"
	case CommTxError:
		return "incorrect instruction packet"
	case CommRxWaiting:
		return "now receiving status packet"
	case CommRxTimeout:
		return "no status packet"
	case CommRxCorrupt:
		return "incorrect status packet"
	case CommNotAvailable:
		return "function not available for this protocol or id"
	}
	return fmt.Sprintf("unknown communication result %d", int(r))
}

// Sentinel errors for group data access.
var (
	ErrDataNotAvailable = errors.New("data not available")
	ErrInvalidID        = errors.New("invalid device id")
)

// CommError carries the transport error behind a TxFail or RxFail result.
type CommError struct {
	Op     string     // operation that failed, e.g. "read", "sync_write"
	ID     byte       // addressed device, BroadcastID for group operations
	Result CommResult // TxFail or RxFail
	Err    error      // underlying transport error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("%s id %d: %v: %v", e.Op, e.ID, e.Result, e.Err)
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, CommTxFail) match a wrapped result.
func (e *CommError) Is(target error) bool {
	r, ok := target.(CommResult)
	return ok && r == e.Result
}

// ResultOf maps an error returned by this package to exactly one CommResult.
// Errors from other sources map to CommRxFail.
func ResultOf(err error) CommResult {
	if err == nil {
		return CommSuccess
	}
	var r CommResult
	if errors.As(err, &r) {
		return r
	}
	var ce *CommError
	if errors.As(err, &ce) {
		return ce.Result
	}
	// the exchange itself completed
	var hw HardwareError
	if errors.As(err, &hw) {
		return CommSuccess
	}
	return CommRxFail
}

// HardwareError is the error byte of a status packet. It is reported next to
// the CommResult and never folded into it.
type HardwareError byte

// Protocol 1.0 hardware error bits.
const (
	ErrInputVoltage HardwareError = 1 << 0
	ErrAngleLimit   HardwareError = 1 << 1
	ErrOverheat     HardwareError = 1 << 2
	ErrRange        HardwareError = 1 << 3
	ErrChecksum     HardwareError = 1 << 4
	ErrOverload     HardwareError = 1 << 5
	ErrInstruction  HardwareError = 1 << 6
)

// Protocol 2.0 hardware error numbers, carried in the lower seven bits.
const (
	ErrNumResultFail  = 1
	ErrNumInstruction = 2
	ErrNumCRC         = 3
	ErrNumDataRange   = 4
	ErrNumDataLength  = 5
	ErrNumDataLimit   = 6
	ErrNumAccess      = 7

	alertBit HardwareError = 0x80
)

// HasError reports whether any error bit is set.
func (e HardwareError) HasError() bool {
	return e != 0
}

// Alert reports the Protocol 2.0 alert bit: the device has a hardware fault
// that can be inspected in its control table.
func (e HardwareError) Alert() bool {
	return e&alertBit != 0
}

// Code returns the Protocol 2.0 error number.
func (e HardwareError) Code() byte {
	return byte(e &^ alertBit)
}

func (e HardwareError) Error() string {
	return fmt.Sprintf("hardware error 0x%02X", byte(e))
}

// DescribeHardwareError decodes an error byte according to the protocol.
func (p Protocol) DescribeHardwareError(e HardwareError) string {
	if e == 0 {
		return "no error"
	}

	var msgs []string
	if p == Protocol1 {
		flags := []struct {
			bit  HardwareError
			name string
		}{
			{ErrInputVoltage, "input voltage"},
			{ErrAngleLimit, "angle limit"},
			{ErrOverheat, "overheat"},
			{ErrRange, "out of range"},
			{ErrChecksum, "checksum"},
			{ErrOverload, "overload"},
			{ErrInstruction, "instruction"},
		}
		for _, f := range flags {
			if e&f.bit != 0 {
				msgs = append(msgs, f.name)
			}
		}
		return strings.Join(msgs, ", ")
	}

	if e.Alert() {
		msgs = append(msgs, "alert")
	}
	switch e.Code() {
	case 0:
	case ErrNumResultFail:
		msgs = append(msgs, "result fail")
	case ErrNumInstruction:
		msgs = append(msgs, "instruction error")
	case ErrNumCRC:
		msgs = append(msgs, "crc error")
	case ErrNumDataRange:
		msgs = append(msgs, "data range error")
	case ErrNumDataLength:
		msgs = append(msgs, "data length error")
	case ErrNumDataLimit:
		msgs = append(msgs, "data limit error")
	case ErrNumAccess:
		msgs = append(msgs, "access error")
	default:
		msgs = append(msgs, fmt.Sprintf("error %d", e.Code()))
	}
	return strings.Join(msgs, ", ")
}
