package mercury

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
)

// entries is an insertion-ordered map from device id to a group record.
// An id appears at most once.
type entries[T any] struct {
	order []byte
	items map[byte]*T
}

func (e *entries[T]) get(id byte) (*T, bool) {
	v, ok := e.items[id]
	return v, ok
}

func (e *entries[T]) add(id byte, v *T) bool {
	if _, ok := e.items[id]; ok {
		return false
	}
	if e.items == nil {
		e.items = make(map[byte]*T)
	}
	e.items[id] = v
	e.order = append(e.order, id)
	return true
}

func (e *entries[T]) remove(id byte) bool {
	if _, ok := e.items[id]; !ok {
		return false
	}
	delete(e.items, id)
	e.order = slices.DeleteFunc(e.order, func(x byte) bool { return x == id })
	return true
}

func (e *entries[T]) clear() {
	e.order = nil
	e.items = nil
}

func (e *entries[T]) ids() []byte {
	return slices.Clone(e.order)
}

func (e *entries[T]) len() int {
	return len(e.order)
}

func validDeviceID(id byte) bool {
	return id <= MaxID
}

// readEntry is one device's slot in a read group.
type readEntry struct {
	address uint16
	length  uint16
	data    []byte
	err     HardwareError
}

// readGroup holds what sync and bulk reads share: the entry list, the cache
// filled by the last transaction and the accessors over it. It is not safe
// for concurrent use.
type readGroup struct {
	handler  *Handler
	entries  entries[readEntry]
	ok       bool // last transaction completed
	frameErr HardwareError
}

// RemoveParam drops id from the group.
func (g *readGroup) RemoveParam(id byte) {
	if g.entries.remove(id) {
		g.ok = false
	}
}

// ClearParam empties the group.
func (g *readGroup) ClearParam() {
	g.entries.clear()
	g.ok = false
}

// IDs returns the registered ids in transmit order.
func (g *readGroup) IDs() []byte {
	return g.entries.ids()
}

// Len returns the number of registered ids.
func (g *readGroup) Len() int {
	return g.entries.len()
}

// FrameError returns the error byte of the combined status frame itself.
func (g *readGroup) FrameError() HardwareError {
	return g.frameErr
}

// receive collects the combined status frame and slices it per id, in
// registration order: [error, data(length)] for each entry.
func (g *readGroup) receive() error {
	g.ok = false
	if g.entries.len() == 0 {
		return CommNotAvailable
	}

	st, err := g.handler.RxStatus(BroadcastID)
	if err != nil {
		return err
	}

	want := 0
	for _, id := range g.entries.order {
		e := g.entries.items[id]
		want += 1 + int(e.length)
	}
	if len(st.Data) != want {
		g.handler.log.WithField("want", want).WithField("got", len(st.Data)).Debug("combined status length mismatch")
		return CommRxCorrupt
	}

	off := 0
	for _, id := range g.entries.order {
		e := g.entries.items[id]
		e.err = HardwareError(st.Data[off])
		e.data = bytes.Clone(st.Data[off+1 : off+1+int(e.length)])
		off += 1 + int(e.length)
	}
	g.frameErr = st.Error
	g.ok = true
	return nil
}

// IsAvailable reports whether the last transaction returned the range
// [address, address+length) for id.
func (g *readGroup) IsAvailable(id byte, address, length uint16) bool {
	if !g.ok || length == 0 {
		return false
	}
	e, ok := g.entries.get(id)
	if !ok || e.data == nil {
		return false
	}
	return address >= e.address && int(address)+int(length) <= int(e.address)+int(e.length)
}

// GetBytes returns a copy of the cached bytes for the range.
func (g *readGroup) GetBytes(id byte, address, length uint16) ([]byte, error) {
	if !g.IsAvailable(id, address, length) {
		return nil, fmt.Errorf("id %d address %d length %d: %w", id, address, length, ErrDataNotAvailable)
	}
	e := g.entries.items[id]
	off := address - e.address
	return bytes.Clone(e.data[off : off+length]), nil
}

// GetData returns the little-endian value of a 1 to 4 byte range.
func (g *readGroup) GetData(id byte, address, length uint16) (uint32, error) {
	if length > 4 {
		return 0, fmt.Errorf("length %d exceeds 4 bytes: %w", length, ErrDataNotAvailable)
	}
	data, err := g.GetBytes(id, address, length)
	if err != nil {
		return 0, err
	}
	var buf [4]byte
	copy(buf[:], data)
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// GetError returns id's cached hardware error and whether it is non-zero.
func (g *readGroup) GetError(id byte) (HardwareError, bool) {
	e, ok := g.entries.get(id)
	if !ok || !g.ok {
		return 0, false
	}
	return e.err, e.err.HasError()
}
