package mercury

import (
	"bytes"
	"encoding/binary"
)

type bulkWriteEntry struct {
	address uint16
	data    []byte
}

// GroupBulkWrite writes an independent register range on each device in one
// broadcast transaction. Protocol 2.0 only. It is not safe for concurrent use.
type GroupBulkWrite struct {
	handler *Handler
	entries entries[bulkWriteEntry]
}

// NewGroupBulkWrite creates an empty bulk write.
func NewGroupBulkWrite(h *Handler) *GroupBulkWrite {
	return &GroupBulkWrite{handler: h}
}

// AddParam registers data at address for id. It returns false for an invalid
// or duplicate id, or empty data.
func (g *GroupBulkWrite) AddParam(id byte, address uint16, data []byte) bool {
	if !validDeviceID(id) || len(data) == 0 || len(data) > 0xFFFF {
		return false
	}
	return g.entries.add(id, &bulkWriteEntry{address: address, data: bytes.Clone(data)})
}

// ChangeParam replaces the address and data of a registered id.
func (g *GroupBulkWrite) ChangeParam(id byte, address uint16, data []byte) bool {
	if len(data) == 0 || len(data) > 0xFFFF {
		return false
	}
	e, ok := g.entries.get(id)
	if !ok {
		return false
	}
	e.address = address
	e.data = bytes.Clone(data)
	return true
}

// RemoveParam drops id from the group.
func (g *GroupBulkWrite) RemoveParam(id byte) {
	g.entries.remove(id)
}

// ClearParam empties the group.
func (g *GroupBulkWrite) ClearParam() {
	g.entries.clear()
}

// IDs returns the registered ids in transmit order.
func (g *GroupBulkWrite) IDs() []byte {
	return g.entries.ids()
}

// Len returns the number of registered ids.
func (g *GroupBulkWrite) Len() int {
	return g.entries.len()
}

// TxPacket sends [id, address(2), length(2), data...] for every entry in
// registration order.
func (g *GroupBulkWrite) TxPacket() error {
	if g.handler.Protocol() != Protocol2 || g.entries.len() == 0 {
		return CommNotAvailable
	}
	var params []byte
	for _, id := range g.entries.order {
		e := g.entries.items[id]
		params = append(params, id)
		params = binary.LittleEndian.AppendUint16(params, e.address)
		params = binary.LittleEndian.AppendUint16(params, uint16(len(e.data)))
		params = append(params, e.data...)
	}
	return g.handler.BulkWriteTxOnly(params)
}
