package mercury

import "bytes"

// GroupSyncWrite writes the same register range on many devices in one
// broadcast transaction. No status is returned. It is not safe for
// concurrent use.
type GroupSyncWrite struct {
	handler *Handler
	address uint16
	length  uint16
	entries entries[[]byte]
}

// NewGroupSyncWrite creates a sync write of length bytes at address.
func NewGroupSyncWrite(h *Handler, address, length uint16) *GroupSyncWrite {
	return &GroupSyncWrite{handler: h, address: address, length: length}
}

// AddParam registers data for id. It returns false, leaving the group
// unchanged, when id is invalid or already present or data is not exactly
// the group's length.
func (g *GroupSyncWrite) AddParam(id byte, data []byte) bool {
	if !validDeviceID(id) || len(data) != int(g.length) {
		return false
	}
	buf := bytes.Clone(data)
	return g.entries.add(id, &buf)
}

// ChangeParam replaces the data of a registered id.
func (g *GroupSyncWrite) ChangeParam(id byte, data []byte) bool {
	if len(data) != int(g.length) {
		return false
	}
	e, ok := g.entries.get(id)
	if !ok {
		return false
	}
	*e = bytes.Clone(data)
	return true
}

// RemoveParam drops id from the group.
func (g *GroupSyncWrite) RemoveParam(id byte) {
	g.entries.remove(id)
}

// ClearParam empties the group.
func (g *GroupSyncWrite) ClearParam() {
	g.entries.clear()
}

// IDs returns the registered ids in transmit order.
func (g *GroupSyncWrite) IDs() []byte {
	return g.entries.ids()
}

// Len returns the number of registered ids.
func (g *GroupSyncWrite) Len() int {
	return g.entries.len()
}

// TxPacket sends [id, data...] for every entry in registration order.
func (g *GroupSyncWrite) TxPacket() error {
	if g.entries.len() == 0 {
		return CommNotAvailable
	}
	params := make([]byte, 0, g.entries.len()*(1+int(g.length)))
	for _, id := range g.entries.order {
		params = append(params, id)
		params = append(params, *g.entries.items[id]...)
	}
	return g.handler.SyncWriteTxOnly(g.address, g.length, params)
}
