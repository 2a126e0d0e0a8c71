package mercury

// GroupSyncRead reads the same register range from many devices in one
// transaction. Protocol 2.0 only; on Protocol 1.0 every transaction reports
// CommNotAvailable.
type GroupSyncRead struct {
	readGroup
	address uint16
	length  uint16
}

// NewGroupSyncRead creates a sync read of length bytes at address.
func NewGroupSyncRead(h *Handler, address, length uint16) *GroupSyncRead {
	return &GroupSyncRead{
		readGroup: readGroup{handler: h},
		address:   address,
		length:    length,
	}
}

// AddParam registers id. It returns false for an invalid or duplicate id.
func (g *GroupSyncRead) AddParam(id byte) bool {
	if !validDeviceID(id) {
		return false
	}
	return g.entries.add(id, &readEntry{address: g.address, length: g.length})
}

// TxPacket sends the sync read request.
func (g *GroupSyncRead) TxPacket() error {
	if g.handler.Protocol() != Protocol2 || g.entries.len() == 0 {
		return CommNotAvailable
	}
	return g.handler.SyncReadTx(g.address, g.length, g.entries.ids())
}

// RxPacket collects the combined response of the last TxPacket.
func (g *GroupSyncRead) RxPacket() error {
	if g.handler.Protocol() != Protocol2 {
		return CommNotAvailable
	}
	return g.receive()
}

// TxRxPacket sends the request and collects the combined response.
func (g *GroupSyncRead) TxRxPacket() error {
	if err := g.TxPacket(); err != nil {
		g.ok = false
		return err
	}
	return g.RxPacket()
}
