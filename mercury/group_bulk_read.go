package mercury

import "encoding/binary"

// GroupBulkRead reads an independent register range from each device in one
// transaction. The combined response is consumed entry by entry, each with
// its own length.
type GroupBulkRead struct {
	readGroup
}

// NewGroupBulkRead creates an empty bulk read.
func NewGroupBulkRead(h *Handler) *GroupBulkRead {
	return &GroupBulkRead{readGroup: readGroup{handler: h}}
}

// AddParam registers length bytes at address for id. It returns false for an
// invalid or duplicate id, or a zero length.
func (g *GroupBulkRead) AddParam(id byte, address, length uint16) bool {
	if !validDeviceID(id) || length == 0 {
		return false
	}
	return g.entries.add(id, &readEntry{address: address, length: length})
}

func (g *GroupBulkRead) params() ([]byte, error) {
	proto := g.handler.Protocol()
	buf := make([]byte, 0, g.entries.len()*5)
	for _, id := range g.entries.order {
		e := g.entries.items[id]
		if proto == Protocol1 {
			if e.address > 0xFF || e.length > 0xFF {
				return nil, CommTxError
			}
			buf = append(buf, byte(e.length), id, byte(e.address))
			continue
		}
		buf = append(buf, id)
		buf = binary.LittleEndian.AppendUint16(buf, e.address)
		buf = binary.LittleEndian.AppendUint16(buf, e.length)
	}
	return buf, nil
}

// TxPacket sends the bulk read request.
func (g *GroupBulkRead) TxPacket() error {
	if g.entries.len() == 0 {
		return CommNotAvailable
	}
	params, err := g.params()
	if err != nil {
		return err
	}
	return g.handler.BulkReadTx(params)
}

// RxPacket collects the combined response of the last TxPacket.
func (g *GroupBulkRead) RxPacket() error {
	return g.receive()
}

// TxRxPacket sends the request and collects the combined response.
func (g *GroupBulkRead) TxRxPacket() error {
	if err := g.TxPacket(); err != nil {
		g.ok = false
		return err
	}
	return g.RxPacket()
}
