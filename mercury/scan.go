package mercury

import "fmt"

// Found is a device that answered a scan.
type Found struct {
	ID    byte
	Model uint16
}

// Scan pings every id in [from, to] one at a time and returns those that
// answered, with their model numbers. Ids that time out or answer with a
// corrupt status are skipped; any other failure stops the scan.
func (h *Handler) Scan(from, to byte) ([]Found, error) {
	if from > to || to > MaxID {
		return nil, fmt.Errorf("invalid ID range: %d to %d", from, to)
	}

	var found []Found
	for id := int(from); id <= int(to); id++ {
		model, _, err := h.PingModel(byte(id))
		switch ResultOf(err) {
		case CommSuccess:
			found = append(found, Found{ID: byte(id), Model: model})
		case CommRxTimeout, CommRxCorrupt:
			// No response at this ID
		default:
			return found, err
		}
	}
	h.log.WithField("found", len(found)).Debug("scan complete")
	return found, nil
}
