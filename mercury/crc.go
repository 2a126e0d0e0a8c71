package mercury

import "github.com/sigurn/crc16"

// Protocol 2.0 frames carry CRC-16/BUYPASS: polynomial 0x8005, zero init,
// no reflection, no final xor.
var crcTable = crc16.MakeTable(crc16.CRC16_BUYPASS)

// CRC computes the Protocol 2.0 CRC over data.
func CRC(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}

// Checksum computes the Protocol 1.0 checksum: the ones' complement of the
// byte sum, truncated to 8 bits.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum
}
