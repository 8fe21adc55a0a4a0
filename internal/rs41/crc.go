package rs41

import "github.com/sigurn/crc16"

// Block CRCs use CRC-16/CCITT-FALSE: polynomial 0x1021, init 0xFFFF, MSB
// first, no final XOR. The sum is stored little endian after the block data.
var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// CRC16 calculates the block checksum of data.
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
