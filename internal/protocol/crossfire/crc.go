package crossfire

import "github.com/sigurn/crc8"

// CRC-8/DVB-S2: poly 0xD5, init 0x00, no reflection, no final xor
var crcTable = crc8.MakeTable(crc8.CRC8_DVB_S2)

// Command frames carry a second checksum: poly 0xBA, init 0x00
var commandCRCTable = crc8.MakeTable(crc8.Params{
	Poly: 0xBA,
	Init: 0x00,
	Name: "CRC-8/CRSF-COMMAND",
})

// CommandCRC8 computes the inner checksum of a COMMAND_ID payload over
// [id .. command data]
func CommandCRC8(data []byte) byte {
	return crc8.Checksum(data, commandCRCTable)
}

// CRC8 computes the checksum the link uses over [id .. payload end]
func CRC8(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}

// checkFrameCRC validates a complete frame [address][length][id...][crc]
func checkFrameCRC(frame []byte) bool {
	length := int(frame[1])
	if length < 2 || len(frame) != length+FRAME_OVERHEAD {
		return false
	}
	return CRC8(frame[2:length+1]) == frame[length+1]
}
