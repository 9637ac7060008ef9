package crossfire

// Crossfire link addresses, frame types and sizes

const (
	// Device addresses
	BROADCAST_ADDRESS = 0x00
	RADIO_ADDRESS     = 0xEA
	MODULE_ADDRESS    = 0xEE

	// Outgoing frames addressed by the radio start with this byte
	SYNC_BYTE = 0xC8

	// Frame types
	GPS_ID              = 0x02
	CF_VARIO_ID         = 0x07
	BATTERY_ID          = 0x08
	LINK_ID             = 0x14
	CHANNELS_ID         = 0x16
	ATTITUDE_ID         = 0x1E
	FLIGHT_MODE_ID      = 0x21
	PING_DEVICES_ID     = 0x28
	DEVICE_INFO_ID      = 0x29
	REQUEST_SETTINGS_ID = 0x2A
	COMMAND_ID          = 0x32
	RADIO_ID            = 0x3A

	// RADIO_ID sub-command carrying the module timing correction
	RADIO_SYNC_SUBCOMMAND = 0x10

	// COMMAND_ID realm and command asking the receiver to bind
	COMMAND_RX      = 0x10
	COMMAND_RX_BIND = 0x01
)

const (
	// Receive buffer holds exactly one frame
	TELEMETRY_RX_PACKET_SIZE = 128

	// [address][length] precede the id; the crc trails the payload
	FRAME_OVERHEAD = 2

	CROSSFIRE_CHANNELS_COUNT = 16
	CROSSFIRE_CH_BITS        = 11
	CROSSFIRE_CENTER         = 0x3E0

	// [0xEE][24][0x16][22 bytes channels][crc]
	CHANNELS_FRAME_LENGTH = 26
	CHANNELS_PAYLOAD_LEN  = 22
)
