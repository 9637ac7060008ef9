package crossfire

// BuildChannelsFrame packs channel outputs (-1024..1024 per channel) into
// an RC channels frame. frame must hold CHANNELS_FRAME_LENGTH bytes.
// Missing channels are sent centered. Returns the frame length.
func BuildChannelsFrame(frame []byte, outputs []int16) int {
	frame[0] = MODULE_ADDRESS
	frame[1] = 1 + CHANNELS_PAYLOAD_LEN + 1
	frame[2] = CHANNELS_ID

	pos := 3
	var bits uint32
	var available uint
	for i := 0; i < CROSSFIRE_CHANNELS_COUNT; i++ {
		var out int32
		if i < len(outputs) {
			out = int32(outputs[i])
		}
		val := CROSSFIRE_CENTER + out*4/5
		if val < 0 {
			val = 0
		} else if val > 2*CROSSFIRE_CENTER {
			val = 2 * CROSSFIRE_CENTER
		}
		bits |= uint32(val) << available
		available += CROSSFIRE_CH_BITS
		for available >= 8 {
			frame[pos] = byte(bits)
			pos++
			bits >>= 8
			available -= 8
		}
	}
	frame[pos] = CRC8(frame[2:pos])
	return pos + 1
}

// ChannelValue returns channel i unpacked from a channels frame payload
func ChannelValue(payload []byte, i int) uint16 {
	bit := i * CROSSFIRE_CH_BITS
	var v uint32
	for n := 0; n < 3 && bit/8+n < len(payload); n++ {
		v |= uint32(payload[bit/8+n]) << (8 * n)
	}
	return uint16(v>>(bit%8)) & 0x07FF
}
