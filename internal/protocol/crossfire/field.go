package crossfire

// ExtractSigned reads n big-endian bytes at offset and sign-extends them
// from the high bit of the first byte. hasData is false only when every
// byte read is 0xFF, the wire marker for an unpopulated field; a negative
// but populated value still reports hasData.
func ExtractSigned(buf []byte, offset, n int) (value int32, hasData bool, err error) {
	if n < 1 || n > 4 || offset < 0 || offset+n > len(buf) {
		return 0, false, ErrFieldRange
	}

	if buf[offset]&0x80 != 0 {
		value = -1
	}
	for _, b := range buf[offset : offset+n] {
		value <<= 8
		value |= int32(b)
		if b != 0xFF {
			hasData = true
		}
	}
	return value, hasData, nil
}
