package crossfire

import "fmt"

// Assembler accumulates inbound bytes into one length-delimited frame.
// It holds at most one frame in flight and never backtracks: after any
// framing problem the next byte must be a fresh address byte.
type Assembler struct {
	buf   [TELEMETRY_RX_PACKET_SIZE]byte
	count int
}

// Count returns the number of bytes buffered for the frame in progress
func (a *Assembler) Count() int {
	return a.count
}

// Reset drops any partial frame
func (a *Assembler) Reset() {
	a.count = 0
}

// Feed adds one byte. When the byte completes a frame the frame is
// returned; the slice aliases the receive buffer and is only valid until
// the next call to Feed.
func (a *Assembler) Feed(data byte) ([]byte, error) {
	if a.count == 0 && data != RADIO_ADDRESS {
		return nil, fmt.Errorf("%w: address 0x%02X", ErrFraming, data)
	}

	if a.count == 1 && (data < 2 || int(data) > TELEMETRY_RX_PACKET_SIZE-2) {
		a.count = 0
		return nil, fmt.Errorf("%w: length 0x%02X", ErrFraming, data)
	}

	a.buf[a.count] = data
	a.count++

	if a.count > 4 {
		length := int(a.buf[1])
		if length+FRAME_OVERHEAD == a.count {
			frame := a.buf[:a.count]
			a.count = 0
			return frame, nil
		}
	}

	if a.count >= TELEMETRY_RX_PACKET_SIZE {
		a.count = 0
		return nil, fmt.Errorf("%w: %d bytes", ErrOverflow, TELEMETRY_RX_PACKET_SIZE)
	}
	return nil, nil
}
