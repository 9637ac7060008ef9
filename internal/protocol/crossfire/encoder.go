package crossfire

import (
	"github.com/dbehnke/rclink/internal/telemetry"
)

// Outbound is where the encoder writes frames for the module
type Outbound interface {
	HasSpace() bool
	Write(frame []byte, ep telemetry.Endpoint) bool
}

// Encoder builds frames from application payloads [id][payload...]
type Encoder struct {
	out         Outbound
	passthrough *telemetry.Fifo
}

// NewEncoder creates an encoder writing to out. passthrough, when set, is
// cleared on every send so replies are matched to the latest request.
func NewEncoder(out Outbound, passthrough *telemetry.Fifo) *Encoder {
	return &Encoder{out: out, passthrough: passthrough}
}

// Send frames payload as [sync][1+len][payload][crc8] and hands it to the
// outbound buffer in one step. It returns false without side effects when
// the buffer is still holding a frame or the frame would not fit. Of
// concurrent senders at most one publishes; the others get false.
func (e *Encoder) Send(payload []byte) bool {
	var frame [telemetry.OUTPUT_BUFFER_SIZE]byte
	if len(payload)+3 > len(frame) || !e.out.HasSpace() {
		return false
	}
	// cleared before the request can reach the module
	if e.passthrough != nil {
		e.passthrough.Clear()
	}

	frame[0] = SYNC_BYTE
	frame[1] = byte(1 + len(payload))
	n := 2 + copy(frame[2:], payload)
	frame[n] = CRC8(payload)
	n++

	return e.out.Write(frame[:n], telemetry.ENDPOINT_SPORT)
}

// Receive pops one passthrough frame ([id][payload...]) into buf
func (e *Encoder) Receive(buf []byte) (int, bool) {
	if e.passthrough == nil {
		return 0, false
	}
	return e.passthrough.Get(buf)
}
