package telemetry

import "sync"

// OUTPUT_BUFFER_SIZE bounds one outgoing telemetry frame
const OUTPUT_BUFFER_SIZE = 64

// Endpoint selects the downlink a pending frame is addressed to
type Endpoint uint8

const (
	ENDPOINT_NONE Endpoint = iota
	ENDPOINT_SPORT
)

// OutputBuffer holds at most one outgoing frame. Bytes pushed are staged
// and become visible to the transmit side only once SetDestination
// publishes the frame, so a half-built frame is never sent.
type OutputBuffer struct {
	mu          sync.Mutex
	data        [OUTPUT_BUFFER_SIZE]byte
	size        int
	destination Endpoint
	overflow    bool
}

// NewOutputBuffer creates an empty output buffer
func NewOutputBuffer() *OutputBuffer {
	return &OutputBuffer{}
}

// HasSpace reports whether a new frame may be started
func (o *OutputBuffer) HasSpace() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.destination == ENDPOINT_NONE
}

// Push stages one byte of the frame being built
func (o *OutputBuffer) Push(b byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.destination != ENDPOINT_NONE {
		return
	}
	if o.size >= len(o.data) {
		o.overflow = true
		return
	}
	o.data[o.size] = b
	o.size++
}

// SetDestination publishes the staged frame. A frame that did not fit is
// discarded instead.
func (o *OutputBuffer) SetDestination(ep Endpoint) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.overflow || o.size == 0 {
		o.size = 0
		o.overflow = false
		return
	}
	o.destination = ep
}

// Write stages and publishes a whole frame under one lock. Returns false,
// leaving the buffer unchanged, while a frame is pending or when frame
// does not fit.
func (o *OutputBuffer) Write(frame []byte, ep Endpoint) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.destination != ENDPOINT_NONE || ep == ENDPOINT_NONE {
		return false
	}
	if len(frame) == 0 || len(frame) > len(o.data) {
		return false
	}
	o.size = copy(o.data[:], frame)
	o.overflow = false
	o.destination = ep
	return true
}

// Take copies the published frame into dst and releases the buffer.
// Returns false when nothing is pending.
func (o *OutputBuffer) Take(dst []byte) (int, Endpoint, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.destination == ENDPOINT_NONE {
		return 0, ENDPOINT_NONE, false
	}
	n := copy(dst, o.data[:o.size])
	ep := o.destination
	o.size = 0
	o.destination = ENDPOINT_NONE
	return n, ep, true
}

// Pending reports whether a published frame waits for the transmit side
func (o *OutputBuffer) Pending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.destination != ENDPOINT_NONE
}
