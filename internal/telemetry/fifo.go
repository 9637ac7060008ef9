package telemetry

import (
	"fmt"
	"sync"
)

// PASSTHROUGH_FIFO_SIZE matches the script input queue of the radio
const PASSTHROUGH_FIFO_SIZE = 256

// Fifo is a bounded byte queue shared between the telemetry receive path
// and an application reader. Records are stored as they appear on the wire
// after the address byte: [length][id][payload...].
type Fifo struct {
	mu     sync.Mutex
	buffer []byte
	head   int
	tail   int
	size   int
	name   string
}

// NewFifo creates a FIFO with the given capacity in bytes
func NewFifo(capacity int, name string) *Fifo {
	return &Fifo{
		buffer: make([]byte, capacity),
		name:   name,
	}
}

// HasSpace checks if the FIFO can take length more bytes
func (f *Fifo) HasSpace(length int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buffer)-f.size >= length
}

// AddData appends data atomically. Returns false, adding nothing, when
// there is not room for all of it.
func (f *Fifo) AddData(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.buffer)-f.size < len(data) {
		return false
	}
	for _, b := range data {
		f.buffer[f.head] = b
		f.head = (f.head + 1) % len(f.buffer)
		f.size++
	}
	return true
}

// Get pops one record into buf and returns the number of bytes written
// (frame id + payload). The length byte itself is consumed.
func (f *Fifo) Get(buf []byte) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.size == 0 {
		return 0, false
	}
	length := int(f.buffer[f.tail])
	if length == 0 {
		// corrupt record; drop the byte so the queue keeps moving
		f.pop()
		return 0, false
	}
	if f.size < length {
		return 0, false
	}
	if len(buf) < length-1 {
		return 0, false
	}
	f.pop()
	for i := 0; i < length-1; i++ {
		buf[i] = f.pop()
	}
	return length - 1, true
}

func (f *Fifo) pop() byte {
	b := f.buffer[f.tail]
	f.tail = (f.tail + 1) % len(f.buffer)
	f.size--
	return b
}

// Clear empties the FIFO
func (f *Fifo) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = 0
	f.tail = 0
	f.size = 0
}

// DataSize returns amount of data in buffer
func (f *Fifo) DataSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// String returns a string representation for debugging
func (f *Fifo) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("Fifo[%s]: size=%d, capacity=%d, head=%d, tail=%d",
		f.name, f.size, len(f.buffer), f.head, f.tail)
}
