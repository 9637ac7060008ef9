package telemetry

import (
	"sync"

	"github.com/dbehnke/rclink/internal/protocol"
)

// LinkState tracks link presence and a filtered RSSI value.
// The receive path sets it; the UI/alarm side polls it.
type LinkState struct {
	mu        sync.Mutex
	rssi      uint8
	minRSSI   uint8
	hasValue  bool
	streaming int
}

// NewLinkState creates an empty link tracker
func NewLinkState() *LinkState {
	return &LinkState{}
}

// Set records a new RSSI/quality sample and re-arms the streaming timeout
func (l *LinkState) Set(value uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.hasValue {
		l.rssi = value
		l.minRSSI = value
		l.hasValue = true
	} else {
		l.rssi = uint8((uint16(l.rssi)*3 + uint16(value) + 2) / 4)
		if l.rssi < l.minRSSI {
			l.minRSSI = l.rssi
		}
	}
	l.streaming = protocol.TELEMETRY_TIMEOUT_TICKS
}

// Reset clears RSSI tracking. Streaming is left to time out on its own.
func (l *LinkState) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rssi = 0
	l.minRSSI = 0
	l.hasValue = false
}

// Tick decrements the streaming counter; call once per 10ms timer tick
func (l *LinkState) Tick() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.streaming > 0 {
		l.streaming--
	}
}

// RSSI returns the filtered value and whether any sample is held
func (l *LinkState) RSSI() (uint8, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rssi, l.hasValue
}

// MinRSSI returns the lowest filtered value seen since the last reset
func (l *LinkState) MinRSSI() uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minRSSI
}

// IsStreaming reports whether link quality was received within the timeout
func (l *LinkState) IsStreaming() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.streaming > 0
}
