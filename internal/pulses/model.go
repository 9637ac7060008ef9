package pulses

import (
	"sync"

	"github.com/dbehnke/rclink/internal/protocol"
)

// ModuleData is the configuration of one module port
type ModuleData struct {
	Type       protocol.ModuleType
	RFProtocol int8

	// First channel sent, and channel count as an offset from 8
	ChannelsStart uint8
	ChannelsCount int8

	// PPM frame length offset in 0.5ms steps
	PPMFrameLength int8

	Failsafe [protocol.MAX_OUTPUT_CHANNELS]int16
}

// Model is the read-only configuration snapshot the controller works from
type Model struct {
	Modules [protocol.NUM_MODULES]ModuleData
}

// ChannelRange returns the [first, end) output channels the module sends
func (m *ModuleData) ChannelRange() (int, int) {
	first := int(m.ChannelsStart)
	return first, first + 8 + int(m.ChannelsCount)
}

// CaptureFailsafe stores the live outputs as custom failsafe positions.
// Channels the module does not send are zeroed; channels already set to a
// hold or no-pulse marker are kept.
func (m *ModuleData) CaptureFailsafe(outputs []int16) {
	first, end := m.ChannelRange()
	for ch := 0; ch < protocol.MAX_OUTPUT_CHANNELS; ch++ {
		if ch < first || ch >= end {
			m.Failsafe[ch] = 0
		} else if m.Failsafe[ch] < protocol.FAILSAFE_CHANNEL_HOLD && ch < len(outputs) {
			m.Failsafe[ch] = outputs[ch]
		}
	}
}

// Features selects which protocol variants this radio supports
type Features struct {
	InternalPPM bool
	FlySky      bool
	DSM2        bool
	Crossfire   bool
	Multimodule bool
	AFHDS3      bool
}

// DefaultFeatures returns the variant set of a typical external-bay radio
func DefaultFeatures() Features {
	return Features{
		DSM2:        true,
		Crossfire:   true,
		Multimodule: true,
	}
}

// Channels holds the mixer outputs, -1024..1024 per channel
type Channels struct {
	mu      sync.RWMutex
	outputs [protocol.MAX_OUTPUT_CHANNELS]int16
}

// Set updates one channel output
func (c *Channels) Set(ch int, value int16) {
	if ch < 0 || ch >= protocol.MAX_OUTPUT_CHANNELS {
		return
	}
	c.mu.Lock()
	c.outputs[ch] = value
	c.mu.Unlock()
}

// SetAll replaces the outputs from values, starting at channel 0
func (c *Channels) SetAll(values []int16) {
	c.mu.Lock()
	copy(c.outputs[:], values)
	c.mu.Unlock()
}

// Snapshot returns a copy of all outputs
func (c *Channels) Snapshot() [protocol.MAX_OUTPUT_CHANNELS]int16 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.outputs
}
