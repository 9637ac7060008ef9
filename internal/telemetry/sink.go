package telemetry

import "fmt"

// Protocol identifies the telemetry protocol a reading came from
type Protocol uint8

const (
	PROTOCOL_TELEMETRY_CROSSFIRE Protocol = 1
)

// Reading is one decoded sensor field in engineering units.
// Precision is a decimal count for most sensors; text sensors use it as
// the byte offset of the chunk within the string.
type Reading struct {
	Protocol  Protocol
	ID        uint16
	Instance  uint8
	SubID     uint8
	Value     int32
	Unit      Unit
	Precision uint8
}

// String returns a formatted representation for debug traces
func (r Reading) String() string {
	return fmt.Sprintf("id=0x%02X sub=%d inst=%d value=%d%s prec=%d",
		r.ID, r.SubID, r.Instance, r.Value, r.Unit, r.Precision)
}

// Sink receives decoded sensor values
type Sink interface {
	SetValue(r Reading)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(r Reading)

func (f SinkFunc) SetValue(r Reading) { f(r) }
