package pulses

import (
	"log"

	"github.com/dbehnke/rclink/internal/protocol"
)

// Driver is the hardware side of one pulse protocol. Init starts the
// transport when the protocol becomes current, Disable stops it when the
// protocol is replaced, and Setup builds the output for each tick.
// initNeeded is true on the tick the protocol was switched to; Init runs
// after Setup on that tick.
type Driver interface {
	Init(port protocol.Port)
	Disable(port protocol.Port)
	Setup(port protocol.Port, initNeeded bool)
}

// ModeHandler is implemented by drivers that run bind, range check or
// factory reset on the module itself. done is called when a bind started
// by the handler completes.
type ModeHandler interface {
	ModeChanged(port protocol.Port, mode protocol.ModuleMode, done func(success bool))
}

const numProtocols = int(protocol.PROTO_AFHDS3) + 1

// driverTable maps each protocol to its driver
type driverTable [numProtocols]Driver

func (t *driverTable) get(p protocol.PulseProtocol) Driver {
	if int(p) < len(t) && t[p] != nil {
		return t[p]
	}
	return noPulses{}
}

// noPulses is used for PROTO_NONE and protocols without a driver
type noPulses struct{}

func (noPulses) Init(protocol.Port)        {}
func (noPulses) Disable(protocol.Port)     {}
func (noPulses) Setup(protocol.Port, bool) {}

// LogDriver stands in for hardware this process does not drive; it
// only reports start and stop.
type LogDriver struct {
	Name   string
	Logger *log.Logger
}

func (d LogDriver) Init(port protocol.Port) {
	if d.Logger != nil {
		d.Logger.Printf("Pulses: %s init on %s module", d.Name, port)
	}
}

func (d LogDriver) Disable(port protocol.Port) {
	if d.Logger != nil {
		d.Logger.Printf("Pulses: %s disable on %s module", d.Name, port)
	}
}

func (d LogDriver) Setup(protocol.Port, bool) {}
