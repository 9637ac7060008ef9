package pulses

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbehnke/rclink/internal/metrics"
	"github.com/dbehnke/rclink/internal/protocol"
)

// FAILSAFE_COUNTER_RELOAD is the number of pulse ticks between failsafe
// transmissions on protocols that repeat them
const FAILSAFE_COUNTER_RELOAD = 100

// Scheduler receives the period until the next SetupPulses for a port.
// It is a request only; nothing needs cancelling when the protocol changes.
type Scheduler interface {
	RequestNextTick(port protocol.Port, period time.Duration)
}

// PortState is the controller's view of one module port
type PortState struct {
	// Protocol driving the hardware; PROTO_NONE until first resolved
	Protocol protocol.PulseProtocol
	Mode     protocol.ModuleMode

	// Ticks until failsafe positions are due again
	FailsafeCounter uint16
	FailsafeDue     bool

	// Bind hold-off start tick, valid while bindStarted
	bindStart   uint32
	bindStarted bool
}

// Controller decides which pulse protocol drives each port and switches
// hardware between protocols.
type Controller struct {
	// serializes SetupPulses; driver hooks run holding only this lock
	tickMu sync.Mutex

	mu        sync.Mutex
	model     Model
	features  Features
	ports     [protocol.NUM_MODULES]PortState
	drivers   driverTable
	heartbeat uint8
	idle      chan<- struct{}

	paused    atomic.Bool
	scheduler Scheduler
	clock     Clock
	sync      [protocol.NUM_MODULES]*ModuleSyncStatus
	channels  *Channels
	metrics   *metrics.Collector
	logger    *log.Logger
}

// ControllerConfig holds the collaborators of a Controller
type ControllerConfig struct {
	Model     Model
	Features  Features
	Scheduler Scheduler
	Clock     Clock
	Channels  *Channels
	Metrics   *metrics.Collector
	Logger    *log.Logger
}

// NewController creates a controller with every port at PROTO_NONE
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		model:     cfg.Model,
		features:  cfg.Features,
		scheduler: cfg.Scheduler,
		clock:     cfg.Clock,
		channels:  cfg.Channels,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if c.clock == nil {
		tc := NewTickClock()
		tc.Start()
		c.clock = tc
	}
	if c.channels == nil {
		c.channels = &Channels{}
	}
	for i := range c.ports {
		c.ports[i].FailsafeCounter = FAILSAFE_COUNTER_RELOAD
		c.sync[i] = NewModuleSyncStatus(c.clock)
	}
	return c
}

// RegisterDriver installs d for each of protos
func (c *Controller) RegisterDriver(d Driver, protos ...protocol.PulseProtocol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range protos {
		if int(p) < len(c.drivers) {
			c.drivers[p] = d
		}
	}
}

// SetModel replaces the configuration snapshot
func (c *Controller) SetModel(m Model) {
	c.mu.Lock()
	c.model = m
	c.mu.Unlock()
}

// Model returns a copy of the configuration snapshot
func (c *Controller) Model() Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// PausePulses forces every port to PROTO_NONE until ResumePulses
func (c *Controller) PausePulses() {
	c.paused.Store(true)
}

// ResumePulses ends PausePulses
func (c *Controller) ResumePulses() {
	c.paused.Store(false)
}

// SetIdleWaiter registers a channel signalled on every tick where both
// ports are off. The send never blocks; give it a buffer of one.
func (c *Controller) SetIdleWaiter(ch chan<- struct{}) {
	c.mu.Lock()
	c.idle = ch
	c.mu.Unlock()
}

// SyncStatus returns the module timing tracker for port
func (c *Controller) SyncStatus(port protocol.Port) *ModuleSyncStatus {
	return c.sync[port]
}

// Channels returns the channel outputs the controller sends
func (c *Controller) Channels() *Channels {
	return c.channels
}

// PortState returns a copy of the state of port
func (c *Controller) PortState(port protocol.Port) PortState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ports[port]
}

// Heartbeat returns the ports set up since the last call, one bit per
// port, and clears them
func (c *Controller) Heartbeat() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	hb := c.heartbeat
	c.heartbeat = 0
	return hb
}

// ModuleChannels returns the outputs starting at the port's first channel
func (c *Controller) ModuleChannels(port protocol.Port) []int16 {
	c.mu.Lock()
	start := int(c.model.Modules[port].ChannelsStart)
	c.mu.Unlock()

	outputs := c.channels.Snapshot()
	if start >= len(outputs) {
		return nil
	}
	return outputs[start:]
}

// RequiredProtocol resolves the protocol port should be running now
func (c *Controller) RequiredProtocol(port protocol.Port) protocol.PulseProtocol {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requiredProtocol(port)
}

func (c *Controller) requiredProtocol(port protocol.Port) protocol.PulseProtocol {
	required := protocol.PROTO_NONE

	if port == protocol.INTERNAL_MODULE {
		switch c.model.Modules[port].Type {
		case protocol.MODULE_TYPE_PPM:
			if c.features.InternalPPM {
				required = protocol.PROTO_PPM
			}
		case protocol.MODULE_TYPE_FLYSKY:
			if c.features.FlySky {
				required = protocol.PROTO_FLYSKY
			}
		case protocol.MODULE_TYPE_XJT:
			required = protocol.PROTO_PXX
		}
	} else {
		port = protocol.EXTERNAL_MODULE
		module := &c.model.Modules[port]
		switch module.Type {
		case protocol.MODULE_TYPE_PPM:
			required = protocol.PROTO_PPM
		case protocol.MODULE_TYPE_XJT, protocol.MODULE_TYPE_R9M:
			required = protocol.PROTO_PXX
		case protocol.MODULE_TYPE_FLYSKY:
			if c.features.FlySky {
				required = protocol.PROTO_FLYSKY
			}
		case protocol.MODULE_TYPE_SBUS:
			required = protocol.PROTO_SBUS
		case protocol.MODULE_TYPE_MULTIMODULE:
			if c.features.Multimodule {
				required = protocol.PROTO_MULTIMODULE
			}
		case protocol.MODULE_TYPE_DSM2:
			if c.features.DSM2 {
				required = dsm2Protocol(module.RFProtocol)
				if c.bindHoldOff(port) {
					required = protocol.PROTO_NONE
				}
			}
		case protocol.MODULE_TYPE_CROSSFIRE:
			if c.features.Crossfire {
				required = protocol.PROTO_CROSSFIRE
			}
		case protocol.MODULE_TYPE_AFHDS3:
			if c.features.AFHDS3 {
				required = protocol.PROTO_AFHDS3
			}
		}
	}

	if c.paused.Load() {
		required = protocol.PROTO_NONE
	}
	return required
}

func dsm2Protocol(rf int8) protocol.PulseProtocol {
	p := int(protocol.PROTO_DSM2_LP45) + int(rf)
	if p < int(protocol.PROTO_DSM2_LP45) {
		p = int(protocol.PROTO_DSM2_LP45)
	} else if p > int(protocol.PROTO_DSM2_DSMX) {
		p = int(protocol.PROTO_DSM2_DSMX)
	}
	return protocol.PulseProtocol(p)
}

// bindHoldOff keeps the module off for BIND_HOLDOFF_TICKS after bind mode
// is first seen. Leaving bind mode clears the window.
func (c *Controller) bindHoldOff(port protocol.Port) bool {
	st := &c.ports[port]
	if st.Mode != protocol.MODULE_BIND {
		st.bindStarted = false
		return false
	}
	now := c.clock.Now()
	if !st.bindStarted {
		st.bindStart = now
		st.bindStarted = true
	}
	return now-st.bindStart < protocol.BIND_HOLDOFF_TICKS
}

// SetupPulses runs one scheduling tick for port: resolve the protocol,
// switch hardware if it changed, build this tick's output and request the
// next tick.
func (c *Controller) SetupPulses(port protocol.Port) {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	c.mu.Lock()
	required := c.requiredProtocol(port)
	st := &c.ports[port]
	c.heartbeat |= 1 << port

	initNeeded := false
	previous := st.Protocol
	if previous != required {
		initNeeded = true
		st.Protocol = required
		st.FailsafeCounter = FAILSAFE_COUNTER_RELOAD
	}

	st.FailsafeDue = false
	if st.FailsafeCounter > 0 {
		st.FailsafeCounter--
	}
	if st.FailsafeCounter == 0 {
		st.FailsafeDue = true
		st.FailsafeCounter = FAILSAFE_COUNTER_RELOAD
	}

	oldDriver := c.drivers.get(previous)
	driver := c.drivers.get(required)
	period, schedule := c.period(port, required)
	c.mu.Unlock()

	if initNeeded {
		oldDriver.Disable(port)
		if c.logger != nil {
			c.logger.Printf("Pulses: %s module %s -> %s", port, previous, required)
		}
		c.metrics.ProtocolChanged(port.String(), required.String(), int(required))
	}

	driver.Setup(port, initNeeded)
	if schedule && c.scheduler != nil {
		c.scheduler.RequestNextTick(port, period)
	}

	if initNeeded {
		driver.Init(port)
	}

	c.signalIdle()
}

// period returns the tick period for the protocol; PROTO_NONE requests none
func (c *Controller) period(port protocol.Port, p protocol.PulseProtocol) (time.Duration, bool) {
	switch p {
	case protocol.PROTO_PXX:
		return protocol.PXX_PERIOD, true
	case protocol.PROTO_SBUS:
		return protocol.SBUS_PERIOD, true
	case protocol.PROTO_DSM2_LP45, protocol.PROTO_DSM2_DSM2, protocol.PROTO_DSM2_DSMX:
		return protocol.DSM2_PERIOD, true
	case protocol.PROTO_CROSSFIRE:
		if s := c.sync[port]; s.IsValid() {
			rate := s.Period()
			c.metrics.RefreshRate(port.String(), uint32(rate/time.Microsecond))
			return rate, true
		}
		return protocol.CROSSFIRE_FRAME_PERIOD, true
	case protocol.PROTO_MULTIMODULE:
		return protocol.MULTIMODULE_PERIOD, true
	case protocol.PROTO_FLYSKY:
		return protocol.FLYSKY_PERIOD, true
	case protocol.PROTO_AFHDS3:
		return protocol.AFHDS3_PERIOD, true
	case protocol.PROTO_PPM:
		return protocol.PPMPeriod(c.model.Modules[port].PPMFrameLength), true
	case protocol.PROTO_NONE:
		return 0, false
	}
	return 0, false
}

func (c *Controller) signalIdle() {
	c.mu.Lock()
	idle := c.idle != nil &&
		c.ports[protocol.INTERNAL_MODULE].Protocol == protocol.PROTO_NONE &&
		c.ports[protocol.EXTERNAL_MODULE].Protocol == protocol.PROTO_NONE
	ch := c.idle
	c.mu.Unlock()

	if idle {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// ModuleMode returns the bind/range state of port
func (c *Controller) ModuleMode(port protocol.Port) protocol.ModuleMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ports[port].Mode
}

// SetModuleMode changes the bind/range state of port. When the running
// protocol matches the configured module and its driver handles modes,
// the driver is told so it can start or cancel the operation.
func (c *Controller) SetModuleMode(port protocol.Port, mode protocol.ModuleMode) {
	c.mu.Lock()
	st := &c.ports[port]
	if st.Mode == mode {
		c.mu.Unlock()
		return
	}
	if st.Mode == protocol.MODULE_BIND {
		// the next bind gets a full hold-off window
		st.bindStarted = false
	}
	st.Mode = mode
	current := st.Protocol
	module := c.model.Modules[port]
	handler, ok := c.drivers.get(current).(ModeHandler)
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Printf("Pulses: %s module mode %s", port, mode)
	}
	if !ok || !moduleRuns(module, current) {
		return
	}
	handler.ModeChanged(port, mode, func(bool) {
		c.mu.Lock()
		c.ports[port].Mode = protocol.MODULE_NORMAL_MODE
		c.mu.Unlock()
	})
}

// moduleRuns reports whether p is the protocol of the configured module
func moduleRuns(m ModuleData, p protocol.PulseProtocol) bool {
	switch m.Type {
	case protocol.MODULE_TYPE_PPM:
		return p == protocol.PROTO_PPM
	case protocol.MODULE_TYPE_XJT, protocol.MODULE_TYPE_R9M:
		return p == protocol.PROTO_PXX
	case protocol.MODULE_TYPE_DSM2:
		return p.IsDSM2()
	case protocol.MODULE_TYPE_CROSSFIRE:
		return p == protocol.PROTO_CROSSFIRE
	case protocol.MODULE_TYPE_MULTIMODULE:
		return p == protocol.PROTO_MULTIMODULE
	case protocol.MODULE_TYPE_SBUS:
		return p == protocol.PROTO_SBUS
	case protocol.MODULE_TYPE_FLYSKY:
		return p == protocol.PROTO_FLYSKY
	case protocol.MODULE_TYPE_AFHDS3:
		return p == protocol.PROTO_AFHDS3
	}
	return false
}

// SetCustomFailsafe captures the current channel outputs as the failsafe
// positions of port
func (c *Controller) SetCustomFailsafe(port protocol.Port) {
	if int(port) >= protocol.NUM_MODULES {
		return
	}
	outputs := c.channels.Snapshot()
	c.mu.Lock()
	c.model.Modules[port].CaptureFailsafe(outputs[:])
	c.mu.Unlock()
}
