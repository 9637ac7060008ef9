package crossfire

import (
	"log"
	"sync"

	"github.com/dbehnke/rclink/internal/metrics"
	"github.com/dbehnke/rclink/internal/protocol"
	"github.com/dbehnke/rclink/internal/telemetry"
)

// Link is the module UART as seen by the driver
type Link interface {
	Open() error
	Close() error
	Send(frame []byte) error
}

// ChannelProvider returns the channel outputs a port should transmit,
// starting at the port's first configured channel
type ChannelProvider interface {
	ModuleChannels(port protocol.Port) []int16
}

// ModuleDriver drives a Crossfire module: it owns the UART while the
// protocol is active and sends one frame per pulse period.
type ModuleDriver struct {
	link     Link
	out      *telemetry.OutputBuffer
	channels ChannelProvider
	metrics  *metrics.Collector
	logger   *log.Logger

	frame [TELEMETRY_RX_PACKET_SIZE]byte

	mu       sync.Mutex
	bindDone func(success bool)
}

// NewModuleDriver creates a driver. out may be nil when no application
// sends telemetry frames.
func NewModuleDriver(link Link, out *telemetry.OutputBuffer, channels ChannelProvider, m *metrics.Collector, logger *log.Logger) *ModuleDriver {
	return &ModuleDriver{
		link:     link,
		out:      out,
		channels: channels,
		metrics:  m,
		logger:   logger,
	}
}

// Init opens the module UART
func (d *ModuleDriver) Init(port protocol.Port) {
	if err := d.link.Open(); err != nil && d.logger != nil {
		d.logger.Printf("[XF] %s module: open failed: %v", port, err)
	}
}

// Disable closes the module UART
func (d *ModuleDriver) Disable(port protocol.Port) {
	if err := d.link.Close(); err != nil && d.logger != nil {
		d.logger.Printf("[XF] %s module: close failed: %v", port, err)
	}
}

// Setup sends a pending telemetry frame if there is one, otherwise the
// channels frame. Nothing is sent on the tick the protocol starts.
func (d *ModuleDriver) Setup(port protocol.Port, initNeeded bool) {
	if initNeeded {
		return
	}

	kind := "channels"
	n := 0
	if d.out != nil {
		if size, _, ok := d.out.Take(d.frame[:]); ok {
			n = size
			kind = "telemetry"
			if isBindCommand(d.frame[:n]) {
				kind = "bind"
			}
		}
	}
	if n == 0 {
		var outputs []int16
		if d.channels != nil {
			outputs = d.channels.ModuleChannels(port)
		}
		n = BuildChannelsFrame(d.frame[:], outputs)
	}

	if err := d.link.Send(d.frame[:n]); err != nil {
		if d.logger != nil {
			d.logger.Printf("[XF] %s module: send failed: %v", port, err)
		}
		if kind == "bind" {
			d.finishBind(false)
		}
		return
	}
	d.metrics.FrameSent(kind)
	if kind == "bind" {
		d.finishBind(true)
	}
}

// ModeChanged implements pulses.ModeHandler. Bind queues the receiver bind
// command; done runs once the command has gone out. Range check and reset
// have no Crossfire command and are only logged.
func (d *ModuleDriver) ModeChanged(port protocol.Port, mode protocol.ModuleMode, done func(success bool)) {
	if d.logger != nil {
		d.logger.Printf("[XF] %s module: %s", port, mode)
	}

	switch mode {
	case protocol.MODULE_BIND:
		d.mu.Lock()
		d.bindDone = done
		d.mu.Unlock()
		if d.out == nil || !NewEncoder(d.out, nil).Send(bindCommand()) {
			if d.logger != nil {
				d.logger.Printf("[XF] %s module: bind command not queued", port)
			}
			d.finishBind(false)
		}
	case protocol.MODULE_NORMAL_MODE:
		// cancelled; the module finishes any bind on its own
		d.mu.Lock()
		d.bindDone = nil
		d.mu.Unlock()
	}
}

func (d *ModuleDriver) finishBind(success bool) {
	d.mu.Lock()
	done := d.bindDone
	d.bindDone = nil
	d.mu.Unlock()
	if done != nil {
		done(success)
	}
}

// bindCommand returns the COMMAND_ID payload [id][dest][origin][realm][cmd][crc]
func bindCommand() []byte {
	p := []byte{COMMAND_ID, MODULE_ADDRESS, RADIO_ADDRESS, COMMAND_RX, COMMAND_RX_BIND}
	return append(p, CommandCRC8(p))
}

// isBindCommand matches an encoded frame [sync][len][bind command][crc]
func isBindCommand(frame []byte) bool {
	return len(frame) == 9 && frame[2] == COMMAND_ID && frame[5] == COMMAND_RX && frame[6] == COMMAND_RX_BIND
}
