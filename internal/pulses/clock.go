package pulses

import (
	"sync"
	"time"

	"github.com/dbehnke/rclink/internal/protocol"
)

// Clock returns the 10ms timer tick counter
type Clock interface {
	Now() uint32
}

// TickClock counts 10ms ticks either from wall time since Start or, when
// never started, only as advanced by Clock.
type TickClock struct {
	mu        sync.Mutex
	ticks     uint32
	running   bool
	startTime time.Time
}

// NewTickClock creates a stopped clock at tick 0
func NewTickClock() *TickClock {
	return &TickClock{}
}

// Start makes the clock follow wall time
func (c *TickClock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.startTime = time.Now().Add(-time.Duration(c.ticks) * protocol.TICK_DURATION)
}

// Clock advances a stopped clock by ticks
func (c *TickClock) Clock(ticks uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.ticks += ticks
}

// Now implements Clock
func (c *TickClock) Now() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.ticks = uint32(time.Since(c.startTime) / protocol.TICK_DURATION)
	}
	return c.ticks
}
