package pulses

import (
	"context"
	"sync"
	"time"

	"github.com/dbehnke/rclink/internal/protocol"
)

// MIXER_MAX_PERIOD is the longest a port waits for its next tick when its
// protocol requested none
const MIXER_MAX_PERIOD = 50 * time.Millisecond

// Runner calls the pulse tick for each port at the period the port last
// requested. One goroutine runs all ports so ticks never overlap.
type Runner struct {
	mu       sync.Mutex
	next     [protocol.NUM_MODULES]time.Time
	wake     chan struct{}
	fallback time.Duration
	now      func() time.Time
}

// NewRunner creates a runner with both ports due immediately
func NewRunner() *Runner {
	return &Runner{
		wake:     make(chan struct{}, 1),
		fallback: MIXER_MAX_PERIOD,
		now:      time.Now,
	}
}

// RequestNextTick implements Scheduler
func (r *Runner) RequestNextTick(port protocol.Port, period time.Duration) {
	if int(port) >= protocol.NUM_MODULES {
		return
	}
	r.mu.Lock()
	r.next[port] = r.now().Add(period)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// due returns the earliest port and its deadline
func (r *Runner) due() (protocol.Port, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	port := protocol.INTERNAL_MODULE
	for p := 1; p < protocol.NUM_MODULES; p++ {
		if r.next[p].Before(r.next[port]) {
			port = protocol.Port(p)
		}
	}
	return port, r.next[port]
}

// Run calls tick for each port as it falls due until ctx is done. A port
// whose tick requested nothing is ticked again after MIXER_MAX_PERIOD.
func (r *Runner) Run(ctx context.Context, tick func(protocol.Port)) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		port, deadline := r.due()
		wait := deadline.Sub(r.now())
		if wait <= 0 {
			// pushed forward first; tick may replace it with its own request
			r.mu.Lock()
			r.next[port] = r.now().Add(r.fallback)
			r.mu.Unlock()
			tick(port)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		case <-timer.C:
		}
	}
}
