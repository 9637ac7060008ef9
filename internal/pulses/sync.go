package pulses

import (
	"sync"
	"time"

	"github.com/dbehnke/rclink/internal/protocol"
)

const (
	MIN_REFRESH_RATE = 1750  // us
	MAX_REFRESH_RATE = 50000 // us

	// A correction older than this many ticks is ignored
	SYNC_UPDATE_TIMEOUT = 200
)

// ModuleSyncStatus tracks the frame rate and phase a module asks the
// radio to send at. The telemetry path updates it; the pulse scheduler
// reads the adjusted period.
type ModuleSyncStatus struct {
	mu          sync.Mutex
	clock       Clock
	refreshRate uint32
	inputLag    int32
	currentLag  int32
	lastUpdate  uint32
	updated     bool
}

// NewModuleSyncStatus creates an empty status using clock for ageing
func NewModuleSyncStatus(clock Clock) *ModuleSyncStatus {
	return &ModuleSyncStatus{clock: clock}
}

// Update records a timing correction. refreshRate is the module frame
// interval and inputLag the phase offset plus protocol.SAFE_SYNC_LAG, both in us.
func (s *ModuleSyncStatus) Update(refreshRate uint32, inputLag int32) {
	if refreshRate == 0 {
		return
	}
	if refreshRate < MIN_REFRESH_RATE {
		// send every n-th module slot
		refreshRate *= (MIN_REFRESH_RATE + refreshRate - 1) / refreshRate
	} else if refreshRate > MAX_REFRESH_RATE {
		refreshRate = MAX_REFRESH_RATE
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshRate = refreshRate
	s.inputLag = inputLag
	s.currentLag = inputLag
	s.lastUpdate = s.clock.Now()
	s.updated = true
}

// IsValid reports whether a correction arrived recently enough to use
func (s *ModuleSyncStatus) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated && s.clock.Now()-s.lastUpdate <= SYNC_UPDATE_TIMEOUT
}

// RefreshRate returns the last requested interval and input lag in us
func (s *ModuleSyncStatus) RefreshRate() (uint32, int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshRate, s.inputLag
}

// AdjustedRefreshRate returns the next frame interval in us. Lag beyond
// SAFE_SYNC_LAG is absorbed a step at a time, at most a tenth of the
// interval per frame, and the remainder carried to the next call.
func (s *ModuleSyncStatus) AdjustedRefreshRate() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	lag := s.currentLag - protocol.SAFE_SYNC_LAG
	if lag == 0 {
		return s.refreshRate
	}

	limit := int32(s.refreshRate / 10)
	if lag > limit {
		lag = limit
	} else if lag < -limit {
		lag = -limit
	}

	rate := int32(s.refreshRate) + lag
	if rate < MIN_REFRESH_RATE {
		rate = MIN_REFRESH_RATE
	} else if rate > MAX_REFRESH_RATE {
		rate = MAX_REFRESH_RATE
	}
	s.currentLag -= rate - int32(s.refreshRate)
	return uint32(rate)
}

// Period returns AdjustedRefreshRate as a duration
func (s *ModuleSyncStatus) Period() time.Duration {
	return time.Duration(s.AdjustedRefreshRate()) * time.Microsecond
}
