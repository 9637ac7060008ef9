package crossfire

import (
	"sync"

	"github.com/dbehnke/rclink/internal/telemetry"
)

// buildFrame returns [0xEA][len][id][payload...][crc]
func buildFrame(id byte, payload ...byte) []byte {
	frame := []byte{RADIO_ADDRESS, byte(len(payload) + 2), id}
	frame = append(frame, payload...)
	return append(frame, CRC8(frame[2:]))
}

type recordingSink struct {
	mu       sync.Mutex
	readings []telemetry.Reading
}

func (s *recordingSink) SetValue(r telemetry.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
}

// find returns the last reading for the sensor at index
func (s *recordingSink) find(index int) (telemetry.Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := SensorAt(index)
	for i := len(s.readings) - 1; i >= 0; i-- {
		r := s.readings[i]
		if r.ID == uint16(want.ID) && r.SubID == want.SubID && r.Unit == want.Unit {
			return r, true
		}
	}
	return telemetry.Reading{}, false
}

type recordingSync struct {
	rate  uint32
	lag   int32
	calls int
}

func (s *recordingSync) Update(rate uint32, lag int32) {
	s.rate = rate
	s.lag = lag
	s.calls++
}
