package telemetry

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

const (
	MAX_TELEMETRY_SENSORS = 60
	TELEM_TEXT_LENGTH     = 16

	// readings waiting for the store; further readings are dropped
	readingQueueLength = 256
)

// Sensor is the radio-side configuration and live state of one telemetry
// sensor slot. Defaults are written by the protocol the first time a
// source id/sub-id pair reports a value.
type Sensor struct {
	Index     int
	Protocol  Protocol
	ID        uint16
	SubID     uint8
	Instance  uint8
	Name      string
	Unit      Unit
	Precision uint8
	Logs      bool

	Value int32
	Text  [TELEM_TEXT_LENGTH]byte

	// UNIT_GPS sensors receive both coordinates under one id
	Latitude  int32
	Longitude int32

	Updated time.Time
}

// Init sets the descriptive fields of the sensor
func (s *Sensor) Init(name string, unit Unit, prec uint8) {
	s.Name = name
	s.Unit = unit
	s.Precision = prec
}

// TextValue returns the text held by a UNIT_TEXT sensor
func (s *Sensor) TextValue() string {
	n := 0
	for n < len(s.Text) && s.Text[n] != 0 {
		n++
	}
	return string(s.Text[:n])
}

// String returns a formatted representation of the current value
func (s *Sensor) String() string {
	switch s.Unit {
	case UNIT_TEXT:
		return fmt.Sprintf("%s: %q", s.Name, s.TextValue())
	case UNIT_GPS:
		// coordinates are in millionths of a degree
		return fmt.Sprintf("%s: %s, %s", s.Name, formatFixed(s.Latitude, 6), formatFixed(s.Longitude, 6))
	}
	return fmt.Sprintf("%s: %s%s", s.Name, formatFixed(s.Value, s.Precision), s.Unit)
}

// formatFixed renders v with prec implied decimal places
func formatFixed(v int32, prec uint8) string {
	if prec == 0 {
		return fmt.Sprintf("%d", v)
	}
	div := int64(1)
	for i := uint8(0); i < prec; i++ {
		div *= 10
	}
	sign := ""
	n := int64(v)
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%0*d", sign, n/div, int(prec), n%div)
}

// Defaulter fills in defaults for a newly discovered sensor
type Defaulter interface {
	SetDefault(s *Sensor, id uint16, subID uint8)
}

// Store persists sensor configuration and logged readings
type Store interface {
	SaveSensors(sensors []Sensor) error
	LogReading(sensor Sensor, r Reading) error
}

// Registry is the sensor table fed by telemetry decoders
type Registry struct {
	mu         sync.Mutex
	sensors    [MAX_TELEMETRY_SENSORS]Sensor
	used       [MAX_TELEMETRY_SENSORS]bool
	defaulters map[Protocol]Defaulter
	dirty      bool
	fullWarned bool

	store    Store
	readings chan loggedReading
	logger   *log.Logger
	debug    bool
}

type loggedReading struct {
	sensor  Sensor
	reading Reading
}

// NewRegistry creates an empty sensor registry. store may be nil.
func NewRegistry(store Store, logger *log.Logger) *Registry {
	return &Registry{
		defaulters: make(map[Protocol]Defaulter),
		store:      store,
		readings:   make(chan loggedReading, readingQueueLength),
		logger:     logger,
	}
}

// SetDebug enables per-value traces
func (r *Registry) SetDebug(enabled bool) {
	r.debug = enabled
}

// RegisterProtocol installs the default-init routine for a protocol
func (r *Registry) RegisterProtocol(p Protocol, d Defaulter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaulters[p] = d
}

// Load installs previously persisted sensor slots
func (r *Registry) Load(sensors []Sensor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sensors {
		if s.Index < 0 || s.Index >= MAX_TELEMETRY_SENSORS {
			continue
		}
		r.sensors[s.Index] = s
		r.used[s.Index] = true
	}
}

// SetValue implements Sink
func (r *Registry) SetValue(rd Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.find(rd)
	if idx < 0 {
		idx = r.allocate(rd)
		if idx < 0 {
			return
		}
	}

	s := &r.sensors[idx]
	switch {
	case rd.Unit == UNIT_GPS_LATITUDE:
		s.Latitude = rd.Value
	case rd.Unit == UNIT_GPS_LONGITUDE:
		s.Longitude = rd.Value
	case s.Unit == UNIT_TEXT:
		off := int(rd.Precision)
		if off == 0 {
			s.Text = [TELEM_TEXT_LENGTH]byte{}
		}
		for i := 0; i < 4 && off+i < TELEM_TEXT_LENGTH; i++ {
			s.Text[off+i] = byte(uint32(rd.Value) >> (8 * i))
		}
	default:
		s.Value = rd.Value
	}
	s.Updated = time.Now()

	if r.debug && r.logger != nil {
		r.logger.Printf("Telemetry: %s", s.String())
	}

	if s.Logs && r.store != nil {
		select {
		case r.readings <- loggedReading{sensor: *s, reading: rd}:
		default:
		}
	}
}

func (r *Registry) find(rd Reading) int {
	for i := range r.sensors {
		s := &r.sensors[i]
		if r.used[i] && s.Protocol == rd.Protocol && s.ID == rd.ID && s.SubID == rd.SubID && s.Instance == rd.Instance {
			return i
		}
	}
	return -1
}

func (r *Registry) allocate(rd Reading) int {
	for i := range r.used {
		if r.used[i] {
			continue
		}
		r.used[i] = true
		s := &r.sensors[i]
		*s = Sensor{Index: i, Protocol: rd.Protocol, ID: rd.ID, SubID: rd.SubID, Instance: rd.Instance}
		if d, ok := r.defaulters[rd.Protocol]; ok {
			d.SetDefault(s, rd.ID, rd.SubID)
		} else {
			s.Init(fmt.Sprintf("%04X", rd.ID), rd.Unit, rd.Precision)
		}
		r.dirty = true
		if r.logger != nil {
			r.logger.Printf("Telemetry: new sensor %d %q (id=0x%02X sub=%d)", i, s.Name, rd.ID, rd.SubID)
		}
		return i
	}
	if !r.fullWarned && r.logger != nil {
		r.logger.Printf("Telemetry: sensor table full, dropping id=0x%02X sub=%d", rd.ID, rd.SubID)
		r.fullWarned = true
	}
	return -1
}

// MarkDirty flags the sensor table as needing a save
func (r *Registry) MarkDirty() {
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
}

// Dirty reports whether unsaved sensor changes exist
func (r *Registry) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// Sensor returns a copy of the slot at index
func (r *Registry) Sensor(index int) (Sensor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= MAX_TELEMETRY_SENSORS || !r.used[index] {
		return Sensor{}, false
	}
	return r.sensors[index], true
}

// Lookup returns the sensor matching the protocol, id and sub-id
func (r *Registry) Lookup(p Protocol, id uint16, subID uint8) (Sensor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.find(Reading{Protocol: p, ID: id, SubID: subID})
	if idx < 0 {
		return Sensor{}, false
	}
	return r.sensors[idx], true
}

// Sensors returns copies of all allocated slots
func (r *Registry) Sensors() []Sensor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sensor, 0, MAX_TELEMETRY_SENSORS)
	for i := range r.sensors {
		if r.used[i] {
			out = append(out, r.sensors[i])
		}
	}
	return out
}

// Flush saves the sensor table if it changed since the last save
func (r *Registry) Flush() error {
	r.mu.Lock()
	if !r.dirty || r.store == nil {
		r.mu.Unlock()
		return nil
	}
	sensors := make([]Sensor, 0, MAX_TELEMETRY_SENSORS)
	for i := range r.sensors {
		if r.used[i] {
			sensors = append(sensors, r.sensors[i])
		}
	}
	r.dirty = false
	r.mu.Unlock()

	if err := r.store.SaveSensors(sensors); err != nil {
		r.MarkDirty()
		return fmt.Errorf("failed to save sensors: %w", err)
	}
	return nil
}

// Run writes queued readings and flushes the sensor table until ctx ends
func (r *Registry) Run(ctx context.Context, flushInterval time.Duration) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := r.Flush(); err != nil && r.logger != nil {
				r.logger.Printf("Telemetry: %v", err)
			}
			return
		case lr := <-r.readings:
			if err := r.store.LogReading(lr.sensor, lr.reading); err != nil && r.logger != nil {
				r.logger.Printf("Telemetry: failed to log %s: %v", strings.TrimSpace(lr.sensor.Name), err)
			}
		case <-ticker.C:
			if err := r.Flush(); err != nil && r.logger != nil {
				r.logger.Printf("Telemetry: %v", err)
			}
		}
	}
}
