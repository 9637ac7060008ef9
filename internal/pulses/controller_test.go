package pulses

import (
	"fmt"
	"testing"
	"time"

	"github.com/dbehnke/rclink/internal/protocol"
)

type recordingScheduler struct {
	requests []time.Duration
	ports    []protocol.Port
}

func (s *recordingScheduler) RequestNextTick(port protocol.Port, period time.Duration) {
	s.ports = append(s.ports, port)
	s.requests = append(s.requests, period)
}

type recordingDriver struct {
	name string
	log  *[]string
}

func (d recordingDriver) Init(port protocol.Port) {
	*d.log = append(*d.log, d.name+":init")
}

func (d recordingDriver) Disable(port protocol.Port) {
	*d.log = append(*d.log, d.name+":disable")
}

func (d recordingDriver) Setup(port protocol.Port, initNeeded bool) {
	*d.log = append(*d.log, fmt.Sprintf("%s:setup:%v", d.name, initNeeded))
}

type modeDriver struct {
	recordingDriver
	modes []protocol.ModuleMode
	done  func(bool)
}

func (d *modeDriver) ModeChanged(port protocol.Port, mode protocol.ModuleMode, done func(bool)) {
	d.modes = append(d.modes, mode)
	d.done = done
}

func externalModel(t protocol.ModuleType, rf int8) Model {
	var m Model
	m.Modules[protocol.EXTERNAL_MODULE].Type = t
	m.Modules[protocol.EXTERNAL_MODULE].RFProtocol = rf
	return m
}

func newTestController(m Model, f Features) (*Controller, *TickClock, *recordingScheduler) {
	clock := NewTickClock()
	sched := &recordingScheduler{}
	c := NewController(ControllerConfig{
		Model:     m,
		Features:  f,
		Scheduler: sched,
		Clock:     clock,
	})
	return c, clock, sched
}

func equalLog(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRequiredProtocol(t *testing.T) {
	all := Features{InternalPPM: true, FlySky: true, DSM2: true, Crossfire: true, Multimodule: true, AFHDS3: true}

	tests := []struct {
		name     string
		port     protocol.Port
		module   protocol.ModuleType
		rf       int8
		features Features
		want     protocol.PulseProtocol
	}{
		{"internal ppm", protocol.INTERNAL_MODULE, protocol.MODULE_TYPE_PPM, 0, all, protocol.PROTO_PPM},
		{"internal ppm unsupported", protocol.INTERNAL_MODULE, protocol.MODULE_TYPE_PPM, 0, Features{}, protocol.PROTO_NONE},
		{"internal xjt", protocol.INTERNAL_MODULE, protocol.MODULE_TYPE_XJT, 0, Features{}, protocol.PROTO_PXX},
		{"internal flysky", protocol.INTERNAL_MODULE, protocol.MODULE_TYPE_FLYSKY, 0, all, protocol.PROTO_FLYSKY},
		{"internal crossfire", protocol.INTERNAL_MODULE, protocol.MODULE_TYPE_CROSSFIRE, 0, all, protocol.PROTO_NONE},
		{"external ppm", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_PPM, 0, Features{}, protocol.PROTO_PPM},
		{"external xjt", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_XJT, 0, Features{}, protocol.PROTO_PXX},
		{"external r9m", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_R9M, 0, Features{}, protocol.PROTO_PXX},
		{"external sbus", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_SBUS, 0, Features{}, protocol.PROTO_SBUS},
		{"external multi", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_MULTIMODULE, 0, all, protocol.PROTO_MULTIMODULE},
		{"external crossfire", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_CROSSFIRE, 0, all, protocol.PROTO_CROSSFIRE},
		{"external crossfire unsupported", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_CROSSFIRE, 0, Features{}, protocol.PROTO_NONE},
		{"external afhds3", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_AFHDS3, 0, all, protocol.PROTO_AFHDS3},
		{"dsm2 lp45", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_DSM2, 0, all, protocol.PROTO_DSM2_LP45},
		{"dsm2 dsm2", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_DSM2, 1, all, protocol.PROTO_DSM2_DSM2},
		{"dsm2 dsmx", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_DSM2, 2, all, protocol.PROTO_DSM2_DSMX},
		{"dsm2 clamped high", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_DSM2, 7, all, protocol.PROTO_DSM2_DSMX},
		{"dsm2 clamped low", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_DSM2, -3, all, protocol.PROTO_DSM2_LP45},
		{"none", protocol.EXTERNAL_MODULE, protocol.MODULE_TYPE_NONE, 0, all, protocol.PROTO_NONE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Model
			m.Modules[tt.port].Type = tt.module
			m.Modules[tt.port].RFProtocol = tt.rf
			c, _, _ := newTestController(m, tt.features)
			if got := c.RequiredProtocol(tt.port); got != tt.want {
				t.Errorf("RequiredProtocol() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRequiredProtocol_Paused(t *testing.T) {
	c, _, _ := newTestController(externalModel(protocol.MODULE_TYPE_CROSSFIRE, 0), DefaultFeatures())

	c.PausePulses()
	if got := c.RequiredProtocol(protocol.EXTERNAL_MODULE); got != protocol.PROTO_NONE {
		t.Errorf("paused RequiredProtocol() = %s, want PROTO_NONE", got)
	}
	c.ResumePulses()
	if got := c.RequiredProtocol(protocol.EXTERNAL_MODULE); got != protocol.PROTO_CROSSFIRE {
		t.Errorf("resumed RequiredProtocol() = %s, want PROTO_CROSSFIRE", got)
	}
}

func TestRequiredProtocol_BindHoldOff(t *testing.T) {
	c, clock, _ := newTestController(externalModel(protocol.MODULE_TYPE_DSM2, 2), DefaultFeatures())
	clock.Clock(5)

	c.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_BIND)
	if got := c.RequiredProtocol(protocol.EXTERNAL_MODULE); got != protocol.PROTO_NONE {
		t.Fatalf("at bind start RequiredProtocol() = %s, want PROTO_NONE", got)
	}

	clock.Clock(protocol.BIND_HOLDOFF_TICKS - 1)
	if got := c.RequiredProtocol(protocol.EXTERNAL_MODULE); got != protocol.PROTO_NONE {
		t.Fatalf("at T+99 RequiredProtocol() = %s, want PROTO_NONE", got)
	}

	clock.Clock(1)
	if got := c.RequiredProtocol(protocol.EXTERNAL_MODULE); got != protocol.PROTO_DSM2_DSMX {
		t.Fatalf("at T+100 RequiredProtocol() = %s, want PROTO_DSM2_DSMX", got)
	}

	// leaving bind clears the window, re-entering starts a new one
	c.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_NORMAL_MODE)
	if got := c.RequiredProtocol(protocol.EXTERNAL_MODULE); got != protocol.PROTO_DSM2_DSMX {
		t.Fatalf("normal mode RequiredProtocol() = %s, want PROTO_DSM2_DSMX", got)
	}
	c.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_BIND)
	if got := c.RequiredProtocol(protocol.EXTERNAL_MODULE); got != protocol.PROTO_NONE {
		t.Errorf("second bind RequiredProtocol() = %s, want PROTO_NONE", got)
	}
}

func TestRequiredProtocol_BindLeftEarly(t *testing.T) {
	c, clock, _ := newTestController(externalModel(protocol.MODULE_TYPE_DSM2, 2), DefaultFeatures())

	c.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_BIND)
	if got := c.RequiredProtocol(protocol.EXTERNAL_MODULE); got != protocol.PROTO_NONE {
		t.Fatalf("at bind start RequiredProtocol() = %s, want PROTO_NONE", got)
	}

	// leave at T+50 and come back at T+60 with nothing resolved in between
	clock.Clock(50)
	c.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_NORMAL_MODE)
	clock.Clock(10)
	c.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_BIND)
	if got := c.RequiredProtocol(protocol.EXTERNAL_MODULE); got != protocol.PROTO_NONE {
		t.Fatalf("at rebind RequiredProtocol() = %s, want PROTO_NONE", got)
	}

	clock.Clock(40)
	if got := c.RequiredProtocol(protocol.EXTERNAL_MODULE); got != protocol.PROTO_NONE {
		t.Errorf("40 ticks into rebind RequiredProtocol() = %s, want PROTO_NONE", got)
	}
	clock.Clock(protocol.BIND_HOLDOFF_TICKS - 40)
	if got := c.RequiredProtocol(protocol.EXTERNAL_MODULE); got != protocol.PROTO_DSM2_DSMX {
		t.Errorf("100 ticks into rebind RequiredProtocol() = %s, want PROTO_DSM2_DSMX", got)
	}
}

func TestSetupPulses_Transitions(t *testing.T) {
	var events []string
	c, _, sched := newTestController(externalModel(protocol.MODULE_TYPE_CROSSFIRE, 0), DefaultFeatures())
	c.RegisterDriver(recordingDriver{name: "xf", log: &events}, protocol.PROTO_CROSSFIRE)
	c.RegisterDriver(recordingDriver{name: "ppm", log: &events}, protocol.PROTO_PPM)

	c.SetupPulses(protocol.EXTERNAL_MODULE)
	if want := []string{"xf:setup:true", "xf:init"}; !equalLog(events, want) {
		t.Fatalf("first tick events = %v, want %v", events, want)
	}
	if got := c.PortState(protocol.EXTERNAL_MODULE).Protocol; got != protocol.PROTO_CROSSFIRE {
		t.Fatalf("Protocol = %s, want PROTO_CROSSFIRE", got)
	}
	if len(sched.requests) != 1 || sched.requests[0] != protocol.CROSSFIRE_FRAME_PERIOD {
		t.Fatalf("requests = %v, want [%v]", sched.requests, protocol.CROSSFIRE_FRAME_PERIOD)
	}

	events = events[:0]
	c.SetupPulses(protocol.EXTERNAL_MODULE)
	if want := []string{"xf:setup:false"}; !equalLog(events, want) {
		t.Fatalf("steady tick events = %v, want %v", events, want)
	}

	events = events[:0]
	c.SetModel(externalModel(protocol.MODULE_TYPE_PPM, 0))
	c.SetupPulses(protocol.EXTERNAL_MODULE)
	if want := []string{"xf:disable", "ppm:setup:true", "ppm:init"}; !equalLog(events, want) {
		t.Fatalf("switch events = %v, want %v", events, want)
	}
	if got := sched.requests[len(sched.requests)-1]; got != 22500*time.Microsecond {
		t.Errorf("PPM period = %v, want 22.5ms", got)
	}
}

func TestSetupPulses_PausedStopsScheduling(t *testing.T) {
	var events []string
	c, _, sched := newTestController(externalModel(protocol.MODULE_TYPE_CROSSFIRE, 0), DefaultFeatures())
	c.RegisterDriver(recordingDriver{name: "xf", log: &events}, protocol.PROTO_CROSSFIRE)
	idle := make(chan struct{}, 1)
	c.SetIdleWaiter(idle)

	c.SetupPulses(protocol.EXTERNAL_MODULE)
	select {
	case <-idle:
		t.Fatal("idle signalled while crossfire running")
	default:
	}

	c.PausePulses()
	events = events[:0]
	requests := len(sched.requests)
	c.SetupPulses(protocol.EXTERNAL_MODULE)

	if want := []string{"xf:disable"}; !equalLog(events, want) {
		t.Errorf("paused events = %v, want %v", events, want)
	}
	if len(sched.requests) != requests {
		t.Errorf("PROTO_NONE requested a tick")
	}
	select {
	case <-idle:
	default:
		t.Error("idle not signalled with both ports off")
	}

	// a full channel never blocks the tick
	c.SetupPulses(protocol.EXTERNAL_MODULE)
	c.SetupPulses(protocol.EXTERNAL_MODULE)
}

func TestSetupPulses_Heartbeat(t *testing.T) {
	c, _, _ := newTestController(Model{}, DefaultFeatures())

	c.SetupPulses(protocol.INTERNAL_MODULE)
	c.SetupPulses(protocol.EXTERNAL_MODULE)
	if got := c.Heartbeat(); got != 0x03 {
		t.Errorf("Heartbeat() = 0x%02X, want 0x03", got)
	}
	if got := c.Heartbeat(); got != 0 {
		t.Errorf("Heartbeat() after read = 0x%02X, want 0", got)
	}
}

func TestSetupPulses_FailsafeCountdown(t *testing.T) {
	c, _, _ := newTestController(externalModel(protocol.MODULE_TYPE_XJT, 0), DefaultFeatures())

	for i := 1; i < FAILSAFE_COUNTER_RELOAD; i++ {
		c.SetupPulses(protocol.EXTERNAL_MODULE)
		if c.PortState(protocol.EXTERNAL_MODULE).FailsafeDue {
			t.Fatalf("failsafe due after %d ticks", i)
		}
	}
	c.SetupPulses(protocol.EXTERNAL_MODULE)
	st := c.PortState(protocol.EXTERNAL_MODULE)
	if !st.FailsafeDue {
		t.Fatalf("failsafe not due after %d ticks", FAILSAFE_COUNTER_RELOAD)
	}
	if st.FailsafeCounter != FAILSAFE_COUNTER_RELOAD {
		t.Errorf("FailsafeCounter = %d, want reload %d", st.FailsafeCounter, FAILSAFE_COUNTER_RELOAD)
	}
}

func TestSetupPulses_CrossfireSyncPeriod(t *testing.T) {
	c, _, sched := newTestController(externalModel(protocol.MODULE_TYPE_CROSSFIRE, 0), DefaultFeatures())

	c.SyncStatus(protocol.EXTERNAL_MODULE).Update(6667, protocol.SAFE_SYNC_LAG)
	c.SetupPulses(protocol.EXTERNAL_MODULE)

	if got := sched.requests[0]; got != 6667*time.Microsecond {
		t.Errorf("period = %v, want 6.667ms", got)
	}
}

func TestSetModuleMode_Handler(t *testing.T) {
	var events []string
	m := externalModel(protocol.MODULE_TYPE_AFHDS3, 0)
	c, _, _ := newTestController(m, Features{AFHDS3: true})
	d := &modeDriver{recordingDriver: recordingDriver{name: "afhds3", log: &events}}
	c.RegisterDriver(d, protocol.PROTO_AFHDS3)

	// not running yet: no handler call
	c.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_RANGECHECK)
	if len(d.modes) != 0 {
		t.Fatalf("handler called before protocol started: %v", d.modes)
	}
	c.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_NORMAL_MODE)

	c.SetupPulses(protocol.EXTERNAL_MODULE)
	c.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_BIND)
	c.SetModuleMode(protocol.EXTERNAL_MODULE, protocol.MODULE_BIND)
	if len(d.modes) != 1 || d.modes[0] != protocol.MODULE_BIND {
		t.Fatalf("modes = %v, want [bind]", d.modes)
	}

	d.done(true)
	if got := c.ModuleMode(protocol.EXTERNAL_MODULE); got != protocol.MODULE_NORMAL_MODE {
		t.Errorf("mode after bind done = %s, want normal", got)
	}
}

func TestModuleChannels(t *testing.T) {
	var m Model
	m.Modules[protocol.EXTERNAL_MODULE].ChannelsStart = 4
	c, _, _ := newTestController(m, DefaultFeatures())
	c.Channels().Set(4, 123)
	c.Channels().Set(5, -456)

	got := c.ModuleChannels(protocol.EXTERNAL_MODULE)
	if len(got) != protocol.MAX_OUTPUT_CHANNELS-4 {
		t.Fatalf("len = %d, want %d", len(got), protocol.MAX_OUTPUT_CHANNELS-4)
	}
	if got[0] != 123 || got[1] != -456 {
		t.Errorf("channels = %v, want [123 -456 ...]", got[:2])
	}
}

func TestSetCustomFailsafe(t *testing.T) {
	var m Model
	m.Modules[protocol.EXTERNAL_MODULE].Failsafe[1] = protocol.FAILSAFE_CHANNEL_HOLD
	m.Modules[protocol.EXTERNAL_MODULE].Failsafe[9] = 77
	c, _, _ := newTestController(m, DefaultFeatures())
	c.Channels().Set(0, 100)
	c.Channels().Set(1, 200)
	c.Channels().Set(9, 50)

	c.SetCustomFailsafe(protocol.EXTERNAL_MODULE)
	fs := c.Model().Modules[protocol.EXTERNAL_MODULE].Failsafe

	if fs[0] != 100 {
		t.Errorf("Failsafe[0] = %d, want 100", fs[0])
	}
	if fs[1] != protocol.FAILSAFE_CHANNEL_HOLD {
		t.Errorf("Failsafe[1] = %d, want hold kept", fs[1])
	}
	if fs[9] != 0 {
		t.Errorf("Failsafe[9] = %d, want 0 outside channel range", fs[9])
	}
}
