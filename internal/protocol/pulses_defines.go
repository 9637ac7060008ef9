package protocol

import (
	"strconv"
	"time"
)

// Module ports, pulse protocols and timing

// Port identifies a physical module output.
type Port uint8

const (
	INTERNAL_MODULE Port = iota
	EXTERNAL_MODULE

	NUM_MODULES = 2
)

// String returns the port name used in logs and metric labels
func (p Port) String() string {
	switch p {
	case INTERNAL_MODULE:
		return "internal"
	case EXTERNAL_MODULE:
		return "external"
	default:
		return "unknown"
	}
}

// PulseProtocol is the encoding currently driving a port.
type PulseProtocol uint8

const (
	PROTO_NONE PulseProtocol = iota
	PROTO_PPM
	PROTO_PXX
	PROTO_DSM2_LP45
	PROTO_DSM2_DSM2
	PROTO_DSM2_DSMX
	PROTO_CROSSFIRE
	PROTO_MULTIMODULE
	PROTO_SBUS
	PROTO_FLYSKY
	PROTO_AFHDS3
)

var protocolNames = [...]string{
	PROTO_NONE:        "none",
	PROTO_PPM:         "ppm",
	PROTO_PXX:         "pxx",
	PROTO_DSM2_LP45:   "dsm2-lp45",
	PROTO_DSM2_DSM2:   "dsm2",
	PROTO_DSM2_DSMX:   "dsmx",
	PROTO_CROSSFIRE:   "crossfire",
	PROTO_MULTIMODULE: "multimodule",
	PROTO_SBUS:        "sbus",
	PROTO_FLYSKY:      "flysky",
	PROTO_AFHDS3:      "afhds3",
}

func (p PulseProtocol) String() string {
	if int(p) < len(protocolNames) {
		return protocolNames[p]
	}
	return "unknown"
}

// IsDSM2 reports whether the protocol belongs to the DSM2 sub-variant range
func (p PulseProtocol) IsDSM2() bool {
	return p >= PROTO_DSM2_LP45 && p <= PROTO_DSM2_DSMX
}

// ModuleType is the configured RF module kind.
type ModuleType uint8

const (
	MODULE_TYPE_NONE ModuleType = iota
	MODULE_TYPE_PPM
	MODULE_TYPE_XJT
	MODULE_TYPE_DSM2
	MODULE_TYPE_CROSSFIRE
	MODULE_TYPE_MULTIMODULE
	MODULE_TYPE_R9M
	MODULE_TYPE_SBUS
	MODULE_TYPE_FLYSKY
	MODULE_TYPE_AFHDS3

	MODULE_TYPE_COUNT
)

var moduleTypeNames = [...]string{
	MODULE_TYPE_NONE:        "none",
	MODULE_TYPE_PPM:         "ppm",
	MODULE_TYPE_XJT:         "xjt",
	MODULE_TYPE_DSM2:        "dsm2",
	MODULE_TYPE_CROSSFIRE:   "crossfire",
	MODULE_TYPE_MULTIMODULE: "multimodule",
	MODULE_TYPE_R9M:         "r9m",
	MODULE_TYPE_SBUS:        "sbus",
	MODULE_TYPE_FLYSKY:      "flysky",
	MODULE_TYPE_AFHDS3:      "afhds3",
}

func (t ModuleType) String() string {
	if int(t) < len(moduleTypeNames) {
		return moduleTypeNames[t]
	}
	return "unknown"
}

// ParseModuleType accepts either a module name or its numeric value.
// Unknown names map to MODULE_TYPE_NONE.
func ParseModuleType(name string) ModuleType {
	for i, n := range moduleTypeNames {
		if n == name {
			return ModuleType(i)
		}
	}
	v, err := strconv.Atoi(name)
	if err != nil || v < 0 || v >= int(MODULE_TYPE_COUNT) {
		return MODULE_TYPE_NONE
	}
	return ModuleType(v)
}

// ModuleMode is the transient bind/range state of a port
type ModuleMode uint8

const (
	MODULE_NORMAL_MODE ModuleMode = iota
	MODULE_BIND
	MODULE_RANGECHECK
	MODULE_RESET_SETTINGS
)

func (m ModuleMode) String() string {
	switch m {
	case MODULE_NORMAL_MODE:
		return "normal"
	case MODULE_BIND:
		return "bind"
	case MODULE_RANGECHECK:
		return "rangecheck"
	case MODULE_RESET_SETTINGS:
		return "reset"
	default:
		return "unknown"
	}
}

const (
	MAX_OUTPUT_CHANNELS = 32

	// Failsafe values at or above this are hold/no-pulse markers, not positions
	FAILSAFE_CHANNEL_HOLD    = 2000
	FAILSAFE_CHANNEL_NOPULSE = 2001

	// Timer ticks are 10ms
	TICK_DURATION = 10 * time.Millisecond

	// The module is kept off for one second before DSM2 bind starts
	BIND_HOLDOFF_TICKS = 100

	// Telemetry streaming timeout in ticks
	TELEMETRY_TIMEOUT_TICKS = 100

	// Lag in us a module is kept at so channel frames never arrive late
	SAFE_SYNC_LAG = 800
)

// Pulse periods per protocol
const (
	PXX_PERIOD             = 9 * time.Millisecond
	SBUS_PERIOD            = 14 * time.Millisecond
	DSM2_PERIOD            = 22 * time.Millisecond
	CROSSFIRE_FRAME_PERIOD = 4 * time.Millisecond
	MULTIMODULE_PERIOD     = 4 * time.Millisecond
	FLYSKY_PERIOD          = 9 * time.Millisecond
	AFHDS3_PERIOD          = 14 * time.Millisecond
)

// PPMPeriod returns the frame period for a configured PPM frame length offset.
// frameLength is in 0.5ms steps around 22.5ms.
func PPMPeriod(frameLength int8) time.Duration {
	return time.Duration(45+int(frameLength)) * time.Millisecond / 2
}
