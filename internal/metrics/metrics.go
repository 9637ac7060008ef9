package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the link metrics. A nil *Collector is valid and records
// nothing, so components can be built without metrics.
type Collector struct {
	framesDecoded    *prometheus.CounterVec
	decodeErrors     *prometheus.CounterVec
	passthroughDrops prometheus.Counter
	framesSent       *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	protocol         *prometheus.GaugeVec
	linkQuality      prometheus.Gauge
	syncRefreshRate  *prometheus.GaugeVec
}

// NewCollector creates the collectors and registers them with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		framesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rclink_telemetry_frames_total",
			Help: "Telemetry frames decoded, by frame type",
		}, []string{"type"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rclink_telemetry_errors_total",
			Help: "Telemetry receive errors, by kind",
		}, []string{"kind"}),
		passthroughDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rclink_telemetry_passthrough_dropped_total",
			Help: "Unrecognized frames dropped because the passthrough queue was full",
		}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rclink_module_frames_sent_total",
			Help: "Frames written to the module, by kind",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rclink_pulses_transitions_total",
			Help: "Pulse protocol changes, by port and new protocol",
		}, []string{"port", "protocol"}),
		protocol: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rclink_pulses_protocol",
			Help: "Current pulse protocol number per port",
		}, []string{"port"}),
		linkQuality: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rclink_link_quality_percent",
			Help: "Last received RX link quality",
		}),
		syncRefreshRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rclink_module_refresh_rate_us",
			Help: "Module requested refresh rate in microseconds",
		}, []string{"port"}),
	}

	if reg != nil {
		reg.MustRegister(
			c.framesDecoded,
			c.decodeErrors,
			c.passthroughDrops,
			c.framesSent,
			c.transitions,
			c.protocol,
			c.linkQuality,
			c.syncRefreshRate,
		)
	}
	return c
}

func (c *Collector) FrameDecoded(frameType string) {
	if c == nil {
		return
	}
	c.framesDecoded.WithLabelValues(frameType).Inc()
}

func (c *Collector) DecodeError(kind string) {
	if c == nil {
		return
	}
	c.decodeErrors.WithLabelValues(kind).Inc()
}

func (c *Collector) PassthroughDropped() {
	if c == nil {
		return
	}
	c.passthroughDrops.Inc()
}

func (c *Collector) FrameSent(kind string) {
	if c == nil {
		return
	}
	c.framesSent.WithLabelValues(kind).Inc()
}

// ProtocolChanged records a transition and the new current protocol
func (c *Collector) ProtocolChanged(port, protocol string, value int) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(port, protocol).Inc()
	c.protocol.WithLabelValues(port).Set(float64(value))
}

func (c *Collector) LinkQuality(percent int32) {
	if c == nil {
		return
	}
	c.linkQuality.Set(float64(percent))
}

func (c *Collector) RefreshRate(port string, us uint32) {
	if c == nil {
		return
	}
	c.syncRefreshRate.WithLabelValues(port).Set(float64(us))
}
