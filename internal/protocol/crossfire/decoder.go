package crossfire

import (
	"fmt"
	"log"

	"github.com/dbehnke/rclink/internal/metrics"
	"github.com/dbehnke/rclink/internal/protocol"
	"github.com/dbehnke/rclink/internal/telemetry"
)

// TX power codes reported in link statistics, in milliwatts
var txPowerValues = [...]int32{0, 10, 25, 100, 500, 1000, 2000, 250}

// TxPower maps a raw power code to milliwatts; unknown codes map to 0
func TxPower(code int32) int32 {
	if code < 0 || int(code) >= len(txPowerValues) {
		return 0
	}
	return txPowerValues[code]
}

// SyncUpdater receives the module timing correction
type SyncUpdater interface {
	Update(refreshRate uint32, inputLag int32)
}

// Decoder turns complete frames into sensor readings
type Decoder struct {
	sink        telemetry.Sink
	link        *telemetry.LinkState
	sync        SyncUpdater
	passthrough *telemetry.Fifo
	metrics     *metrics.Collector
	logger      *log.Logger
	debug       bool
}

// DecoderConfig holds the collaborators of a Decoder. Only Sink is required.
type DecoderConfig struct {
	Sink        telemetry.Sink
	Link        *telemetry.LinkState
	Sync        SyncUpdater
	Passthrough *telemetry.Fifo
	Metrics     *metrics.Collector
	Logger      *log.Logger
	Debug       bool
}

// NewDecoder creates a frame decoder
func NewDecoder(cfg DecoderConfig) *Decoder {
	return &Decoder{
		sink:        cfg.Sink,
		link:        cfg.Link,
		sync:        cfg.Sync,
		passthrough: cfg.Passthrough,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		debug:       cfg.Debug,
	}
}

// SetPassthrough installs or removes (nil) the queue for unknown frames
func (d *Decoder) SetPassthrough(f *telemetry.Fifo) {
	d.passthrough = f
}

// Decode validates and dispatches one complete frame
// [address][length][id][payload...][crc]. Every readable field is
// forwarded even when another field of the frame falls outside it.
func (d *Decoder) Decode(frame []byte) error {
	if len(frame) < 4 {
		return fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	if !checkFrameCRC(frame) {
		if d.debug && d.logger != nil {
			d.logger.Printf("[XF] CRC error")
		}
		return ErrChecksum
	}

	id := frame[2]
	body := frame[:len(frame)-1]
	fr := fieldReader{body: body}

	switch id {
	case GPS_ID:
		if v, ok := fr.value(3, 4); ok {
			d.emit(GPS_LATITUDE_INDEX, v/10)
		}
		if v, ok := fr.value(7, 4); ok {
			d.emit(GPS_LONGITUDE_INDEX, v/10)
		}
		if v, ok := fr.value(11, 2); ok {
			d.emit(GPS_GROUND_SPEED_INDEX, v)
		}
		if v, ok := fr.value(13, 2); ok {
			d.emit(GPS_HEADING_INDEX, v)
		}
		if v, ok := fr.value(15, 2); ok {
			d.emit(GPS_ALTITUDE_INDEX, v-1000)
		}
		if v, ok := fr.value(17, 1); ok {
			d.emit(GPS_SATELLITES_INDEX, v)
		}

	case LINK_ID:
		for i := 0; i <= TX_SNR_INDEX; i++ {
			v, ok := fr.value(3+i, 1)
			if !ok {
				continue
			}
			if i == TX_POWER_INDEX {
				v = TxPower(v)
			}
			d.emit(i, v)
			if i == RX_QUALITY_INDEX {
				d.linkQuality(v)
			}
		}

	case BATTERY_ID:
		if v, ok := fr.value(3, 2); ok {
			d.emit(BATT_VOLTAGE_INDEX, v)
		}
		if v, ok := fr.value(5, 2); ok {
			d.emit(BATT_CURRENT_INDEX, v)
		}
		if v, ok := fr.value(7, 3); ok {
			d.emit(BATT_CAPACITY_INDEX, v)
		}

	case ATTITUDE_ID:
		if v, ok := fr.value(3, 2); ok {
			d.emit(ATTITUDE_PITCH_INDEX, v/10)
		}
		if v, ok := fr.value(5, 2); ok {
			d.emit(ATTITUDE_ROLL_INDEX, v/10)
		}
		if v, ok := fr.value(7, 2); ok {
			d.emit(ATTITUDE_YAW_INDEX, v/10)
		}

	case FLIGHT_MODE_ID:
		d.flightMode(body, int(frame[1]))

	case RADIO_ID:
		if len(body) > 5 && body[3] == RADIO_ADDRESS && body[5] == RADIO_SYNC_SUBCOMMAND {
			interval, ok1 := fr.value(6, 4)
			offset, ok2 := fr.value(10, 4)
			if ok1 && ok2 {
				// values are in tenths of microseconds
				rate := uint32(interval) / 10
				lag := offset / 10
				if d.debug && d.logger != nil {
					d.logger.Printf("[XF] Rate: %d, Lag: %d", rate, lag)
				}
				if d.sync != nil {
					d.sync.Update(rate, lag+protocol.SAFE_SYNC_LAG)
				}
			}
		}

	default:
		d.forward(frame)
	}

	d.metrics.FrameDecoded(FrameTypeName(id))
	return fr.err
}

func (d *Decoder) flightMode(body []byte, length int) {
	sensor := sensors[FLIGHT_MODE_INDEX]
	for i := 0; i < min(16, length-2); i += 4 {
		var chunk uint32
		for j := 0; j < 4; j++ {
			if k := 3 + i + j; k < len(body) {
				chunk |= uint32(body[k]) << (8 * j)
			}
		}
		d.sink.SetValue(telemetry.Reading{
			Protocol:  telemetry.PROTOCOL_TELEMETRY_CROSSFIRE,
			ID:        uint16(sensor.ID),
			SubID:     sensor.SubID,
			Value:     int32(chunk),
			Unit:      sensor.Unit,
			Precision: uint8(i),
		})
	}
}

func (d *Decoder) linkQuality(v int32) {
	if d.link == nil {
		return
	}
	if v != 0 {
		d.link.Set(uint8(v))
	} else {
		d.link.Reset()
	}
	d.metrics.LinkQuality(v)
}

// forward queues an unrecognized frame for an application reader,
// without the address and crc bytes
func (d *Decoder) forward(frame []byte) {
	if d.passthrough == nil {
		return
	}
	if !d.passthrough.AddData(frame[1 : len(frame)-1]) {
		d.metrics.PassthroughDropped()
	}
}

func (d *Decoder) emit(index int, value int32) {
	sensor := sensors[index]
	r := telemetry.Reading{
		Protocol:  telemetry.PROTOCOL_TELEMETRY_CROSSFIRE,
		ID:        uint16(sensor.ID),
		SubID:     sensor.SubID,
		Value:     value,
		Unit:      sensor.Unit,
		Precision: sensor.Precision,
	}
	if d.debug && d.logger != nil {
		d.logger.Printf("[XF] %s %s", sensor.Name, r.String())
	}
	d.sink.SetValue(r)
}

// fieldReader extracts fields and remembers the first out-of-range read
type fieldReader struct {
	body []byte
	err  error
}

func (f *fieldReader) value(offset, n int) (int32, bool) {
	v, ok, err := ExtractSigned(f.body, offset, n)
	if err != nil {
		if f.err == nil {
			f.err = fmt.Errorf("%w: offset %d width %d, frame id 0x%02X", err, offset, n, f.body[2])
		}
		return 0, false
	}
	return v, ok
}

// FrameTypeName returns a short name for a frame id
func FrameTypeName(id uint8) string {
	switch id {
	case GPS_ID:
		return "gps"
	case CF_VARIO_ID:
		return "vario"
	case BATTERY_ID:
		return "battery"
	case LINK_ID:
		return "link"
	case CHANNELS_ID:
		return "channels"
	case ATTITUDE_ID:
		return "attitude"
	case FLIGHT_MODE_ID:
		return "flight_mode"
	case PING_DEVICES_ID:
		return "ping"
	case DEVICE_INFO_ID:
		return "device_info"
	case REQUEST_SETTINGS_ID:
		return "settings"
	case COMMAND_ID:
		return "command"
	case RADIO_ID:
		return "radio"
	default:
		return "other"
	}
}
