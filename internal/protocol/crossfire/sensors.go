package crossfire

import "github.com/dbehnke/rclink/internal/telemetry"

// Sensor describes one field the link can report
type Sensor struct {
	ID        uint8
	SubID     uint8
	Name      string
	Unit      telemetry.Unit
	Precision uint8
}

// Indexes into the sensor table. Lookup adds the sub-id to the base index
// of each frame type, so the table order must not change.
const (
	RX_RSSI1_INDEX = iota
	RX_RSSI2_INDEX
	RX_QUALITY_INDEX
	RX_SNR_INDEX
	RX_ANTENNA_INDEX
	RF_MODE_INDEX
	TX_POWER_INDEX
	TX_RSSI_INDEX
	TX_QUALITY_INDEX
	TX_SNR_INDEX
	BATT_VOLTAGE_INDEX
	BATT_CURRENT_INDEX
	BATT_CAPACITY_INDEX
	GPS_LATITUDE_INDEX
	GPS_LONGITUDE_INDEX
	GPS_GROUND_SPEED_INDEX
	GPS_HEADING_INDEX
	GPS_ALTITUDE_INDEX
	GPS_SATELLITES_INDEX
	ATTITUDE_PITCH_INDEX
	ATTITUDE_ROLL_INDEX
	ATTITUDE_YAW_INDEX
	FLIGHT_MODE_INDEX
	UNKNOWN_INDEX
)

var sensors = [...]Sensor{
	{LINK_ID, 0, "1RSS", telemetry.UNIT_DB, 0},
	{LINK_ID, 1, "2RSS", telemetry.UNIT_DB, 0},
	{LINK_ID, 2, "RQly", telemetry.UNIT_PERCENT, 0},
	{LINK_ID, 3, "RSNR", telemetry.UNIT_DB, 0},
	{LINK_ID, 4, "ANT", telemetry.UNIT_RAW, 0},
	{LINK_ID, 5, "RFMD", telemetry.UNIT_RAW, 0},
	{LINK_ID, 6, "TPWR", telemetry.UNIT_MILLIWATTS, 0},
	{LINK_ID, 7, "TRSS", telemetry.UNIT_DB, 0},
	{LINK_ID, 8, "TQly", telemetry.UNIT_PERCENT, 0},
	{LINK_ID, 9, "TSNR", telemetry.UNIT_DB, 0},
	{BATTERY_ID, 0, "RxBt", telemetry.UNIT_VOLTS, 1},
	{BATTERY_ID, 1, "Curr", telemetry.UNIT_AMPS, 1},
	{BATTERY_ID, 2, "Capa", telemetry.UNIT_MAH, 0},
	{GPS_ID, 0, "GPS", telemetry.UNIT_GPS_LATITUDE, 0},
	{GPS_ID, 0, "GPS", telemetry.UNIT_GPS_LONGITUDE, 0},
	{GPS_ID, 2, "GSpd", telemetry.UNIT_KMH, 1},
	{GPS_ID, 3, "Hdg", telemetry.UNIT_DEGREE, 3},
	{GPS_ID, 4, "Alt", telemetry.UNIT_METERS, 0},
	{GPS_ID, 5, "Sats", telemetry.UNIT_RAW, 0},
	{ATTITUDE_ID, 0, "Ptch", telemetry.UNIT_RADIANS, 3},
	{ATTITUDE_ID, 1, "Roll", telemetry.UNIT_RADIANS, 3},
	{ATTITUDE_ID, 2, "Yaw", telemetry.UNIT_RADIANS, 3},
	{FLIGHT_MODE_ID, 0, "FM", telemetry.UNIT_TEXT, 0},
	{0, 0, "UNKNOWN", telemetry.UNIT_RAW, 0},
}

// SensorAt returns the table entry at index, or the unknown entry
func SensorAt(index int) Sensor {
	if index < 0 || index >= len(sensors) {
		return sensors[UNKNOWN_INDEX]
	}
	return sensors[index]
}

// LookupSensor maps a frame id and sub-id to its descriptor. A sub-id
// past the end of its frame type's group resolves to the unknown entry.
func LookupSensor(id, subID uint8) Sensor {
	var base, last int
	switch id {
	case LINK_ID:
		base, last = RX_RSSI1_INDEX, TX_SNR_INDEX
	case BATTERY_ID:
		base, last = BATT_VOLTAGE_INDEX, BATT_CAPACITY_INDEX
	case GPS_ID:
		base, last = GPS_LATITUDE_INDEX, GPS_SATELLITES_INDEX
	case ATTITUDE_ID:
		base, last = ATTITUDE_PITCH_INDEX, ATTITUDE_YAW_INDEX
	case FLIGHT_MODE_ID:
		return sensors[FLIGHT_MODE_INDEX]
	default:
		return sensors[UNKNOWN_INDEX]
	}
	if base+int(subID) > last {
		return sensors[UNKNOWN_INDEX]
	}
	return sensors[base+int(subID)]
}

// Defaults writes the protocol defaults into newly discovered sensors
type Defaults struct{}

// SetDefault implements telemetry.Defaulter
func (Defaults) SetDefault(s *telemetry.Sensor, id uint16, subID uint8) {
	s.ID = id
	s.SubID = subID

	sensor := sensors[UNKNOWN_INDEX]
	if id <= 0xFF {
		sensor = LookupSensor(uint8(id), subID)
	}
	unit := sensor.Unit
	if unit == telemetry.UNIT_GPS_LATITUDE || unit == telemetry.UNIT_GPS_LONGITUDE {
		unit = telemetry.UNIT_GPS
	}
	prec := sensor.Precision
	if prec > 2 {
		prec = 2
	}
	s.Init(sensor.Name, unit, prec)
	if id == LINK_ID {
		s.Logs = true
	}
}
