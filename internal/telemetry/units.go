package telemetry

// Unit is the physical unit attached to a sensor value
type Unit uint8

const (
	UNIT_RAW Unit = iota
	UNIT_VOLTS
	UNIT_AMPS
	UNIT_MILLIAMPS
	UNIT_KTS
	UNIT_METERS_PER_SECOND
	UNIT_KMH
	UNIT_METERS
	UNIT_CELSIUS
	UNIT_PERCENT
	UNIT_MAH
	UNIT_WATTS
	UNIT_MILLIWATTS
	UNIT_DB
	UNIT_RPMS
	UNIT_G
	UNIT_DEGREE
	UNIT_RADIANS
	UNIT_GPS
	UNIT_TEXT

	// Split GPS units only exist in protocol tables; sensors store UNIT_GPS
	UNIT_GPS_LONGITUDE
	UNIT_GPS_LATITUDE
)

var unitNames = [...]string{
	UNIT_RAW:               "",
	UNIT_VOLTS:             "V",
	UNIT_AMPS:              "A",
	UNIT_MILLIAMPS:         "mA",
	UNIT_KTS:               "kts",
	UNIT_METERS_PER_SECOND: "m/s",
	UNIT_KMH:               "km/h",
	UNIT_METERS:            "m",
	UNIT_CELSIUS:           "C",
	UNIT_PERCENT:           "%",
	UNIT_MAH:               "mAh",
	UNIT_WATTS:             "W",
	UNIT_MILLIWATTS:        "mW",
	UNIT_DB:                "dB",
	UNIT_RPMS:              "rpm",
	UNIT_G:                 "g",
	UNIT_DEGREE:            "deg",
	UNIT_RADIANS:           "rad",
	UNIT_GPS:               "gps",
	UNIT_TEXT:              "text",
	UNIT_GPS_LONGITUDE:     "lon",
	UNIT_GPS_LATITUDE:      "lat",
}

func (u Unit) String() string {
	if int(u) < len(unitNames) {
		return unitNames[u]
	}
	return "?"
}
