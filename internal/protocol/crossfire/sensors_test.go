package crossfire

import (
	"testing"

	"github.com/dbehnke/rclink/internal/telemetry"
)

func TestLookupSensor(t *testing.T) {
	tests := []struct {
		name  string
		id    uint8
		subID uint8
		want  string
	}{
		{"link quality", LINK_ID, 2, "RQly"},
		{"tx power", LINK_ID, 6, "TPWR"},
		{"link past group", LINK_ID, 10, "UNKNOWN"},
		{"battery capacity", BATTERY_ID, 2, "Capa"},
		{"battery past group", BATTERY_ID, 3, "UNKNOWN"},
		{"gps altitude", GPS_ID, 4, "Alt"},
		{"yaw", ATTITUDE_ID, 2, "Yaw"},
		{"flight mode", FLIGHT_MODE_ID, 0, "FM"},
		{"vario", CF_VARIO_ID, 0, "UNKNOWN"},
		{"unknown id", 0x7A, 0, "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LookupSensor(tt.id, tt.subID).Name; got != tt.want {
				t.Errorf("LookupSensor(0x%02X, %d) = %q, want %q", tt.id, tt.subID, got, tt.want)
			}
		})
	}
}

func TestSensorAt_OutOfRange(t *testing.T) {
	if got := SensorAt(-1).Name; got != "UNKNOWN" {
		t.Errorf("SensorAt(-1) = %q", got)
	}
	if got := SensorAt(UNKNOWN_INDEX + 1).Name; got != "UNKNOWN" {
		t.Errorf("SensorAt(past end) = %q", got)
	}
}

func TestDefaults_SetDefault(t *testing.T) {
	tests := []struct {
		name     string
		id       uint16
		subID    uint8
		wantName string
		wantUnit telemetry.Unit
		wantPrec uint8
		wantLogs bool
	}{
		{"gps position", GPS_ID, 0, "GPS", telemetry.UNIT_GPS, 0, false},
		{"heading precision clamped", GPS_ID, 3, "Hdg", telemetry.UNIT_DEGREE, 2, false},
		{"voltage", BATTERY_ID, 0, "RxBt", telemetry.UNIT_VOLTS, 1, false},
		{"link logs", LINK_ID, 2, "RQly", telemetry.UNIT_PERCENT, 0, true},
		{"wide id", 0x114, 0, "UNKNOWN", telemetry.UNIT_RAW, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s telemetry.Sensor
			Defaults{}.SetDefault(&s, tt.id, tt.subID)
			if s.Name != tt.wantName || s.Unit != tt.wantUnit || s.Precision != tt.wantPrec || s.Logs != tt.wantLogs {
				t.Errorf("SetDefault() = %q %s prec %d logs %v, want %q %s prec %d logs %v",
					s.Name, s.Unit, s.Precision, s.Logs, tt.wantName, tt.wantUnit, tt.wantPrec, tt.wantLogs)
			}
			if s.ID != tt.id || s.SubID != tt.subID {
				t.Errorf("SetDefault() id = 0x%X/%d", s.ID, s.SubID)
			}
		})
	}
}
