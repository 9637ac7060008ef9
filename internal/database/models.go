package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/dbehnke/rclink/internal/telemetry"
)

// TelemetrySensor is one persisted slot of the sensor table
type TelemetrySensor struct {
	SlotIndex uint8     `gorm:"primarykey;autoIncrement:false" json:"slot_index"`
	Protocol  uint8     `gorm:"not null;index:idx_sensor_source" json:"protocol"`
	SourceID  uint16    `gorm:"not null;index:idx_sensor_source" json:"source_id"`
	SubID     uint8     `gorm:"not null;index:idx_sensor_source" json:"sub_id"`
	Instance  uint8     `json:"instance"`
	Name      string    `gorm:"size:16" json:"name"`
	Unit      uint8     `json:"unit"`
	Precision uint8     `json:"precision"`
	Logs      bool      `json:"logs"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (TelemetrySensor) TableName() string {
	return "telemetry_sensors"
}

// String returns a formatted string representation
func (s TelemetrySensor) String() string {
	return fmt.Sprintf("%d %s (id=0x%02X sub=%d)", s.SlotIndex, s.Name, s.SourceID, s.SubID)
}

// SanitizeFields cleans up the sensor name
func (s *TelemetrySensor) SanitizeFields() {
	s.Name = strings.TrimSpace(s.Name)
	if len(s.Name) > 16 {
		s.Name = s.Name[:16]
	}
}

// NewTelemetrySensor converts a registry slot to its record
func NewTelemetrySensor(s telemetry.Sensor) TelemetrySensor {
	return TelemetrySensor{
		SlotIndex: uint8(s.Index),
		Protocol:  uint8(s.Protocol),
		SourceID:  s.ID,
		SubID:     s.SubID,
		Instance:  s.Instance,
		Name:      s.Name,
		Unit:      uint8(s.Unit),
		Precision: s.Precision,
		Logs:      s.Logs,
	}
}

// Sensor converts the record back to a registry slot
func (s TelemetrySensor) Sensor() telemetry.Sensor {
	return telemetry.Sensor{
		Index:     int(s.SlotIndex),
		Protocol:  telemetry.Protocol(s.Protocol),
		ID:        s.SourceID,
		SubID:     s.SubID,
		Instance:  s.Instance,
		Name:      s.Name,
		Unit:      telemetry.Unit(s.Unit),
		Precision: s.Precision,
		Logs:      s.Logs,
	}
}

// SensorReading is one logged value of a sensor with Logs set
type SensorReading struct {
	ID         uint64    `gorm:"primarykey" json:"id"`
	SlotIndex  uint8     `gorm:"index" json:"slot_index"`
	Name       string    `gorm:"size:16" json:"name"`
	Value      int32     `json:"value"`
	Unit       uint8     `json:"unit"`
	Precision  uint8     `json:"precision"`
	ReceivedAt time.Time `gorm:"index" json:"received_at"`
}

// TableName specifies the table name for GORM
func (SensorReading) TableName() string {
	return "sensor_readings"
}
