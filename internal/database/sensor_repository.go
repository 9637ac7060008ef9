package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dbehnke/rclink/internal/telemetry"
)

// SensorRepository persists the telemetry sensor table and logged readings.
// It implements telemetry.Store.
type SensorRepository struct {
	db *gorm.DB
}

// NewSensorRepository creates a new repository instance
func NewSensorRepository(db *gorm.DB) *SensorRepository {
	return &SensorRepository{db: db}
}

// SaveSensors replaces the stored sensor table with sensors in one transaction
func (r *SensorRepository) SaveSensors(sensors []telemetry.Sensor) error {
	records := make([]TelemetrySensor, 0, len(sensors))
	slots := make([]int, 0, len(sensors))
	now := time.Now()
	for _, s := range sensors {
		if s.Index < 0 || s.Index >= telemetry.MAX_TELEMETRY_SENSORS {
			continue
		}
		rec := NewTelemetrySensor(s)
		rec.SanitizeFields()
		rec.UpdatedAt = now
		records = append(records, rec)
		slots = append(slots, int(rec.SlotIndex))
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		// slot 0 is a real key, so upsert instead of Save
		if len(records) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&records).Error; err != nil {
				return err
			}
		}
		// slots freed since the last save
		del := tx.Where("1 = 1")
		if len(slots) > 0 {
			del = tx.Where("slot_index NOT IN ?", slots)
		}
		return del.Delete(&TelemetrySensor{}).Error
	})
	if err != nil {
		return fmt.Errorf("sensor table save failed: %w", err)
	}
	return nil
}

// LoadSensors returns the stored sensor table ordered by slot
func (r *SensorRepository) LoadSensors() ([]telemetry.Sensor, error) {
	var records []TelemetrySensor
	if err := r.db.Order("slot_index ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	sensors := make([]telemetry.Sensor, 0, len(records))
	for _, rec := range records {
		sensors = append(sensors, rec.Sensor())
	}
	return sensors, nil
}

// GetBySlot finds a sensor record by its table index
func (r *SensorRepository) GetBySlot(index uint8) (*TelemetrySensor, error) {
	var rec TelemetrySensor
	err := r.db.Where("slot_index = ?", index).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LogReading appends one value of a logged sensor
func (r *SensorRepository) LogReading(s telemetry.Sensor, rd telemetry.Reading) error {
	rec := SensorReading{
		SlotIndex:  uint8(s.Index),
		Name:       s.Name,
		Value:      rd.Value,
		Unit:       uint8(s.Unit),
		Precision:  s.Precision,
		ReceivedAt: s.Updated,
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}
	return r.db.Create(&rec).Error
}

// RecentReadings returns the newest readings of a slot, newest first
func (r *SensorRepository) RecentReadings(index uint8, limit int) ([]SensorReading, error) {
	var readings []SensorReading
	err := r.db.Where("slot_index = ?", index).
		Order("received_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&readings).Error
	return readings, err
}

// CountReadings returns the total number of logged readings
func (r *SensorRepository) CountReadings() (int64, error) {
	var count int64
	err := r.db.Model(&SensorReading{}).Count(&count).Error
	return count, err
}

// PruneReadings removes readings received before the given time
func (r *SensorRepository) PruneReadings(before time.Time) (int64, error) {
	res := r.db.Where("received_at < ?", before).Delete(&SensorReading{})
	return res.RowsAffected, res.Error
}

// HealthCheck verifies the repository is working correctly
func (r *SensorRepository) HealthCheck() error {
	var count int64
	return r.db.Model(&TelemetrySensor{}).Count(&count).Error
}
