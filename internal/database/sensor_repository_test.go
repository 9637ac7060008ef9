package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/rclink/internal/telemetry"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(Config{Path: filepath.Join(t.TempDir(), "data", "telemetry.db")}, nil)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSensors() []telemetry.Sensor {
	return []telemetry.Sensor{
		{Index: 0, Protocol: telemetry.PROTOCOL_TELEMETRY_CROSSFIRE, ID: 0x14, SubID: 0, Name: "1RSS", Unit: telemetry.UNIT_DB, Logs: true},
		{Index: 3, Protocol: telemetry.PROTOCOL_TELEMETRY_CROSSFIRE, ID: 0x08, SubID: 0, Name: " RxBt ", Unit: telemetry.UNIT_VOLTS, Precision: 1},
	}
}

func TestSensorRepository_SaveAndLoad(t *testing.T) {
	repo := newTestDB(t).Sensors()

	if err := repo.SaveSensors(testSensors()); err != nil {
		t.Fatalf("SaveSensors() error = %v", err)
	}

	loaded, err := repo.LoadSensors()
	if err != nil {
		t.Fatalf("LoadSensors() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("LoadSensors() returned %d sensors, want 2", len(loaded))
	}
	if loaded[0].Name != "1RSS" || !loaded[0].Logs || loaded[0].ID != 0x14 {
		t.Errorf("slot 0 = %+v", loaded[0])
	}
	if loaded[1].Index != 3 || loaded[1].Name != "RxBt" || loaded[1].Precision != 1 {
		t.Errorf("slot 3 = %+v, want trimmed name and precision 1", loaded[1])
	}
	if loaded[1].Unit != telemetry.UNIT_VOLTS {
		t.Errorf("slot 3 unit = %s, want %s", loaded[1].Unit, telemetry.UNIT_VOLTS)
	}
}

func TestSensorRepository_SaveRemovesFreedSlots(t *testing.T) {
	repo := newTestDB(t).Sensors()

	if err := repo.SaveSensors(testSensors()); err != nil {
		t.Fatalf("SaveSensors() error = %v", err)
	}
	if err := repo.SaveSensors(testSensors()[:1]); err != nil {
		t.Fatalf("SaveSensors() error = %v", err)
	}

	if _, err := repo.GetBySlot(3); err == nil {
		t.Error("slot 3 still stored after it was freed")
	}
	if rec, err := repo.GetBySlot(0); err != nil || rec.Name != "1RSS" {
		t.Errorf("GetBySlot(0) = %v, %v", rec, err)
	}

	if err := repo.SaveSensors(nil); err != nil {
		t.Fatalf("SaveSensors(nil) error = %v", err)
	}
	loaded, err := repo.LoadSensors()
	if err != nil {
		t.Fatalf("LoadSensors() error = %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("LoadSensors() after empty save = %d sensors, want 0", len(loaded))
	}
}

func TestSensorRepository_Readings(t *testing.T) {
	repo := newTestDB(t).Sensors()
	s := testSensors()[0]

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		s.Updated = base.Add(time.Duration(i) * time.Minute)
		if err := repo.LogReading(s, telemetry.Reading{Value: int32(-60 - i)}); err != nil {
			t.Fatalf("LogReading() error = %v", err)
		}
	}

	count, err := repo.CountReadings()
	if err != nil || count != 5 {
		t.Fatalf("CountReadings() = %d, %v, want 5", count, err)
	}

	recent, err := repo.RecentReadings(0, 2)
	if err != nil {
		t.Fatalf("RecentReadings() error = %v", err)
	}
	if len(recent) != 2 || recent[0].Value != -64 || recent[1].Value != -63 {
		t.Errorf("RecentReadings() = %+v, want values -64, -63", recent)
	}

	pruned, err := repo.PruneReadings(base.Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("PruneReadings() error = %v", err)
	}
	if pruned != 2 {
		t.Errorf("PruneReadings() removed %d, want 2", pruned)
	}
}

func TestSensorRepository_RegistryFlush(t *testing.T) {
	repo := newTestDB(t).Sensors()
	reg := telemetry.NewRegistry(repo, nil)

	reg.SetValue(telemetry.Reading{Protocol: telemetry.PROTOCOL_TELEMETRY_CROSSFIRE, ID: 0x08, Value: 120, Unit: telemetry.UNIT_VOLTS, Precision: 1})
	if !reg.Dirty() {
		t.Fatal("registry not dirty after new sensor")
	}
	if err := reg.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if reg.Dirty() {
		t.Error("registry still dirty after Flush")
	}

	loaded, err := repo.LoadSensors()
	if err != nil || len(loaded) != 1 {
		t.Fatalf("LoadSensors() = %d sensors, %v, want 1", len(loaded), err)
	}

	restored := telemetry.NewRegistry(repo, nil)
	restored.Load(loaded)
	if _, ok := restored.Lookup(telemetry.PROTOCOL_TELEMETRY_CROSSFIRE, 0x08, 0); !ok {
		t.Error("restored registry is missing the saved sensor")
	}
}

func TestDB_Health(t *testing.T) {
	db := newTestDB(t)
	if err := db.Health(); err != nil {
		t.Errorf("Health() error = %v", err)
	}
	if err := db.Sensors().HealthCheck(); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
