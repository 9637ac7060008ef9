package crossfire

import "testing"

func TestCRC8_CheckValue(t *testing.T) {
	// CRC-8/DVB-S2 catalogue check value
	if got := CRC8([]byte("123456789")); got != 0xBC {
		t.Errorf("CRC8(123456789) = 0x%02X, want 0xBC", got)
	}
	if got := CRC8(nil); got != 0 {
		t.Errorf("CRC8(nil) = 0x%02X, want 0", got)
	}
}

func TestCommandCRC8(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{"check value", []byte("123456789"), 0x20},
		{"bind command", []byte{COMMAND_ID, MODULE_ADDRESS, RADIO_ADDRESS, COMMAND_RX, COMMAND_RX_BIND}, 0x14},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CommandCRC8(tt.data); got != tt.want {
				t.Errorf("CommandCRC8() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestCheckFrameCRC(t *testing.T) {
	frame := buildFrame(BATTERY_ID, 0x00, 0x7B, 0x00, 0x0A, 0x00, 0x01, 0xF4, 0x55)
	if !checkFrameCRC(frame) {
		t.Fatal("checkFrameCRC() = false for a built frame")
	}

	// every single bit flip in the covered range is detected
	for i := 2; i < len(frame); i++ {
		for bit := 0; bit < 8; bit++ {
			bad := append([]byte(nil), frame...)
			bad[i] ^= 1 << bit
			if checkFrameCRC(bad) {
				t.Errorf("flip byte %d bit %d not detected", i, bit)
			}
		}
	}

	if checkFrameCRC(frame[:len(frame)-1]) {
		t.Error("checkFrameCRC() = true for a truncated frame")
	}
}
