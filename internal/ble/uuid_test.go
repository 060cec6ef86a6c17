package ble

import "testing"

func TestParseUUID(t *testing.T) {
	full, err := ParseUUID("0000fff2-0000-1000-8000-00805f9b34fb")
	if err != nil {
		t.Fatalf("ParseUUID(full) error = %v", err)
	}
	for _, short := range []string{"fff2", "FFF2", "0xfff2"} {
		got, err := ParseUUID(short)
		if err != nil {
			t.Fatalf("ParseUUID(%q) error = %v", short, err)
		}
		if got != full {
			t.Errorf("ParseUUID(%q) = %v, want %v", short, got, full)
		}
	}
	for _, bad := range []string{"", "xyz1", "fff2-0000", "0000fff2-0000-1000-8000-00805f9b34fz"} {
		if _, err := ParseUUID(bad); err == nil {
			t.Errorf("ParseUUID(%q) should fail", bad)
		}
	}
}
