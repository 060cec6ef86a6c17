package ble

import (
	"fmt"
	"strconv"
	"strings"

	"tinygo.org/x/bluetooth"
)

// ParseUUID accepts a full 128-bit UUID or a 16-bit short form such as
// "fff2", which expands onto the Bluetooth base UUID.
func ParseUUID(s string) (bluetooth.UUID, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(s) == 4 {
		v, err := strconv.ParseUint(s, 16, 16)
		if err != nil {
			return bluetooth.UUID{}, fmt.Errorf("ble: invalid UUID %q: %w", s, err)
		}
		return bluetooth.New16BitUUID(uint16(v)), nil
	}
	uuid, err := bluetooth.ParseUUID(s)
	if err != nil {
		return bluetooth.UUID{}, fmt.Errorf("ble: invalid UUID %q: %w", s, err)
	}
	return uuid, nil
}
