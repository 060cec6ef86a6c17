//go:build !darwin && !windows

package ble

import (
	"errors"
	"testing"

	"tinygo.org/x/bluetooth"
)

func TestWriteWithResponseUnsupported(t *testing.T) {
	err := writeCharacteristic(bluetooth.DeviceCharacteristic{}, []byte("cmd38"), true)
	if !errors.Is(err, ErrWriteResponseUnsupported) {
		t.Errorf("writeCharacteristic(expectResponse) error = %v, want ErrWriteResponseUnsupported", err)
	}
}
