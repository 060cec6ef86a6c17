//go:build !darwin && !windows

package ble

import (
	"errors"

	"tinygo.org/x/bluetooth"
)

// ErrWriteResponseUnsupported is returned for acknowledged writes on stacks
// that only offer write-without-response, such as BlueZ.
var ErrWriteResponseUnsupported = errors.New("ble: write with response is not supported on this platform")

// writeCharacteristic writes data to char without waiting for an
// acknowledgement.
func writeCharacteristic(char bluetooth.DeviceCharacteristic, data []byte, expectResponse bool) error {
	if expectResponse {
		return ErrWriteResponseUnsupported
	}
	_, err := char.WriteWithoutResponse(data)
	return err
}
