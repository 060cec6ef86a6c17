//go:build darwin || windows

package ble

import "tinygo.org/x/bluetooth"

// writeCharacteristic writes data to char, waiting for the peripheral's
// acknowledgement when expectResponse is set.
func writeCharacteristic(char bluetooth.DeviceCharacteristic, data []byte, expectResponse bool) error {
	var err error
	if expectResponse {
		_, err = char.Write(data)
	} else {
		_, err = char.WriteWithoutResponse(data)
	}
	return err
}
