package ble

import (
	"context"
	"fmt"
	"time"
)

// ScanForDevices enables the adapter and scans for timeout. An empty
// serviceUUID lists every advertising peripheral, which is what the swing
// needs since it does not advertise a well-known service.
func ScanForDevices(adapter Adapter, serviceUUID string, timeout time.Duration) ([]Device, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	devices, err := adapter.Scan(ctx, serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	return devices, nil
}
