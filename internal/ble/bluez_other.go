//go:build !linux

package ble

// knownToBlueZ is Linux-only; other platforms always scan.
func knownToBlueZ(string) (string, bool) { return "", false }
