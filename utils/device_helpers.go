package utils

import (
	"fmt"

	"github.com/notargets/gocca"
)

// CreateDevice opens an OCCA device from a JSON property string such as
// {"mode": "CUDA", "device_id": 0}.
func CreateDevice(props string) (*gocca.OCCADevice, error) {
	device, err := gocca.NewDevice(props)
	if err != nil {
		return nil, fmt.Errorf("failed to create device %s: %w", props, err)
	}
	return device, nil
}

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() *gocca.OCCADevice {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}
	for _, props := range backends {
		if device, err := CreateDevice(props); err == nil {
			return device
		}
	}
	panic("Failed to create any Device")
}
