package models

import "slices"

// DeviceCapability tags an interaction a device supports.
type DeviceCapability string

const (
	CapabilityAudioSource  DeviceCapability = "AudioSource"
	CapabilityAudioSink    DeviceCapability = "AudioSink"
	CapabilityInputControl DeviceCapability = "InputControl"
	CapabilityDisplay      DeviceCapability = "Display"
	CapabilityDummy        DeviceCapability = "Dummy"
)

// Device describes a device known to a device manager. Values are immutable:
// constructors copy the capability slice and accessors return copies.
type Device struct {
	// Type selects the owning device manager and must always be set.
	Type string
	// Name is human readable and need not be unique.
	Name string
	// Address is the stable physical address of the device.
	Address string

	capabilities []DeviceCapability
}

// NewDevice builds a device record.
func NewDevice(deviceType, name, address string, caps ...DeviceCapability) Device {
	return Device{
		Type:         deviceType,
		Name:         name,
		Address:      address,
		capabilities: slices.Clone(caps),
	}
}

// Capabilities returns a copy of the device capability tags.
func (d Device) Capabilities() []DeviceCapability {
	return slices.Clone(d.capabilities)
}

// HasCapability reports whether the device carries the given tag.
func (d Device) HasCapability(c DeviceCapability) bool {
	return slices.Contains(d.capabilities, c)
}

// Valid reports whether the mandatory fields are present.
func (d Device) Valid() bool {
	return d.Type != "" && d.Address != ""
}

// Key identifies the device across managers.
func (d Device) Key() string {
	return d.Type + "/" + d.Address
}

// Properties exposes the record as a property map.
func (d Device) Properties() map[string]any {
	caps := make([]string, len(d.capabilities))
	for i, c := range d.capabilities {
		caps[i] = string(c)
	}
	return map[string]any{
		"device_type":  d.Type,
		"name":         d.Name,
		"address":      d.Address,
		"capabilities": caps,
	}
}
