// Package device declares the contract of device managers. A manager owns
// discovery and pairing for one or more device types.
package device

import (
	"errors"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/models"
)

var (
	// ErrUnknownDevice is reported for devices the manager has never discovered.
	ErrUnknownDevice = errors.New("device: unknown device")
	// ErrUnknownProperty is reported by GetProperty for names the device does not expose.
	ErrUnknownProperty = errors.New("device: unknown property")
	// ErrDisabled is reported by managers that refuse work while disabled.
	ErrDisabled = errors.New("device: manager disabled")
	// ErrNotConnected is reported when pairing a device that is not connected.
	ErrNotConnected = errors.New("device: not connected")
)

// Manager is an actor handling every device of the types it declares.
// Connection and pairing state are owned by the manager and only queried.
type Manager interface {
	actor.Referable
	DeviceTypes() *actor.Future[[]string]
	Devices() *actor.Future[[]models.Device]
	Enable() *actor.Future[actor.Ack]
	Disable() *actor.Future[actor.Ack]
	Connect(d models.Device) *actor.Future[actor.Ack]
	Disconnect(d models.Device) *actor.Future[actor.Ack]
	Pair(d models.Device) *actor.Future[actor.Ack]
	Remove(d models.Device) *actor.Future[actor.Ack]
	IsConnected(d models.Device) *actor.Future[bool]
	IsPaired(d models.Device) *actor.Future[bool]
	SetProperty(d models.Device, name string, value any) *actor.Future[actor.Ack]
	GetProperty(d models.Device, name string) *actor.Future[any]
	Properties(d models.Device) *actor.Future[map[string]any]
	HasProperty(d models.Device, name string) *actor.Future[bool]
}
