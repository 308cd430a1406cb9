package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/device"
	"github.com/nupi-ai/chorus/internal/models"
	"github.com/nupi-ai/chorus/internal/registry"
)

// ErrNoManagerForType is returned when no device manager handles a device type.
var ErrNoManagerForType = errors.New("core: no device manager for type")

// DeviceController dispatches device commands to the manager owning the
// device type. In lenient mode mutating commands for unmanaged types are
// dropped instead of failing; queries always fail.
type DeviceController struct {
	managers *registry.DeviceManagers
	lenient  bool
	logger   zerolog.Logger
}

func (d *DeviceController) managerFor(deviceType string) (device.Manager, error) {
	m, ok := d.managers.ForType(deviceType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoManagerForType, deviceType)
	}
	return m, nil
}

// Types lists the device types with a registered manager.
func (d *DeviceController) Types() []string { return d.managers.Types() }

// Devices returns the devices of one type, or of every manager when
// deviceType is empty. Managers handling several types are queried once.
func (d *DeviceController) Devices(ctx context.Context, deviceType string) ([]models.Device, error) {
	if deviceType != "" {
		m, err := d.managerFor(deviceType)
		if err != nil {
			if d.lenient {
				return nil, nil
			}
			return nil, err
		}
		all, err := m.Devices().Get(ctx)
		if err != nil {
			return nil, err
		}
		return slices.DeleteFunc(all, func(dev models.Device) bool { return dev.Type != deviceType }), nil
	}

	managers := d.managers.Managers()
	futures := make([]*actor.Future[[]models.Device], len(managers))
	for i, m := range managers {
		futures[i] = m.Devices()
	}
	lists, err := actor.GetAll(ctx, futures)
	if err != nil {
		return nil, fmt.Errorf("core: list devices: %w", err)
	}
	return slices.Concat(lists...), nil
}

// Enable turns on the manager for deviceType.
func (d *DeviceController) Enable(deviceType string) (*actor.Future[actor.Ack], error) {
	return d.command(deviceType, "enable", device.Manager.Enable)
}

// Disable turns off the manager for deviceType.
func (d *DeviceController) Disable(deviceType string) (*actor.Future[actor.Ack], error) {
	return d.command(deviceType, "disable", device.Manager.Disable)
}

func (d *DeviceController) Connect(dev models.Device) (*actor.Future[actor.Ack], error) {
	return d.deviceCommand(dev, "connect", device.Manager.Connect)
}

func (d *DeviceController) Disconnect(dev models.Device) (*actor.Future[actor.Ack], error) {
	return d.deviceCommand(dev, "disconnect", device.Manager.Disconnect)
}

func (d *DeviceController) Pair(dev models.Device) (*actor.Future[actor.Ack], error) {
	return d.deviceCommand(dev, "pair", device.Manager.Pair)
}

func (d *DeviceController) Remove(dev models.Device) (*actor.Future[actor.Ack], error) {
	return d.deviceCommand(dev, "remove", device.Manager.Remove)
}

func (d *DeviceController) SetProperty(dev models.Device, name string, value any) (*actor.Future[actor.Ack], error) {
	return d.deviceCommand(dev, "set_property", func(m device.Manager, dev models.Device) *actor.Future[actor.Ack] {
		return m.SetProperty(dev, name, value)
	})
}

func (d *DeviceController) IsConnected(ctx context.Context, dev models.Device) (bool, error) {
	m, err := d.managerFor(dev.Type)
	if err != nil {
		return false, err
	}
	return m.IsConnected(dev).Get(ctx)
}

func (d *DeviceController) IsPaired(ctx context.Context, dev models.Device) (bool, error) {
	m, err := d.managerFor(dev.Type)
	if err != nil {
		return false, err
	}
	return m.IsPaired(dev).Get(ctx)
}

func (d *DeviceController) GetProperty(ctx context.Context, dev models.Device, name string) (any, error) {
	m, err := d.managerFor(dev.Type)
	if err != nil {
		return nil, err
	}
	return m.GetProperty(dev, name).Get(ctx)
}

func (d *DeviceController) Properties(ctx context.Context, dev models.Device) (map[string]any, error) {
	m, err := d.managerFor(dev.Type)
	if err != nil {
		return nil, err
	}
	return m.Properties(dev).Get(ctx)
}

func (d *DeviceController) HasProperty(ctx context.Context, dev models.Device, name string) (bool, error) {
	m, err := d.managerFor(dev.Type)
	if err != nil {
		return false, err
	}
	return m.HasProperty(dev, name).Get(ctx)
}

func (d *DeviceController) command(deviceType, op string, fn func(device.Manager) *actor.Future[actor.Ack]) (*actor.Future[actor.Ack], error) {
	m, err := d.managerFor(deviceType)
	if err != nil {
		return d.unmanaged(deviceType, op, err)
	}
	return fn(m), nil
}

func (d *DeviceController) deviceCommand(dev models.Device, op string, fn func(device.Manager, models.Device) *actor.Future[actor.Ack]) (*actor.Future[actor.Ack], error) {
	m, err := d.managerFor(dev.Type)
	if err != nil {
		return d.unmanaged(dev.Type, op, err)
	}
	return fn(m, dev), nil
}

func (d *DeviceController) unmanaged(deviceType, op string, err error) (*actor.Future[actor.Ack], error) {
	if !d.lenient {
		return nil, err
	}
	d.logger.Debug().Str("device_type", deviceType).Str("op", op).Msg("no manager for device type, ignoring")
	return actor.Resolved(actor.Ack{}), nil
}
