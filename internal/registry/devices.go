package registry

import (
	"context"
	"fmt"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/device"
)

// DeviceManagers indexes device managers by the device types they declare.
type DeviceManagers struct {
	managers []device.Manager
	byType   *Table[device.Manager]
}

// BuildDeviceManagers queries every manager's device types concurrently.
// A type declared by two managers fails the build.
func BuildDeviceManagers(ctx context.Context, managers []device.Manager) (*DeviceManagers, error) {
	futures := make([]*actor.Future[[]string], len(managers))
	for i, m := range managers {
		futures[i] = m.DeviceTypes()
	}
	types, err := actor.GetAll(ctx, futures)
	if err != nil {
		return nil, fmt.Errorf("registry: query device types: %w", err)
	}

	r := &DeviceManagers{byType: newTable[device.Manager]()}
	for i, m := range managers {
		for _, t := range types[i] {
			if existing, ok := r.byType.Get(t); ok {
				return nil, &DuplicateKeyError{Kind: "device type", Key: t, Existing: existing.Ref(), Conflicting: m.Ref()}
			}
			r.byType.put(t, m)
		}
		r.managers = append(r.managers, m)
	}
	return r, nil
}

// ForType returns the manager of deviceType.
func (r *DeviceManagers) ForType(deviceType string) (device.Manager, bool) {
	return r.byType.Get(deviceType)
}

// Types returns the device types in declaration order.
func (r *DeviceManagers) Types() []string {
	return r.byType.Keys()
}

// Managers returns each manager once, in construction order.
func (r *DeviceManagers) Managers() []device.Manager {
	return append([]device.Manager(nil), r.managers...)
}
