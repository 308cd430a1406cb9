// Package dummy provides an in-memory device manager. Devices appear through
// Scan or Discover; pairings can be persisted with a pairstore.Store.
package dummy

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/device"
	"github.com/nupi-ai/chorus/internal/device/pairstore"
	"github.com/nupi-ai/chorus/internal/eventbus"
	"github.com/nupi-ai/chorus/internal/models"
)

// DefaultType is the device type served when Options.Types is empty.
const DefaultType = "dummy"

const deviceName = "dummy_device"

// Options configures a dummy manager.
type Options struct {
	Types []string
	// PinCode, when set, is announced through device_pin_code_requested on Pair.
	PinCode string
	Store   *pairstore.Store
	Bus     *eventbus.Bus
	Logger  zerolog.Logger
}

// Manager is the reference device manager actor.
type Manager struct {
	types   []string
	pinCode string
	store   *pairstore.Store
	bus     *eventbus.Bus
	logger  zerolog.Logger
	mailbox *actor.Mailbox
	ctx     context.Context

	enabled   bool
	devices   map[string]models.Device
	connected map[string]bool
	paired    map[string]bool
	props     map[string]map[string]any
}

// New returns a stopped, enabled manager.
func New(opts Options) *Manager {
	types := slices.Clone(opts.Types)
	if len(types) == 0 {
		types = []string{DefaultType}
	}
	return &Manager{
		types:     types,
		pinCode:   opts.PinCode,
		store:     opts.Store,
		bus:       opts.Bus,
		logger:    opts.Logger,
		mailbox:   actor.NewMailbox(actor.NewRef("device/"+strings.Join(types, "+")), actor.WithLogger(opts.Logger)),
		ctx:       context.Background(),
		enabled:   true,
		devices:   make(map[string]models.Device),
		connected: make(map[string]bool),
		paired:    make(map[string]bool),
		props:     make(map[string]map[string]any),
	}
}

func (m *Manager) Ref() actor.Ref { return m.mailbox.Ref() }

// Start runs the mailbox and restores remembered pairings.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx = ctx
	m.mailbox.Start(ctx)
	if m.store == nil {
		return nil
	}
	_, err := actor.Do(m.mailbox, func() error {
		for _, t := range m.types {
			recs, err := m.store.List(ctx, t)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				d := models.NewDevice(rec.DeviceType, rec.Name, rec.Address, models.CapabilityDummy)
				m.devices[d.Key()] = d
				m.paired[d.Key()] = true
			}
			m.logger.Debug().Str("device_type", t).Int("paired", len(recs)).Msg("restored pairings")
		}
		return nil
	}).Get(ctx)
	return err
}

// Shutdown stops the mailbox.
func (m *Manager) Shutdown(context.Context) error {
	m.mailbox.Stop()
	return nil
}

func (m *Manager) DeviceTypes() *actor.Future[[]string] {
	return actor.Ask(m.mailbox, func() ([]string, error) {
		return slices.Clone(m.types), nil
	})
}

func (m *Manager) Devices() *actor.Future[[]models.Device] {
	return actor.Ask(m.mailbox, func() ([]models.Device, error) {
		keys := slices.Sorted(maps.Keys(m.devices))
		out := make([]models.Device, 0, len(keys))
		for _, k := range keys {
			out = append(out, m.devices[k])
		}
		return out, nil
	})
}

// Scan discovers one device with a random address.
func (m *Manager) Scan() *actor.Future[models.Device] {
	return actor.Ask(m.mailbox, func() (models.Device, error) {
		if !m.enabled {
			return models.Device{}, device.ErrDisabled
		}
		addr := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
		d := models.NewDevice(m.types[0], deviceName, addr, models.CapabilityDummy)
		m.discover(d)
		return d, nil
	})
}

// Discover makes d known to the manager as if a scan had found it.
func (m *Manager) Discover(d models.Device) *actor.Future[actor.Ack] {
	return actor.Do(m.mailbox, func() error {
		if err := m.owns(d); err != nil {
			return err
		}
		m.discover(d)
		return nil
	})
}

// Lose drops a discovered device that is neither connected nor paired.
func (m *Manager) Lose(d models.Device) *actor.Future[actor.Ack] {
	return actor.Do(m.mailbox, func() error {
		known, err := m.lookup(d)
		if err != nil {
			return err
		}
		if m.connected[d.Key()] || m.paired[d.Key()] {
			return nil
		}
		delete(m.devices, d.Key())
		delete(m.props, d.Key())
		m.send(eventbus.DeviceDisappeared{Device: known})
		return nil
	})
}

func (m *Manager) Enable() *actor.Future[actor.Ack] {
	return actor.Do(m.mailbox, func() error {
		m.enabled = true
		return nil
	})
}

func (m *Manager) Disable() *actor.Future[actor.Ack] {
	return actor.Do(m.mailbox, func() error {
		m.enabled = false
		return nil
	})
}

func (m *Manager) Connect(d models.Device) *actor.Future[actor.Ack] {
	return actor.Do(m.mailbox, func() error {
		known, err := m.lookup(d)
		if err != nil {
			return err
		}
		if m.connected[d.Key()] {
			return nil
		}
		m.connected[d.Key()] = true
		m.send(eventbus.DeviceConnected{Device: known})
		return nil
	})
}

func (m *Manager) Disconnect(d models.Device) *actor.Future[actor.Ack] {
	return actor.Do(m.mailbox, func() error {
		if !m.connected[d.Key()] {
			return nil
		}
		delete(m.connected, d.Key())
		m.send(eventbus.DeviceDisconnected{Device: m.devices[d.Key()]})
		return nil
	})
}

func (m *Manager) Pair(d models.Device) *actor.Future[actor.Ack] {
	return actor.Do(m.mailbox, func() error {
		known, err := m.lookup(d)
		if err != nil {
			return err
		}
		if !m.connected[d.Key()] {
			return fmt.Errorf("%w: %s", device.ErrNotConnected, d.Key())
		}
		if m.paired[d.Key()] {
			return nil
		}
		if m.pinCode != "" {
			m.send(eventbus.DevicePinCodeRequested{Device: known, PinCode: m.pinCode})
		}
		if m.store != nil {
			if err := m.store.Save(m.ctx, pairstore.Record{DeviceType: known.Type, Address: known.Address, Name: known.Name}); err != nil {
				return err
			}
		}
		m.paired[d.Key()] = true
		m.send(eventbus.DeviceCreated{Device: known})
		return nil
	})
}

func (m *Manager) Remove(d models.Device) *actor.Future[actor.Ack] {
	return actor.Do(m.mailbox, func() error {
		if !m.paired[d.Key()] {
			return nil
		}
		if m.store != nil {
			if err := m.store.Delete(m.ctx, d.Type, d.Address); err != nil {
				return err
			}
		}
		delete(m.paired, d.Key())
		m.send(eventbus.DeviceRemoved{Device: m.devices[d.Key()]})
		return nil
	})
}

func (m *Manager) IsConnected(d models.Device) *actor.Future[bool] {
	return actor.Ask(m.mailbox, func() (bool, error) {
		return m.connected[d.Key()], nil
	})
}

func (m *Manager) IsPaired(d models.Device) *actor.Future[bool] {
	return actor.Ask(m.mailbox, func() (bool, error) {
		return m.paired[d.Key()], nil
	})
}

func (m *Manager) SetProperty(d models.Device, name string, value any) *actor.Future[actor.Ack] {
	return actor.Do(m.mailbox, func() error {
		known, err := m.lookup(d)
		if err != nil {
			return err
		}
		props := m.props[d.Key()]
		if props == nil {
			props = make(map[string]any)
			m.props[d.Key()] = props
		}
		props[name] = value
		m.send(eventbus.DevicePropertyChanged{Device: known, Properties: map[string]any{name: value}})
		return nil
	})
}

func (m *Manager) GetProperty(d models.Device, name string) *actor.Future[any] {
	return actor.Ask(m.mailbox, func() (any, error) {
		props, err := m.properties(d)
		if err != nil {
			return nil, err
		}
		v, ok := props[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", device.ErrUnknownProperty, d.Key(), name)
		}
		return v, nil
	})
}

func (m *Manager) Properties(d models.Device) *actor.Future[map[string]any] {
	return actor.Ask(m.mailbox, func() (map[string]any, error) {
		return m.properties(d)
	})
}

func (m *Manager) HasProperty(d models.Device, name string) *actor.Future[bool] {
	return actor.Ask(m.mailbox, func() (bool, error) {
		props, err := m.properties(d)
		if err != nil {
			return false, err
		}
		_, ok := props[name]
		return ok, nil
	})
}

func (m *Manager) properties(d models.Device) (map[string]any, error) {
	known, err := m.lookup(d)
	if err != nil {
		return nil, err
	}
	props := known.Properties()
	maps.Copy(props, m.props[d.Key()])
	return props, nil
}

func (m *Manager) discover(d models.Device) {
	if _, ok := m.devices[d.Key()]; ok {
		return
	}
	m.devices[d.Key()] = d
	m.send(eventbus.DeviceFound{Device: d})
}

func (m *Manager) owns(d models.Device) error {
	if !d.Valid() || !slices.Contains(m.types, d.Type) {
		return fmt.Errorf("%w: %s", device.ErrUnknownDevice, d.Key())
	}
	return nil
}

func (m *Manager) lookup(d models.Device) (models.Device, error) {
	known, ok := m.devices[d.Key()]
	if !ok {
		return models.Device{}, fmt.Errorf("%w: %s", device.ErrUnknownDevice, d.Key())
	}
	return known, nil
}

func (m *Manager) send(ev eventbus.Event) {
	eventbus.Send(m.ctx, m.bus, eventbus.Listeners.Device, eventbus.SourceDeviceManager, ev)
}

var _ device.Manager = (*Manager)(nil)
