// Package core coordinates backends, services, device managers and the audio
// output. It listens to every upstream topic, reconciles playback state and
// relays collaborator events to frontends on the core topic.
package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/audio/output"
	"github.com/nupi-ai/chorus/internal/backend"
	"github.com/nupi-ai/chorus/internal/device"
	"github.com/nupi-ai/chorus/internal/eventbus"
	"github.com/nupi-ai/chorus/internal/models"
	"github.com/nupi-ai/chorus/internal/registry"
	"github.com/nupi-ai/chorus/internal/service"
	"github.com/nupi-ai/chorus/internal/version"
)

// Audio is the part of the audio subsystem the core drives.
type Audio interface {
	Router() *output.Router
	SetState(ctx context.Context, state models.PlaybackState) error
	Position() time.Duration
}

// Options configures a Core.
type Options struct {
	Bus            *eventbus.Bus
	Audio          Audio
	Backends       []backend.Backend
	Services       []service.Service
	DeviceManagers []device.Manager
	// LenientDeviceDispatch turns device commands for types without a
	// manager into no-ops instead of ErrNoManagerForType.
	LenientDeviceDispatch bool
	Logger                zerolog.Logger
}

// Core is the orchestrator actor.
type Core struct {
	bus    *eventbus.Bus
	audio  Audio
	logger zerolog.Logger

	mailbox  *actor.Mailbox
	backends *registry.Backends
	services *registry.Services
	devices  *registry.DeviceManagers

	Playback *PlaybackController
	Service  *ServiceController
	Device   *DeviceController

	lifecycle eventbus.ServiceLifecycle
	stopOnce  sync.Once
}

// New builds the registries, wires the controllers and attaches the core to
// the upstream topics. A registry conflict is returned as a
// *registry.DuplicateKeyError.
func New(ctx context.Context, opts Options) (*Core, error) {
	c := &Core{
		bus:     opts.Bus,
		audio:   opts.Audio,
		logger:  opts.Logger,
		mailbox: actor.NewMailbox(actor.NewRef("core"), actor.WithLogger(opts.Logger), actor.WithQueueSize(256)),
	}

	if err := c.buildRegistries(ctx, opts); err != nil {
		return nil, err
	}

	c.Playback = &PlaybackController{core: c, state: models.PlaybackStopped}
	c.Service = &ServiceController{services: c.services}
	c.Device = &DeviceController{managers: c.devices, lenient: opts.LenientDeviceDispatch, logger: c.logger}

	c.lifecycle.Start(context.WithoutCancel(ctx))
	c.mailbox.Start(c.lifecycle.Context())

	l := &listener{core: c}
	lctx := c.lifecycle.Context()
	c.lifecycle.Track(
		eventbus.ListenAudio(lctx, c.bus, l),
		eventbus.ListenBackend(lctx, c.bus, l),
		eventbus.ListenMixer(lctx, c.bus, l),
		eventbus.ListenDevice(lctx, c.bus, l),
		eventbus.ListenService(lctx, c.bus, l),
	)

	c.logger.Info().
		Int("backends", len(c.backends.All())).
		Int("services", c.services.Len()).
		Strs("device_types", c.devices.Types()).
		Msg("core ready")
	return c, nil
}

func (c *Core) buildRegistries(ctx context.Context, opts Options) error {
	var wg sync.WaitGroup
	var backendErr, serviceErr, devErr error
	wg.Add(3)
	go func() {
		defer wg.Done()
		c.backends, backendErr = registry.BuildBackends(ctx, opts.Backends)
	}()
	go func() {
		defer wg.Done()
		c.services, serviceErr = registry.BuildServices(ctx, opts.Services, opts.Bus)
	}()
	go func() {
		defer wg.Done()
		c.devices, devErr = registry.BuildDeviceManagers(ctx, opts.DeviceManagers)
	}()
	wg.Wait()
	return errors.Join(backendErr, serviceErr, devErr)
}

// Start satisfies runtime.Service. The core is already attached by New.
func (c *Core) Start(context.Context) error { return nil }

// Shutdown detaches the core from the bus and stops its mailbox.
func (c *Core) Shutdown(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		err = c.lifecycle.Shutdown(ctx)
		c.mailbox.Stop()
	})
	return err
}

// Ref identifies the core actor.
func (c *Core) Ref() actor.Ref { return c.mailbox.Ref() }

// Version returns the build version.
func (c *Core) Version() string { return version.String() }

// Output returns the fan-out node components attach their sinks to, or nil
// when the core runs without audio.
func (c *Core) Output() *output.Router {
	if c.audio == nil {
		return nil
	}
	return c.audio.Router()
}

// Backends exposes the backend registry.
func (c *Core) Backends() *registry.Backends { return c.backends }

// URISchemes returns every scheme handled by any backend, sorted.
func (c *Core) URISchemes(ctx context.Context) ([]string, error) {
	backends := c.backends.All()
	futures := make([]*actor.Future[[]string], len(backends))
	for i, b := range backends {
		futures[i] = b.URISchemes()
	}
	results, err := actor.GetAll(ctx, futures)
	if err != nil {
		return nil, fmt.Errorf("core: query uri schemes: %w", err)
	}
	schemes := slices.Concat(results...)
	slices.Sort(schemes)
	return schemes, nil
}

// RegisterService adds svc to the running core. The registry announces it
// with service_registered, which the core relays to frontends.
func (c *Core) RegisterService(ctx context.Context, svc service.Service) error {
	if err := c.services.Add(ctx, svc); err != nil {
		return err
	}
	c.logger.Info().Str("service", svc.Ref().String()).Msg("service registered")
	return nil
}

func (c *Core) publish(ev eventbus.Event) {
	eventbus.Send(c.lifecycle.Context(), c.bus, eventbus.Listeners.Core, eventbus.SourceCore, ev)
}

// listener receives every upstream category and hands the events to the
// core mailbox so they are handled serially, in arrival order.
type listener struct {
	eventbus.BaseAudioListener
	eventbus.BaseBackendListener
	eventbus.BaseMixerListener
	eventbus.BaseDeviceListener
	eventbus.BaseServiceListener
	core *Core
}

func (l *listener) OnEvent(ev eventbus.Event) {
	c := l.core
	if err := c.mailbox.Tell(func() { c.handle(ev) }); err != nil {
		c.logger.Debug().Err(err).Str("event", ev.EventName()).Msg("event dropped, core stopped")
	}
}

func (c *Core) handle(ev eventbus.Event) {
	switch e := ev.(type) {
	case eventbus.ReachedEndOfStream:
		c.Playback.onEndOfTrack()
	case eventbus.PlaybackStateChanged:
		c.Playback.onAudioStateChanged(e)
	case eventbus.PlaylistsLoaded,
		eventbus.VolumeChanged,
		eventbus.MuteChanged,
		eventbus.DeviceFound,
		eventbus.DeviceDisappeared,
		eventbus.DeviceConnected,
		eventbus.DeviceDisconnected,
		eventbus.DeviceCreated,
		eventbus.DeviceRemoved,
		eventbus.DevicePropertyChanged,
		eventbus.DevicePinCodeRequested,
		eventbus.DevicePassKeyConfirmation,
		eventbus.ServiceStarting,
		eventbus.ServiceStarted,
		eventbus.ServiceStopped,
		eventbus.ServicePropertyChanged,
		eventbus.ServiceRegistered:
		c.publish(ev)
	default:
		c.logger.Debug().Str("event", ev.EventName()).Msg("ignoring event")
	}
}
