package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gopxl/beep"
	"github.com/spf13/cobra"

	"github.com/nupi-ai/chorus/internal/audio/output"
	"github.com/nupi-ai/chorus/internal/audio/pipeline"
	"github.com/nupi-ai/chorus/internal/backend"
	backenddummy "github.com/nupi-ai/chorus/internal/backend/dummy"
	"github.com/nupi-ai/chorus/internal/config"
	"github.com/nupi-ai/chorus/internal/core"
	"github.com/nupi-ai/chorus/internal/device"
	devicedummy "github.com/nupi-ai/chorus/internal/device/dummy"
	"github.com/nupi-ai/chorus/internal/device/pairstore"
	"github.com/nupi-ai/chorus/internal/eventbus"
	"github.com/nupi-ai/chorus/internal/logging"
	"github.com/nupi-ai/chorus/internal/observability"
	"github.com/nupi-ai/chorus/internal/runtime"
	"github.com/nupi-ai/chorus/internal/service"
	servicedummy "github.com/nupi-ai/chorus/internal/service/dummy"
	"github.com/nupi-ai/chorus/internal/version"
)

// daemon holds everything runDaemon wires together.
type daemon struct {
	settings *config.Settings
	paths    config.InstancePaths
	bus      *eventbus.Bus
	host     *runtime.ServiceHost
	store    *pairstore.Store
	core     *core.Core
}

func runDaemon(cmd *cobra.Command, flags *globalFlags) error {
	settings, err := config.Load(flags.configPath, flags.instance)
	if err != nil {
		return err
	}
	paths, err := config.EnsureInstanceDirs(flags.instance)
	if err != nil {
		return fmt.Errorf("failed to prepare instance directories: %w", err)
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
		File:   config.ExpandPath(settings.Log.File),
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	logger := logging.Component("daemon")

	if pid, err := runtime.ReadPIDFile(paths.PIDFile); err == nil && processAlive(pid) {
		return fmt.Errorf("daemon is already running (PID %d)", pid)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, settings, paths)
	if err != nil {
		return err
	}
	defer d.close()

	if err := d.host.Start(ctx); err != nil {
		return err
	}
	if err := runtime.WritePIDFile(paths.PIDFile, os.Getpid()); err != nil {
		logger.Warn().Err(err).Msg("failed to write pid file")
	}
	defer runtime.RemovePIDFile(paths.PIDFile)

	logger.Info().
		Int("pid", os.Getpid()).
		Str("version", version.Display()).
		Strs("services", d.host.Names()).
		Strs("device_types", d.core.Device.Types()).
		Msg("chorus daemon started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case runErr = <-d.host.Errors():
		logger.Error().Err(runErr).Msg("service failed, shutting down")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := d.host.Stop(stopCtx); err != nil {
		logger.Warn().Err(err).Msg("error during shutdown")
		runErr = errors.Join(runErr, err)
	}
	logger.Info().Msg("daemon stopped")
	return runErr
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// newDaemon registers the services in dependency order: the audio pipeline
// and collaborators start before the core, which probes them while building
// its registries.
func newDaemon(ctx context.Context, settings *config.Settings, paths config.InstancePaths) (*daemon, error) {
	corePolicy, err := eventbus.ParseStrategy(settings.Events.CorePolicy)
	if err != nil {
		return nil, err
	}
	counter := observability.NewEventCounter()
	bus := eventbus.New(
		eventbus.WithLogger(logging.Component("eventbus")),
		eventbus.WithObserver(counter),
		eventbus.WithTopicPolicy(eventbus.TopicCore, eventbus.DeliveryPolicy{Strategy: corePolicy}),
	)
	d := &daemon{
		settings: settings,
		paths:    paths,
		bus:      bus,
		host:     runtime.NewServiceHost(runtime.WithLogger(logging.Component("runtime"))),
	}

	router := output.New(output.Options{
		Format: beep.Format{
			SampleRate:  beep.SampleRate(settings.Output.SampleRate),
			NumChannels: settings.Output.Channels,
			Precision:   output.DefaultFormat.Precision,
		},
		QueueBytes: settings.Output.QueueBytes,
		Logger:     logging.Component("output"),
	})
	audio := pipeline.New(pipeline.Options{
		Router:  router,
		Bus:     bus,
		Silence: settings.Output.Silence,
		Logger:  logging.Component("pipeline"),
	})
	if err := d.host.RegisterService("pipeline", audio); err != nil {
		return nil, err
	}

	backends, err := d.registerBackends()
	if err != nil {
		return nil, err
	}
	services, err := d.registerServices()
	if err != nil {
		return nil, err
	}
	managers, err := d.registerDeviceManagers(ctx)
	if err != nil {
		d.close()
		return nil, err
	}

	err = d.host.Register("core", func(ctx context.Context) (runtime.Service, error) {
		c, err := core.New(ctx, core.Options{
			Bus:                   bus,
			Audio:                 audio,
			Backends:              backends,
			Services:              services,
			DeviceManagers:        managers,
			LenientDeviceDispatch: !settings.Devices.StrictDispatch,
			Logger:                logging.Component("core"),
		})
		if err != nil {
			return nil, err
		}
		d.core = c
		return c, nil
	})
	if err != nil {
		d.close()
		return nil, err
	}

	if settings.Metrics.Listen != "" {
		exporter := observability.NewPrometheusExporter(bus, counter)
		exporter.WithProcessMetrics()
		srv := observability.NewMetricsServer(settings.Metrics.Listen, exporter, logging.Component("metrics"))
		if err := d.host.RegisterService("metrics", srv); err != nil {
			d.close()
			return nil, err
		}
	}
	return d, nil
}

func (d *daemon) registerBackends() ([]backend.Backend, error) {
	out := make([]backend.Backend, 0, len(d.settings.Backends))
	for _, cfg := range d.settings.Backends {
		b := backenddummy.New(backenddummy.Options{
			Name:    cfg.Name,
			Schemes: cfg.Schemes,
			Capabilities: backend.Capabilities{
				Library:       cfg.Library,
				LibraryBrowse: cfg.Browse,
				Playback:      cfg.Playback,
				Playlists:     cfg.Playlists,
			},
			Bus:    d.bus,
			Logger: logging.Component("backend"),
		})
		if err := d.host.RegisterService("backend/"+cfg.Name, b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (d *daemon) registerServices() ([]service.Service, error) {
	out := make([]service.Service, 0, len(d.settings.Services))
	for _, cfg := range d.settings.Services {
		svc := servicedummy.New(servicedummy.Options{
			Name:     cfg.Name,
			Public:   cfg.Public,
			Required: cfg.Required,
			Enabled:  cfg.Enabled,
			Bus:      d.bus,
			Logger:   logging.Component("service"),
		})
		if err := d.host.RegisterService("service/"+cfg.Name, svc); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}

func (d *daemon) registerDeviceManagers(ctx context.Context) ([]device.Manager, error) {
	if len(d.settings.DeviceManagers) > 0 && d.settings.Devices.PairStore != "" {
		store, err := pairstore.Open(ctx, d.settings.Devices.PairStore)
		if err != nil {
			return nil, err
		}
		d.store = store
	}

	out := make([]device.Manager, 0, len(d.settings.DeviceManagers))
	for i, cfg := range d.settings.DeviceManagers {
		m := devicedummy.New(devicedummy.Options{
			Types:   cfg.Types,
			PinCode: d.settings.Devices.PinCode,
			Store:   d.store,
			Bus:     d.bus,
			Logger:  logging.Component("device"),
		})
		if err := d.host.RegisterService(fmt.Sprintf("device/%d", i), m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (d *daemon) close() {
	if d.store != nil {
		_ = d.store.Close()
		d.store = nil
	}
	d.bus.Shutdown()
}
