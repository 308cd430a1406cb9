package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 5 * time.Second

// ServiceFactory constructs a service instance. It is invoked on every start or restart.
type ServiceFactory func(ctx context.Context) (Service, error)

// ServiceHost starts the daemon's services in registration order and stops
// them in reverse. Services exposing Errors() <-chan error have their
// failures forwarded to Errors.
type ServiceHost struct {
	logger zerolog.Logger

	mu        sync.Mutex
	order     []string
	entries   map[string]*serviceRegistration
	started   bool
	errors    chan error
	cancel    context.CancelFunc
	parentCtx context.Context
}

// Option configures a service registration.
type Option func(*serviceRegistration)

type serviceRegistration struct {
	name            string
	factory         ServiceFactory
	service         Service
	shutdownTimeout time.Duration
	watchCancel     context.CancelFunc
}

// WithShutdownTimeout customises the shutdown timeout for a service.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(reg *serviceRegistration) {
		reg.shutdownTimeout = timeout
	}
}

// HostOption configures a ServiceHost.
type HostOption func(*ServiceHost)

// WithLogger sets the logger used for start and stop progress.
func WithLogger(logger zerolog.Logger) HostOption {
	return func(h *ServiceHost) {
		h.logger = logger
	}
}

// NewServiceHost creates a new service host.
func NewServiceHost(opts ...HostOption) *ServiceHost {
	h := &ServiceHost{
		logger:  zerolog.Nop(),
		entries: make(map[string]*serviceRegistration),
		errors:  make(chan error, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers a service factory under the provided name.
func (h *ServiceHost) Register(name string, factory ServiceFactory, opts ...Option) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return fmt.Errorf("runtime: cannot register service %q after start", name)
	}
	if _, exists := h.entries[name]; exists {
		return fmt.Errorf("runtime: service %q already registered", name)
	}

	reg := &serviceRegistration{
		name:            name,
		factory:         factory,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(reg)
	}

	h.entries[name] = reg
	h.order = append(h.order, name)
	return nil
}

// RegisterService registers an already constructed service.
func (h *ServiceHost) RegisterService(name string, svc Service, opts ...Option) error {
	return h.Register(name, func(context.Context) (Service, error) { return svc, nil }, opts...)
}

// Names returns the registered service names in start order.
func (h *ServiceHost) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.order)
}

// Start initialises and starts all registered services in registration order.
// A failure stops the services already started, in reverse order.
func (h *ServiceHost) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return fmt.Errorf("runtime: service host already started")
	}
	h.started = true
	h.parentCtx, h.cancel = context.WithCancel(ctx)
	h.mu.Unlock()

	started := make([]*serviceRegistration, 0, len(h.order))
	for _, name := range h.Names() {
		reg := h.getRegistration(name)
		if reg == nil {
			continue
		}
		if err := h.startOne(reg); err != nil {
			h.stopStarted(started)
			h.mu.Lock()
			h.started = false
			h.cancel()
			h.mu.Unlock()
			return err
		}
		started = append(started, reg)
	}
	return nil
}

func (h *ServiceHost) startOne(reg *serviceRegistration) error {
	svc, err := reg.factory(h.parentCtx)
	if err != nil {
		return fmt.Errorf("runtime: create service %q: %w", reg.name, err)
	}
	if err := svc.Start(h.parentCtx); err != nil {
		// Start may have partially initialised the service.
		_ = h.shutdownOne(reg.name, svc, reg.shutdownTimeout)
		return fmt.Errorf("runtime: start service %q: %w", reg.name, err)
	}
	reg.service = svc
	h.watchErrors(reg)
	h.logger.Debug().Str("service", reg.name).Msg("service started")
	return nil
}

// Stop gracefully stops all services in reverse registration order.
func (h *ServiceHost) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = false
	cancel := h.cancel
	h.cancel = nil
	order := slices.Clone(h.order)
	h.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		reg := h.getRegistration(order[i])
		if reg == nil || reg.service == nil {
			continue
		}
		if err := h.stopOne(ctx, reg); err != nil {
			errs = append(errs, err)
		}
	}

	if cancel != nil {
		cancel()
	}
	return errors.Join(errs...)
}

// Errors returns a channel receiving fatal service errors.
func (h *ServiceHost) Errors() <-chan error {
	return h.errors
}

func (h *ServiceHost) getRegistration(name string) *serviceRegistration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[name]
}

func (h *ServiceHost) stopOne(ctx context.Context, reg *serviceRegistration) error {
	if reg.watchCancel != nil {
		reg.watchCancel()
		reg.watchCancel = nil
	}
	timeout := reg.shutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := reg.service.Shutdown(stopCtx)
	reg.service = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn().Err(err).Str("service", reg.name).Msg("service shutdown failed")
		return fmt.Errorf("runtime: shutdown service %q: %w", reg.name, err)
	}
	h.logger.Debug().Str("service", reg.name).Msg("service stopped")
	return nil
}

func (h *ServiceHost) shutdownOne(name string, svc Service, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		h.logger.Debug().Err(err).Str("service", name).Msg("rollback shutdown failed")
		return err
	}
	return nil
}

func (h *ServiceHost) watchErrors(reg *serviceRegistration) {
	observable, ok := reg.service.(interface{ Errors() <-chan error })
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(h.parentCtx)
	reg.watchCancel = cancel

	go func(name string, ch <-chan error) {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-ch:
				if !ok {
					return
				}
				if err == nil {
					continue
				}
				select {
				case h.errors <- fmt.Errorf("%s service error: %w", name, err):
				default:
					h.logger.Error().Err(err).Str("service", name).Msg("service error dropped, host error queue full")
				}
			}
		}
	}(reg.name, observable.Errors())
}

func (h *ServiceHost) stopStarted(started []*serviceRegistration) {
	for i := len(started) - 1; i >= 0; i-- {
		reg := started[i]
		if reg.service == nil {
			continue
		}
		if reg.watchCancel != nil {
			reg.watchCancel()
			reg.watchCancel = nil
		}
		_ = h.shutdownOne(reg.name, reg.service, reg.shutdownTimeout)
		reg.service = nil
	}
}
