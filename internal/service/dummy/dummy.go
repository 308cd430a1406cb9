// Package dummy provides an in-process service with a property map. It stays
// Starting until every required property holds a value.
package dummy

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/eventbus"
	"github.com/nupi-ai/chorus/internal/models"
	"github.com/nupi-ai/chorus/internal/service"
)

// Options configures a dummy service.
type Options struct {
	Name   string
	Public bool
	// Required names properties that must be set before the service is Started.
	Required   []string
	Properties map[string]any
	// Enabled enables the service as soon as it starts.
	Enabled bool
	Bus     *eventbus.Bus
	Logger  zerolog.Logger
}

// Service is the reference service actor.
type Service struct {
	name     string
	public   bool
	required []string
	enabled  bool
	bus      *eventbus.Bus

	mailbox *actor.Mailbox
	machine *service.StateMachine
	props   map[string]any
	ctx     context.Context
}

// New returns a stopped service.
func New(opts Options) *Service {
	logger := opts.Logger.With().Str("service", opts.Name).Logger()
	props := maps.Clone(opts.Properties)
	if props == nil {
		props = make(map[string]any)
	}
	return &Service{
		name:     opts.Name,
		public:   opts.Public,
		required: slices.Clone(opts.Required),
		enabled:  opts.Enabled,
		bus:      opts.Bus,
		mailbox:  actor.NewMailbox(actor.NewRef("service/"+opts.Name), actor.WithLogger(logger)),
		machine:  service.NewStateMachine(opts.Name, opts.Bus, logger),
		props:    props,
		ctx:      context.Background(),
	}
}

func (s *Service) Ref() actor.Ref { return s.mailbox.Ref() }

// Start runs the mailbox and, when configured, enables the service.
func (s *Service) Start(ctx context.Context) error {
	s.ctx = ctx
	s.mailbox.Start(ctx)
	if !s.enabled {
		return nil
	}
	_, err := s.Enable().Get(ctx)
	return err
}

// Shutdown stops the mailbox.
func (s *Service) Shutdown(context.Context) error {
	s.mailbox.Stop()
	return nil
}

func (s *Service) Describe() *actor.Future[service.Description] {
	return actor.Ask(s.mailbox, func() (service.Description, error) {
		return service.Description{Name: s.name, Public: s.public}, nil
	})
}

func (s *Service) State() *actor.Future[models.ServiceState] {
	return actor.Ask(s.mailbox, func() (models.ServiceState, error) {
		return s.machine.State(), nil
	})
}

func (s *Service) Enable() *actor.Future[actor.Ack] {
	return actor.Do(s.mailbox, func() error {
		if err := s.machine.Start(s.ctx); err != nil {
			return err
		}
		return s.reconcile()
	})
}

func (s *Service) Disable() *actor.Future[actor.Ack] {
	return actor.Do(s.mailbox, func() error {
		return s.machine.Stop(s.ctx)
	})
}

func (s *Service) SetProperty(name string, value any) *actor.Future[actor.Ack] {
	return actor.Do(s.mailbox, func() error {
		return s.set(name, value)
	})
}

func (s *Service) ClearProperty(name string) *actor.Future[actor.Ack] {
	return actor.Do(s.mailbox, func() error {
		return s.set(name, nil)
	})
}

func (s *Service) GetProperty(name string) *actor.Future[any] {
	return actor.Ask(s.mailbox, func() (any, error) {
		v, ok := s.props[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", service.ErrUnknownProperty, s.name, name)
		}
		return v, nil
	})
}

func (s *Service) Properties() *actor.Future[map[string]any] {
	return actor.Ask(s.mailbox, func() (map[string]any, error) {
		return maps.Clone(s.props), nil
	})
}

func (s *Service) HasProperty(name string) *actor.Future[bool] {
	return actor.Ask(s.mailbox, func() (bool, error) {
		_, ok := s.props[name]
		return ok, nil
	})
}

func (s *Service) set(name string, value any) error {
	s.props[name] = value
	eventbus.Send(s.ctx, s.bus, eventbus.Listeners.Service, eventbus.SourceService, eventbus.ServicePropertyChanged{
		Service:    s.name,
		Properties: map[string]any{name: value},
	})
	return s.reconcile()
}

// reconcile moves between Starting and Started as required properties come and go.
func (s *Service) reconcile() error {
	ready := s.satisfied()
	switch s.machine.State() {
	case models.ServiceStarting:
		if ready {
			return s.machine.Ready(s.ctx)
		}
	case models.ServiceStarted:
		if !ready {
			return s.machine.Degrade(s.ctx)
		}
	}
	return nil
}

func (s *Service) satisfied() bool {
	for _, name := range s.required {
		if s.props[name] == nil {
			return false
		}
	}
	return true
}

var _ service.Service = (*Service)(nil)
