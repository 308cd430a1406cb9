package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/models"
	"github.com/nupi-ai/chorus/internal/registry"
	"github.com/nupi-ai/chorus/internal/service"
)

// ErrUnknownService is returned for names absent from the service registry.
var ErrUnknownService = errors.New("core: unknown service")

// ServiceController forwards commands to services by name.
type ServiceController struct {
	services *registry.Services
}

func (s *ServiceController) lookup(name string) (service.Service, error) {
	svc, ok := s.services.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	return svc, nil
}

// Services lists every registered service name.
func (s *ServiceController) Services() []string { return s.services.Names() }

// Public lists the services frontends may expose.
func (s *ServiceController) Public() []string { return s.services.Public() }

// State queries the lifecycle state of the named service.
func (s *ServiceController) State(ctx context.Context, name string) (models.ServiceState, error) {
	svc, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	return svc.State().Get(ctx)
}

func (s *ServiceController) Enable(name string) (*actor.Future[actor.Ack], error) {
	svc, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return svc.Enable(), nil
}

func (s *ServiceController) Disable(name string) (*actor.Future[actor.Ack], error) {
	svc, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return svc.Disable(), nil
}

// SetProperty stores value on the named service. A nil value clears it.
func (s *ServiceController) SetProperty(name, property string, value any) (*actor.Future[actor.Ack], error) {
	svc, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return svc.SetProperty(property, value), nil
}

func (s *ServiceController) ClearProperty(name, property string) (*actor.Future[actor.Ack], error) {
	svc, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return svc.ClearProperty(property), nil
}

func (s *ServiceController) GetProperty(ctx context.Context, name, property string) (any, error) {
	svc, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return svc.GetProperty(property).Get(ctx)
}

func (s *ServiceController) Properties(ctx context.Context, name string) (map[string]any, error) {
	svc, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return svc.Properties().Get(ctx)
}

func (s *ServiceController) HasProperty(ctx context.Context, name, property string) (bool, error) {
	svc, err := s.lookup(name)
	if err != nil {
		return false, err
	}
	return svc.HasProperty(property).Get(ctx)
}
