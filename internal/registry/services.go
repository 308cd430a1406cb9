package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/eventbus"
	"github.com/nupi-ai/chorus/internal/service"
)

type serviceEntry struct {
	svc    service.Service
	public bool
}

// Services indexes services by name. Unlike the other registries it can
// grow after construction.
type Services struct {
	bus *eventbus.Bus

	mu     sync.RWMutex
	byName map[string]serviceEntry
	order  []string
}

// BuildServices describes every service concurrently and indexes them by name.
func BuildServices(ctx context.Context, services []service.Service, bus *eventbus.Bus) (*Services, error) {
	futures := make([]*actor.Future[service.Description], len(services))
	for i, svc := range services {
		futures[i] = svc.Describe()
	}
	descs, err := actor.GetAll(ctx, futures)
	if err != nil {
		return nil, fmt.Errorf("registry: describe services: %w", err)
	}

	r := &Services{bus: bus, byName: make(map[string]serviceEntry)}
	for i, svc := range services {
		if err := r.insert(svc, descs[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers svc on a running registry and announces it on the service topic.
func (r *Services) Add(ctx context.Context, svc service.Service) error {
	desc, err := svc.Describe().Get(ctx)
	if err != nil {
		return fmt.Errorf("registry: describe service: %w", err)
	}

	r.mu.Lock()
	err = r.insert(svc, desc)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	eventbus.Send(ctx, r.bus, eventbus.Listeners.Service, eventbus.SourceRegistry,
		eventbus.ServiceRegistered{Service: desc.Name, Public: desc.Public})
	return nil
}

func (r *Services) insert(svc service.Service, desc service.Description) error {
	if existing, ok := r.byName[desc.Name]; ok {
		return &DuplicateKeyError{Kind: "service name", Key: desc.Name, Existing: existing.svc.Ref(), Conflicting: svc.Ref()}
	}
	r.byName[desc.Name] = serviceEntry{svc: svc, public: desc.Public}
	r.order = append(r.order, desc.Name)
	return nil
}

// Lookup returns the service registered under name.
func (r *Services) Lookup(name string) (service.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e.svc, ok
}

// Names returns every service name in registration order.
func (r *Services) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Public returns the names of public services in registration order.
func (r *Services) Public() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, name := range r.order {
		if r.byName[name].public {
			out = append(out, name)
		}
	}
	return out
}

func (r *Services) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
