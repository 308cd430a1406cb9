package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"github.com/nupi-ai/chorus/internal/eventbus"
	"github.com/nupi-ai/chorus/internal/models"
)

// ErrInvalidTransition is returned when a lifecycle event does not apply to
// the current state.
var ErrInvalidTransition = errors.New("service: invalid state transition")

const (
	eventStart   = "start"
	eventReady   = "ready"
	eventDegrade = "degrade"
	eventStop    = "stop"
)

var (
	stopped  = string(models.ServiceStopped)
	starting = string(models.ServiceStarting)
	started  = string(models.ServiceStarted)
)

// StateMachine tracks Stopped -> Starting -> Started -> Stopped and publishes
// every state entered on the service topic.
type StateMachine struct {
	name   string
	bus    *eventbus.Bus
	logger zerolog.Logger
	fsm    *fsm.FSM
}

// NewStateMachine returns a machine in the Stopped state.
func NewStateMachine(name string, bus *eventbus.Bus, logger zerolog.Logger) *StateMachine {
	m := &StateMachine{
		name:   name,
		bus:    bus,
		logger: logger,
	}
	m.fsm = fsm.NewFSM(
		stopped,
		fsm.Events{
			{Name: eventStart, Src: []string{stopped}, Dst: starting},
			{Name: eventReady, Src: []string{starting}, Dst: started},
			{Name: eventDegrade, Src: []string{started}, Dst: starting},
			{Name: eventStop, Src: []string{starting, started}, Dst: stopped},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				m.entered(ctx, e.Src, e.Dst)
			},
		},
	)
	return m
}

func (m *StateMachine) entered(ctx context.Context, from, to string) {
	m.logger.Debug().Str("service", m.name).Str("from", from).Str("to", to).Msg("service state changed")

	var ev eventbus.Event
	switch models.ServiceState(to) {
	case models.ServiceStarting:
		ev = eventbus.ServiceStarting{Service: m.name}
	case models.ServiceStarted:
		ev = eventbus.ServiceStarted{Service: m.name}
	case models.ServiceStopped:
		ev = eventbus.ServiceStopped{Service: m.name}
	}
	eventbus.Send(ctx, m.bus, eventbus.Listeners.Service, eventbus.SourceService, ev)
}

// State returns the current lifecycle state.
func (m *StateMachine) State() models.ServiceState {
	return models.ServiceState(m.fsm.Current())
}

// Start enters Starting from Stopped. Starting an already running machine is a no-op.
func (m *StateMachine) Start(ctx context.Context) error {
	if m.State() != models.ServiceStopped {
		return nil
	}
	return m.fire(ctx, eventStart)
}

// Ready enters Started from Starting.
func (m *StateMachine) Ready(ctx context.Context) error {
	return m.fire(ctx, eventReady)
}

// Degrade falls back from Started to Starting.
func (m *StateMachine) Degrade(ctx context.Context) error {
	return m.fire(ctx, eventDegrade)
}

// Stop enters Stopped. Stopping a stopped machine is a no-op.
func (m *StateMachine) Stop(ctx context.Context) error {
	if m.State() == models.ServiceStopped {
		return nil
	}
	return m.fire(ctx, eventStop)
}

func (m *StateMachine) fire(ctx context.Context, event string) error {
	err := m.fsm.Event(ctx, event)
	if err == nil {
		return nil
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return fmt.Errorf("%w: %s from %s: %v", ErrInvalidTransition, event, m.fsm.Current(), err)
}
