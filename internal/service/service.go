// Package service declares the contract for long-running named services and
// a state machine implementations use to track their lifecycle.
package service

import (
	"errors"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/models"
)

// ErrUnknownProperty is reported by GetProperty for names the service does not hold.
var ErrUnknownProperty = errors.New("service: unknown property")

// Description identifies a service. Name is unique across the registry.
type Description struct {
	Name   string
	Public bool
}

// Service is an actor owning its own state and property map. Commands
// resolve to actor.Ack once the service has applied them.
type Service interface {
	actor.Referable
	Describe() *actor.Future[Description]
	State() *actor.Future[models.ServiceState]
	Enable() *actor.Future[actor.Ack]
	Disable() *actor.Future[actor.Ack]
	// SetProperty stores value under name. A nil value clears the property.
	SetProperty(name string, value any) *actor.Future[actor.Ack]
	ClearProperty(name string) *actor.Future[actor.Ack]
	GetProperty(name string) *actor.Future[any]
	Properties() *actor.Future[map[string]any]
	HasProperty(name string) *actor.Future[bool]
}
