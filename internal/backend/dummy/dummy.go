// Package dummy provides a configurable in-process backend.
package dummy

import (
	"context"
	"slices"

	"github.com/rs/zerolog"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/backend"
	"github.com/nupi-ai/chorus/internal/eventbus"
)

// Options configures a dummy backend.
type Options struct {
	Name         string
	Schemes      []string
	Capabilities backend.Capabilities
	Bus          *eventbus.Bus
	Logger       zerolog.Logger
}

// Backend answers scheme and capability queries from its mailbox and
// announces its playlists once started.
type Backend struct {
	name    string
	schemes []string
	caps    backend.Capabilities
	bus     *eventbus.Bus
	logger  zerolog.Logger
	mailbox *actor.Mailbox
}

// New returns a stopped backend.
func New(opts Options) *Backend {
	name := opts.Name
	if name == "" {
		name = "dummy"
	}
	ref := actor.NewRef("backend/" + name)
	return &Backend{
		name:    name,
		schemes: slices.Clone(opts.Schemes),
		caps:    opts.Capabilities,
		bus:     opts.Bus,
		logger:  opts.Logger.With().Str("backend", name).Logger(),
		mailbox: actor.NewMailbox(ref, actor.WithLogger(opts.Logger)),
	}
}

func (b *Backend) Ref() actor.Ref { return b.mailbox.Ref() }

// Name returns the configured backend name.
func (b *Backend) Name() string { return b.name }

func (b *Backend) URISchemes() *actor.Future[[]string] {
	return actor.Ask(b.mailbox, func() ([]string, error) {
		return slices.Clone(b.schemes), nil
	})
}

func (b *Backend) Capabilities() *actor.Future[backend.Capabilities] {
	return actor.Ask(b.mailbox, func() (backend.Capabilities, error) {
		return b.caps, nil
	})
}

// Start runs the mailbox. Backends with playlists report them loaded.
func (b *Backend) Start(ctx context.Context) error {
	b.mailbox.Start(ctx)
	if !b.caps.Playlists {
		return nil
	}
	return b.mailbox.Tell(func() {
		b.logger.Debug().Msg("playlists loaded")
		eventbus.Send(ctx, b.bus, eventbus.Listeners.Backend, eventbus.SourceBackend, eventbus.PlaylistsLoaded{Backend: b.name})
	})
}

// Shutdown stops the mailbox; pending requests fail with actor.ErrStopped.
func (b *Backend) Shutdown(context.Context) error {
	b.mailbox.Stop()
	return nil
}

var _ backend.Backend = (*Backend)(nil)
