// Package registry builds the lookup tables the core routes requests through.
package registry

import (
	"context"
	"fmt"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/backend"
)

// Backends indexes backends by URI scheme and capability.
type Backends struct {
	all           []backend.Backend
	byScheme      *Table[backend.Backend]
	playback      *Table[backend.Backend]
	library       *Table[backend.Backend]
	libraryBrowse *Table[backend.Backend]
	playlists     *Table[backend.Backend]
}

// BuildBackends queries every backend concurrently and indexes the answers
// in input order. A scheme claimed twice fails the build.
func BuildBackends(ctx context.Context, backends []backend.Backend) (*Backends, error) {
	schemeFutures := make([]*actor.Future[[]string], len(backends))
	capFutures := make([]*actor.Future[backend.Capabilities], len(backends))
	for i, b := range backends {
		schemeFutures[i] = b.URISchemes()
		capFutures[i] = b.Capabilities()
	}

	schemes, err := actor.GetAll(ctx, schemeFutures)
	if err != nil {
		return nil, fmt.Errorf("registry: query uri schemes: %w", err)
	}
	caps, err := actor.GetAll(ctx, capFutures)
	if err != nil {
		return nil, fmt.Errorf("registry: query capabilities: %w", err)
	}

	r := &Backends{
		all:           append([]backend.Backend(nil), backends...),
		byScheme:      newTable[backend.Backend](),
		playback:      newTable[backend.Backend](),
		library:       newTable[backend.Backend](),
		libraryBrowse: newTable[backend.Backend](),
		playlists:     newTable[backend.Backend](),
	}
	for i, b := range backends {
		for _, scheme := range schemes[i] {
			if existing, ok := r.byScheme.Get(scheme); ok {
				return nil, &DuplicateKeyError{Kind: "uri scheme", Key: scheme, Existing: existing.Ref(), Conflicting: b.Ref()}
			}
			r.byScheme.put(scheme, b)
			if caps[i].Playback {
				r.playback.put(scheme, b)
			}
			if caps[i].Library {
				r.library.put(scheme, b)
			}
			if caps[i].LibraryBrowse {
				r.libraryBrowse.put(scheme, b)
			}
			if caps[i].Playlists {
				r.playlists.put(scheme, b)
			}
		}
	}
	return r, nil
}

// All returns the backends in construction order.
func (r *Backends) All() []backend.Backend {
	return append([]backend.Backend(nil), r.all...)
}

// ByScheme returns the backend handling scheme.
func (r *Backends) ByScheme(scheme string) (backend.Backend, bool) {
	return r.byScheme.Get(scheme)
}

func (r *Backends) WithPlayback() *Table[backend.Backend]      { return r.playback }
func (r *Backends) WithLibrary() *Table[backend.Backend]       { return r.library }
func (r *Backends) WithLibraryBrowse() *Table[backend.Backend] { return r.libraryBrowse }
func (r *Backends) WithPlaylists() *Table[backend.Backend]     { return r.playlists }
