// Package backend declares what the core needs from a media source backend.
package backend

import (
	"github.com/nupi-ai/chorus/internal/actor"
)

// Capabilities lists the controllers a backend takes part in.
type Capabilities struct {
	Library       bool
	LibraryBrowse bool
	Playback      bool
	Playlists     bool
}

// Backend is an actor serving one or more URI schemes. Every method returns
// immediately; results arrive through the futures.
type Backend interface {
	actor.Referable
	// URISchemes resolves to the schemes the backend handles, for example "file".
	URISchemes() *actor.Future[[]string]
	Capabilities() *actor.Future[Capabilities]
}
