package actor

import (
	"github.com/google/uuid"
)

// Ref identifies an actor instance. Kind names the implementation, ID makes
// two instances of the same implementation distinguishable in errors and logs.
type Ref struct {
	Kind string
	ID   uuid.UUID
}

// NewRef allocates a fresh identity for an actor of the given kind.
func NewRef(kind string) Ref {
	return Ref{Kind: kind, ID: uuid.New()}
}

// String renders the ref as kind#shortid.
func (r Ref) String() string {
	kind := r.Kind
	if kind == "" {
		kind = "actor"
	}
	if r.ID == uuid.Nil {
		return kind
	}
	return kind + "#" + r.ID.String()[:8]
}

// Referable is implemented by every actor handle.
type Referable interface {
	Ref() Ref
}
