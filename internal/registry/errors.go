package registry

import (
	"errors"
	"fmt"

	"github.com/nupi-ai/chorus/internal/actor"
)

// ErrDuplicateKey is wrapped by every DuplicateKeyError.
var ErrDuplicateKey = errors.New("registry: duplicate key")

// DuplicateKeyError reports two collaborators claiming the same unique key.
type DuplicateKeyError struct {
	// Kind names the key space: "uri scheme", "service name" or "device type".
	Kind        string
	Key         string
	Existing    actor.Ref
	Conflicting actor.Ref
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("registry: cannot add %s %q for %s, it is already handled by %s",
		e.Kind, e.Key, e.Conflicting, e.Existing)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }
