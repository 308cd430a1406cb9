package output

import "errors"

var (
	// ErrDuplicateIdentifier is returned by Attach when the identifier is taken.
	ErrDuplicateIdentifier = errors.New("output: duplicate identifier")
	// ErrUnknownIdentifier is returned by Detach for identifiers that are not attached.
	ErrUnknownIdentifier = errors.New("output: unknown identifier")
	// ErrReservedIdentifier is returned when a caller tries to attach under DrainID.
	ErrReservedIdentifier = errors.New("output: reserved identifier")
	// ErrInvalidIdentifier is returned for empty identifiers.
	ErrInvalidIdentifier = errors.New("output: invalid identifier")
	// ErrNotFlowing is returned by Push unless the router is playing.
	ErrNotFlowing = errors.New("output: router not flowing")
	// ErrClosed is returned once the router has been closed.
	ErrClosed = errors.New("output: router closed")
)
