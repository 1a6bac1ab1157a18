package domain

import "errors"

// ErrMalformedInput is returned when a command fails structural or business
// rule validation: too few trip nodes, contiguous duplicate destinations, an
// unknown role tag, a cycle in the node graph.
// Handlers should map this to HTTP 400.
var ErrMalformedInput = errors.New("malformed input")

// ErrUnauthenticated is returned when a command carries no identity, or an
// identity that cannot be verified.
// Handlers should map this to HTTP 401.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrForbidden is returned when the acting user holds no role that permits
// the requested action on the target node, chat group or message.
// Handlers should map this to HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a command is valid but the resource is in the
// wrong state for it, e.g. restoring a trip that was never deleted.
// Handlers should map this to HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrInternal marks an unexpected failure inside the tree algorithms, such as
// a child id that is missing from the arena.
var ErrInternal = errors.New("internal error")
