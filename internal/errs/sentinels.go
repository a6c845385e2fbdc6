// Package errs contains sentinel errors shared by the store, service and transport layers.
package errs

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotOwner indicates the requester is not the original sender of a message.
	ErrNotOwner = errors.New("not owner")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyRegistered indicates a connection tried to bind a second identity.
	ErrAlreadyRegistered = errors.New("connection already registered to another user")

	// ErrNotRegistered indicates an event that needs an identity arrived before registerUser.
	ErrNotRegistered = errors.New("connection not registered")

	// ErrInvalidEvent indicates a malformed inbound event or request body.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrConnClosed indicates an event arrived on a connection that is already closed.
	ErrConnClosed = errors.New("connection closed")

	// ErrUnsupportedType indicates an attachment whose content type is not accepted.
	ErrUnsupportedType = errors.New("unsupported content type")
)
