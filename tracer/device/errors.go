package device

import "errors"

var (
	ErrUnknownBackend = errors.New("device: unknown backend")
	ErrNoDevice       = errors.New("device: no matching device")
	ErrUnknownKernel  = errors.New("device: unknown kernel")
	ErrReleased       = errors.New("device: use of released memory")
	ErrOutOfBounds    = errors.New("device: access out of bounds")
	ErrInvalidArg     = errors.New("device: invalid kernel argument")
)
