package domain

import "errors"

// ErrInvalidInput marks malformed requests. Wrap it with details.
var ErrInvalidInput = errors.New("invalid input")
