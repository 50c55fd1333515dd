package domain

import "errors"

// ErrUnauthorized is returned when a request carries no valid principal.
var ErrUnauthorized = errors.New("unauthorized")
