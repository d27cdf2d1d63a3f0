package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// Delivery failures. ErrTokenInvalid is terminal for the recipient until it
// registers a new device token; ErrDeliveryFailed may succeed on a later attempt.
var (
	ErrPermissionDenied = errors.New("notification permission denied")
	ErrNotOptedIn       = errors.New("recipient not opted in")
	ErrTokenInvalid     = errors.New("device token no longer valid")
	ErrDeliveryFailed   = errors.New("delivery failed")
)
