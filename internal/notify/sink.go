// Package notify delivers decided notifications through the local (browser)
// channel or the push relay, and keeps an audit trail of every attempt.
package notify

import (
	"context"
	"errors"

	"github.com/barbershop-booking/internal/domain"
)

type Channel string

const (
	ChannelLocal Channel = "local"
	ChannelRelay Channel = "relay"
)

type Outcome string

const (
	OutcomeDelivered        Outcome = "delivered"
	OutcomePermissionDenied Outcome = "permission-denied"
	OutcomeNotOptedIn       Outcome = "not-opted-in"
	OutcomeTokenInvalid     Outcome = "token-invalid"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeFailed           Outcome = "failed"
)

// Message is a notification ready for delivery. Tag identifies the logical
// queue so that newer deliveries replace older ones on the same device.
type Message struct {
	RecipientID   string
	Title         string
	Body          string
	Tag           string
	CorrelationID string
	Metadata      map[string]any
}

type Result struct {
	Channel    Channel
	Outcome    Outcome
	DeliveryID string
}

// Sink delivers a message through exactly one channel.
type Sink interface {
	Deliver(ctx context.Context, msg Message) (Result, error)
}

// Classify maps a delivery error to its audit outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeDelivered
	case errors.Is(err, domain.ErrPermissionDenied):
		return OutcomePermissionDenied
	case errors.Is(err, domain.ErrNotOptedIn):
		return OutcomeNotOptedIn
	case errors.Is(err, domain.ErrTokenInvalid):
		return OutcomeTokenInvalid
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

// Terminal reports whether err means the recipient cannot be reached again
// until it re-registers.
func Terminal(err error) bool {
	return errors.Is(err, domain.ErrTokenInvalid)
}
