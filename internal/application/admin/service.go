// Package admin holds the operator's notification overrides: pushes sent by
// hand that bypass the queue trigger.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/barbershop-booking/internal/application/relay"
	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/notify"
	"github.com/barbershop-booking/internal/queue"
	"golang.org/x/sync/errgroup"
)

// Draft is the pre-filled message for a queued customer.
type Draft struct {
	CustomerID           string `json:"customerId"`
	AppointmentID        string `json:"appointmentId"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimatedWaitMinutes"`
	Title                string `json:"title"`
	Body                 string `json:"body"`
}

// BroadcastRequest overrides the per-customer default text when both fields
// are set.
type BroadcastRequest struct {
	Title string `json:"title" validate:"required_with=Body,max=120"`
	Body  string `json:"body" validate:"required_with=Title,max=1000"`
}

// Recipient is the outcome of one broadcast delivery.
type Recipient struct {
	CustomerID string `json:"customerId"`
	Position   int    `json:"position"`
	Outcome    string `json:"outcome"`
	DeliveryID string `json:"deliveryId,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Service interface {
	DefaultMessage(ctx context.Context, customerID string) (*Draft, error)
	Push(ctx context.Context, req notify.RelayRequest) (*relay.Delivery, error)
	Broadcast(ctx context.Context, req BroadcastRequest) ([]Recipient, error)
}

type queueSource interface {
	Snapshot(customerID string) *domain.QueueEntry
	Active() map[string]domain.QueueEntry
}

type service struct {
	queue       queueSource
	relay       relay.Service
	concurrency int
	logger      *slog.Logger
}

type ServiceDeps struct {
	Queue       queueSource
	Relay       relay.Service
	Concurrency int
	Logger      *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n := deps.Concurrency
	if n < 1 {
		n = 1
	}
	return &service{queue: deps.Queue, relay: deps.Relay, concurrency: n, logger: logger}
}

func (s *service) DefaultMessage(_ context.Context, customerID string) (*Draft, error) {
	e := s.queue.Snapshot(customerID)
	if e == nil {
		return nil, fmt.Errorf("customer %s is not in today's queue: %w", customerID, domain.ErrNotFound)
	}
	d := draft(customerID, *e)
	return &d, nil
}

func (s *service) Push(ctx context.Context, req notify.RelayRequest) (*relay.Delivery, error) {
	d, err := s.relay.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("push to %s: %w", req.RecipientID, err)
	}
	s.logger.Info("manual push sent", "recipient", req.RecipientID, "delivery_id", d.DeliveryID)
	return d, nil
}

// Broadcast sends to every customer in today's queue, front of the line
// first. Individual failures are reported per recipient, never as an error.
func (s *service) Broadcast(ctx context.Context, req BroadcastRequest) ([]Recipient, error) {
	drafts := s.drafts(req)
	out := make([]Recipient, len(drafts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, d := range drafts {
		g.Go(func() error {
			out[i] = s.deliver(gctx, d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	s.logger.Info("broadcast finished", "recipients", len(out))
	return out, nil
}

func (s *service) drafts(req BroadcastRequest) []Draft {
	active := s.queue.Active()
	drafts := make([]Draft, 0, len(active))
	for cid, e := range active {
		d := draft(cid, e)
		if req.Title != "" {
			d.Title, d.Body = req.Title, req.Body
		}
		drafts = append(drafts, d)
	}
	sort.Slice(drafts, func(i, j int) bool { return drafts[i].Position < drafts[j].Position })
	return drafts
}

func (s *service) deliver(ctx context.Context, d Draft) Recipient {
	r := Recipient{CustomerID: d.CustomerID, Position: d.Position}
	dl, err := s.relay.Send(ctx, notify.RelayRequest{
		RecipientID: d.CustomerID,
		Title:       d.Title,
		Body:        d.Body,
		Extra: map[string]any{
			"tag":           "queue-" + d.AppointmentID,
			"appointmentId": d.AppointmentID,
			"position":      d.Position,
		},
	})
	r.Outcome = string(notify.Classify(err))
	if err != nil {
		if !errors.Is(err, domain.ErrNotOptedIn) {
			s.logger.Warn("broadcast delivery failed", "recipient", d.CustomerID, "err", err)
		}
		r.Error = err.Error()
		return r
	}
	r.DeliveryID = dl.DeliveryID
	return r
}

func draft(customerID string, e domain.QueueEntry) Draft {
	title, body := queue.Message(queue.DefaultReason(e.Position), e)
	return Draft{
		CustomerID:           customerID,
		AppointmentID:        e.AppointmentID,
		Position:             e.Position,
		EstimatedWaitMinutes: e.EstimatedWaitMinutes,
		Title:                title,
		Body:                 body,
	}
}
