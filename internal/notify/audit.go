package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/pkg/id"
	"github.com/barbershop-booking/internal/pkg/metrics"
)

// Recorder persists audit records.
type Recorder interface {
	Put(ctx context.Context, n *domain.Notification) error
}

// Record writes the audit record for one delivery attempt. It is best effort:
// a failed write is logged and never reported to the caller.
func Record(ctx context.Context, rec Recorder, logger *slog.Logger, msg Message, res Result) {
	metrics.RecordDelivery(string(res.Channel), string(res.Outcome))
	if rec == nil {
		return
	}
	now := time.Now().UTC()
	n := &domain.Notification{
		NotificationID: id.New(),
		UserID:         msg.RecipientID,
		Title:          msg.Title,
		Message:        msg.Body,
		Channel:        string(res.Channel),
		Outcome:        string(res.Outcome),
		DeliveryID:     res.DeliveryID,
		CorrelationID:  msg.CorrelationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	// Delivery may resolve after its caller went away; the trail is still kept.
	if err := rec.Put(context.WithoutCancel(ctx), n); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("failed to write notification audit record",
			"recipient", msg.RecipientID, "channel", res.Channel, "outcome", res.Outcome, "err", err)
	}
}

// Audited wraps a Sink so that every attempt leaves an audit record.
type Audited struct {
	next   Sink
	rec    Recorder
	logger *slog.Logger
}

func WithAudit(next Sink, rec Recorder, logger *slog.Logger) *Audited {
	if logger == nil {
		logger = slog.Default()
	}
	return &Audited{next: next, rec: rec, logger: logger}
}

func (a *Audited) Deliver(ctx context.Context, msg Message) (Result, error) {
	res, err := a.next.Deliver(ctx, msg)
	if res.Outcome == "" {
		res.Outcome = Classify(err)
	}
	Record(ctx, a.rec, a.logger, msg, res)
	return res, err
}
