// Package notifier runs server-side watch sessions for every queued customer
// who opted in to push, delivering through the push relay.
package notifier

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/infrastructure/redisbus"
	"github.com/barbershop-booking/internal/notify"
	"github.com/barbershop-booking/internal/queue"
)

// ChangeFeed announces queue changes made by other processes.
type ChangeFeed interface {
	Ping(ctx context.Context) error
	Subscribe(ctx context.Context, fn func(redisbus.Change)) error
}

type Deps struct {
	Appointments queue.AppointmentLister
	Tokens       notify.TokenChecker
	// Changes is optional. Without it the queue is only re-read every Interval.
	Changes     ChangeFeed
	Location    *time.Location
	Interval    time.Duration
	RelayURL    string
	RelayAPIKey string
	Client      *http.Client
	Logger      *slog.Logger
}

// RelaySinks delivers every customer's notifications through one relay
// client. The sink is not audited here: the relay endpoint writes the audit
// record for each push it handles.
func RelaySinks(endpoint, apiKey string, tokens notify.TokenChecker, client *http.Client) queue.SinkFactory {
	sink := notify.NewRelaySink(endpoint, apiKey, tokens, client)
	return func(string) notify.Sink { return sink }
}

// Run watches the queue until ctx ends. It returns nil on cancellation.
func Run(ctx context.Context, deps Deps) error {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hub := queue.NewHub(deps.Appointments, deps.Location, queue.WithHubLogger(logger))
	watcher := queue.NewWatcher(ctx, hub, deps.Tokens,
		RelaySinks(deps.RelayURL, deps.RelayAPIKey, deps.Tokens, deps.Client), logger)
	defer func() {
		n := watcher.Watching()
		watcher.Close()
		logger.Info("notifier stopped", "sessions", n)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx, deps.Interval)
	})
	if deps.Changes != nil {
		g.Go(func() error {
			follow(gctx, deps.Changes, hub, logger)
			return nil
		})
	} else {
		logger.Info("no queue change feed, relying on periodic refresh", "interval", deps.Interval)
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// follow triggers a refresh for every announced change. A feed that cannot
// be reached leaves the periodic refresh in charge instead of stopping the
// run.
func follow(ctx context.Context, feed ChangeFeed, hub *queue.Hub, logger *slog.Logger) {
	if err := feed.Ping(ctx); err != nil {
		logger.Warn("queue change feed unreachable, relying on periodic refresh", "err", err)
		return
	}
	err := feed.Subscribe(ctx, func(c redisbus.Change) {
		hub.QueueChanged(ctx, domain.Appointment{AppointmentID: c.AppointmentID, Date: c.Date})
	})
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		logger.Warn("queue change subscription ended, relying on periodic refresh", "err", err)
	}
}
