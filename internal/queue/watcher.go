package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/notify"
)

// SinkFactory builds the delivery sink for one customer.
type SinkFactory func(customerID string) notify.Sink

// Watcher keeps one watch session per queued customer who opted in to push.
// Sessions are created on the first refresh that lists the customer, which
// becomes their baseline, and torn down when the customer leaves the queue.
type Watcher struct {
	ctx    context.Context
	tokens notify.TokenChecker
	sinkOf SinkFactory
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewWatcher attaches a watcher to hub. Sessions live until ctx ends or
// Close is called.
func NewWatcher(ctx context.Context, hub *Hub, tokens notify.TokenChecker, sinkOf SinkFactory, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		ctx:      ctx,
		tokens:   tokens,
		sinkOf:   sinkOf,
		logger:   logger,
		sessions: map[string]*Session{},
	}
	hub.OnRefresh(w.Apply)
	return w
}

// Apply feeds one queue snapshot to every session.
func (w *Watcher) Apply(ctx context.Context, entries map[string]domain.QueueEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for cid, s := range w.sessions {
		e, ok := entries[cid]
		if !ok {
			s.Observe(nil)
			s.Close()
			delete(w.sessions, cid)
			continue
		}
		s.Observe(&e)
	}

	for cid, e := range entries {
		if _, ok := w.sessions[cid]; ok {
			continue
		}
		has, err := w.tokens.HasToken(ctx, cid)
		if err != nil {
			w.logger.Warn("device token lookup failed", "customer_id", cid, "err", err)
			continue
		}
		if !has {
			continue
		}
		s := NewSession(w.ctx, cid, w.sinkOf(cid), WithSessionLogger(w.logger))
		s.Observe(&e)
		w.sessions[cid] = s
	}
}

// Watching returns how many sessions are open.
func (w *Watcher) Watching() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

func (w *Watcher) Session(customerID string) *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessions[customerID]
}

// Close ends every session and waits for their deliveries to resolve.
func (w *Watcher) Close() {
	w.mu.Lock()
	sessions := w.sessions
	w.sessions = map[string]*Session{}
	w.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	for _, s := range sessions {
		s.Wait()
	}
}
