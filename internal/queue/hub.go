package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/barbershop-booking/internal/domain"
)

var ErrSubscriptionClosed = errors.New("queue subscription closed")

// AppointmentLister reads one day's pending and confirmed appointments.
type AppointmentLister interface {
	ListActiveByDate(ctx context.Context, date string) ([]domain.Appointment, error)
}

// Subscription yields a customer's queue entry every time it changes. A nil
// entry means the customer left the queue. Values are never coalesced.
type Subscription struct {
	customerID string

	mu      sync.Mutex
	pending []*domain.QueueEntry
	closed  bool
	ready   chan struct{}
	done    chan struct{}
}

func newSubscription(customerID string) *Subscription {
	return &Subscription{
		customerID: customerID,
		ready:      make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

func (s *Subscription) CustomerID() string { return s.customerID }

func (s *Subscription) push(e *domain.QueueEntry) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, e)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Next blocks until the next change, ctx ends or the subscription is closed.
// Changes queued before Close are still returned.
func (s *Subscription) Next(ctx context.Context) (*domain.QueueEntry, error) {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			e := s.pending[0]
			s.pending[0] = nil
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return e, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil, ErrSubscriptionClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ready:
		case <-s.done:
		}
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// RefreshFunc observes every completed refresh with the full snapshot.
type RefreshFunc func(ctx context.Context, entries map[string]domain.QueueEntry)

// Hub is the queue position source. It recomputes today's queue from the
// appointment store and fans changes out to per-customer subscriptions.
type Hub struct {
	store  AppointmentLister
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger

	refreshMu sync.Mutex

	mu        sync.Mutex
	entries   map[string]domain.QueueEntry
	loaded    bool
	subs      map[string]map[*Subscription]struct{}
	listeners []RefreshFunc

	trigger chan struct{}
}

type HubOption func(*Hub)

func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) { h.now = now }
}

func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

func NewHub(store AppointmentLister, loc *time.Location, opts ...HubOption) *Hub {
	if loc == nil {
		loc = time.UTC
	}
	h := &Hub{
		store:   store,
		loc:     loc,
		now:     time.Now,
		logger:  slog.Default(),
		entries: map[string]domain.QueueEntry{},
		subs:    map[string]map[*Subscription]struct{}{},
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers interest in customerID. The current entry, when there
// is one, is delivered first.
func (h *Hub) Subscribe(customerID string) *Subscription {
	sub := newSubscription(customerID)

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[customerID]
	if !ok {
		set = map[*Subscription]struct{}{}
		h.subs[customerID] = set
	}
	set[sub] = struct{}{}
	if e, ok := h.entries[customerID]; ok {
		sub.push(&e)
	}
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if set, ok := h.subs[sub.customerID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.customerID)
		}
	}
	h.mu.Unlock()
	sub.close()
}

// OnRefresh registers fn to run after every refresh, in refresh order.
func (h *Hub) OnRefresh(fn RefreshFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Snapshot returns the customer's current entry, or nil when not queued.
func (h *Hub) Snapshot(customerID string) *domain.QueueEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[customerID]
	if !ok {
		return nil
	}
	return &e
}

// Active returns a copy of every queued customer's entry.
func (h *Hub) Active() map[string]domain.QueueEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]domain.QueueEntry, len(h.entries))
	for k, v := range h.entries {
		out[k] = v
	}
	return out
}

// Today is the shop-local date the hub reads.
func (h *Hub) Today() string {
	return h.now().In(h.loc).Format("2006-01-02")
}

// Refresh reloads today's queue and publishes what changed.
func (h *Hub) Refresh(ctx context.Context) error {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	appts, err := h.store.ListActiveByDate(ctx, h.Today())
	if err != nil {
		return fmt.Errorf("list active appointments: %w", err)
	}
	next := Positions(appts)

	h.mu.Lock()
	prev := h.entries
	for cid, set := range h.subs {
		old, had := prev[cid]
		cur, has := next[cid]
		switch {
		case has && (!had || old != cur):
			for sub := range set {
				e := cur
				sub.push(&e)
			}
		case had && !has:
			for sub := range set {
				sub.push(nil)
			}
		}
	}
	h.entries = next
	h.loaded = true
	listeners := append([]RefreshFunc(nil), h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		snapshot := make(map[string]domain.QueueEntry, len(next))
		for k, v := range next {
			snapshot[k] = v
		}
		fn(ctx, snapshot)
	}
	return nil
}

// Loaded reports whether at least one refresh has completed.
func (h *Hub) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// Trigger asks Run for an early refresh. It never blocks; triggers that
// arrive while one is pending are merged.
func (h *Hub) Trigger() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// QueueChanged schedules a refresh when a booking change touches today.
func (h *Hub) QueueChanged(_ context.Context, a domain.Appointment) {
	if a.Date == "" || a.Date == h.Today() {
		h.Trigger()
	}
}

// Run refreshes immediately, then on every tick and trigger until ctx ends.
func (h *Hub) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.refreshLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case <-ticker.C:
		case <-h.trigger:
		}
		h.refreshLogged(ctx)
	}
}

func (h *Hub) refreshLogged(ctx context.Context) {
	if err := h.Refresh(ctx); err != nil && ctx.Err() == nil {
		h.logger.Warn("queue refresh failed", "err", err)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cid, set := range h.subs {
		for sub := range set {
			sub.close()
		}
		delete(h.subs, cid)
	}
}
