package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/notify"
	"github.com/barbershop-booking/internal/pkg/id"
)

// Phase is where a watch session stands.
type Phase int

const (
	PhaseIdle       Phase = iota // no queue entry
	PhaseWatching                // entry present, no baseline yet
	PhaseArmed                   // baseline recorded, eligible to fire
	PhaseFiredAtOne              // first-in-line delivered; other rules stay eligible
)

func (p Phase) String() string {
	switch p {
	case PhaseWatching:
		return "watching"
	case PhaseArmed:
		return "armed"
	case PhaseFiredAtOne:
		return "fired-at-one"
	default:
		return "idle"
	}
}

// Delivery is the resolved outcome of one dispatched notification.
type Delivery struct {
	Decision Decision
	Entry    domain.QueueEntry
	Result   notify.Result
	Err      error
}

// Session watches one customer's queue entry and notifies through a sink.
// Observations are processed one at a time and in call order; deliveries run
// in the background so a slow sink never holds up the next observation.
type Session struct {
	customerID string
	sink       notify.Sink
	logger     *slog.Logger
	onResult   func(Delivery)

	mu       sync.Mutex
	phase    Phase
	previous *domain.QueueEntry
	state    domain.NotificationState
	epoch    uint64
	parent   context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	closed   bool

	inflight sync.WaitGroup
}

type SessionOption func(*Session)

// WithResultHandler registers fn for deliveries that resolve while their
// session epoch is still current. fn runs with the session locked and must
// not call back into the session.
func WithResultHandler(fn func(Delivery)) SessionOption {
	return func(s *Session) { s.onResult = fn }
}

func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession starts an idle session. Cancelling ctx has the same effect as
// Close on in-flight deliveries.
func NewSession(ctx context.Context, customerID string, sink notify.Sink, opts ...SessionOption) *Session {
	s := &Session{
		customerID: customerID,
		sink:       sink,
		logger:     slog.Default(),
		parent:     ctx,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("customer_id", customerID)
	s.ctx, s.cancel = context.WithCancel(ctx)
	return s
}

// Observe feeds the next snapshot. A nil entry ends the current watch: state
// is reset and anything still in flight is cancelled and ignored.
func (s *Session) Observe(entry *domain.QueueEntry) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Decision{}
	}
	if entry == nil {
		s.resetLocked()
		return Decision{}
	}
	if s.phase == PhaseIdle {
		s.phase = PhaseWatching
	}

	current := *entry
	d := Evaluate(s.previous, current, s.state)

	pos := current.Position
	s.previous = &current
	s.state.PreviousPosition = &pos

	if s.phase == PhaseWatching {
		s.phase = PhaseArmed
		return d
	}
	if !d.Fire {
		return d
	}
	if d.Reason == ReasonFirstInLine {
		s.state.HasFiredAtPositionOne = true
		s.phase = PhaseFiredAtOne
	}
	s.dispatchLocked(d, current)
	return d
}

func (s *Session) dispatchLocked(d Decision, e domain.QueueEntry) {
	msg := notify.Message{
		RecipientID:   s.customerID,
		Title:         d.Title,
		Body:          d.Body,
		Tag:           "queue-" + e.AppointmentID,
		CorrelationID: id.New(),
		Metadata: map[string]any{
			"reason":               string(d.Reason),
			"appointmentId":        e.AppointmentID,
			"position":             e.Position,
			"estimatedWaitMinutes": e.EstimatedWaitMinutes,
		},
	}
	ctx, epoch := s.ctx, s.epoch

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		res, err := s.sink.Deliver(ctx, msg)
		s.complete(epoch, Delivery{Decision: d, Entry: e, Result: res, Err: err})
	}()
}

func (s *Session) complete(epoch uint64, dl Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || epoch != s.epoch {
		s.logger.Debug("dropping delivery result from an ended watch", "reason", dl.Decision.Reason)
		return
	}

	switch {
	case dl.Err == nil:
		s.logger.Info("queue notification delivered",
			"reason", dl.Decision.Reason, "position", dl.Entry.Position, "channel", dl.Result.Channel)
	case errors.Is(dl.Err, domain.ErrPermissionDenied), errors.Is(dl.Err, domain.ErrNotOptedIn):
		s.logger.Info("queue notification not sent", "reason", dl.Decision.Reason, "err", dl.Err)
	case notify.Terminal(dl.Err):
		s.logger.Warn("recipient no longer reachable", "reason", dl.Decision.Reason, "err", dl.Err)
	default:
		s.logger.Warn("queue notification failed", "reason", dl.Decision.Reason, "err", dl.Err)
	}

	if s.onResult != nil {
		s.onResult(dl)
	}
}

func (s *Session) resetLocked() {
	s.cancel()
	s.epoch++
	s.ctx, s.cancel = context.WithCancel(s.parent)
	s.previous = nil
	s.state = domain.NotificationState{}
	s.phase = PhaseIdle
}

// Close tears the session down. Pending permission prompts are cancelled and
// late delivery results are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.phase = PhaseIdle
}

// Wait blocks until every dispatched delivery has resolved.
func (s *Session) Wait() {
	s.inflight.Wait()
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// State returns a copy of the notification state.
func (s *Session) State() domain.NotificationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.PreviousPosition != nil {
		p := *st.PreviousPosition
		st.PreviousPosition = &p
	}
	return st
}

func (s *Session) CustomerID() string { return s.customerID }
