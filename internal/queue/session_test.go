package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (s *recordingSink) Deliver(_ context.Context, msg notify.Message) (notify.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return notify.Result{Channel: notify.ChannelLocal, Outcome: notify.OutcomeDelivered, DeliveryID: msg.Tag}, nil
}

func (s *recordingSink) reasons() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Metadata["reason"].(string))
	}
	return out
}

// blockingSink holds every delivery until its context ends or release is closed.
type blockingSink struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (s *blockingSink) Deliver(ctx context.Context, msg notify.Message) (notify.Result, error) {
	s.started <- struct{}{}
	select {
	case <-ctx.Done():
		return notify.Result{Channel: notify.ChannelLocal, Outcome: notify.OutcomeCancelled}, ctx.Err()
	case <-s.release:
		return notify.Result{Channel: notify.ChannelLocal, Outcome: notify.OutcomeDelivered, DeliveryID: msg.Tag}, nil
	}
}

func observeAll(s *Session, entries ...*domain.QueueEntry) []Decision {
	out := make([]Decision, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.Observe(e))
	}
	return out
}

func TestSession_WalkToFront(t *testing.T) {
	sink := &recordingSink{}
	s := NewSession(context.Background(), "c1", sink)

	observeAll(s, entryPtr(5, 25), entryPtr(3, 15), entryPtr(2, 8), entryPtr(1, 0))
	s.Wait()

	assert.Equal(t, []string{"second-in-line", "first-in-line"}, sink.reasons())
	assert.Equal(t, PhaseFiredAtOne, s.Phase())
	assert.True(t, s.State().HasFiredAtPositionOne)
}

func TestSession_FiresOnceAtOne(t *testing.T) {
	sink := &recordingSink{}
	s := NewSession(context.Background(), "c1", sink)

	ds := observeAll(s, entryPtr(2, 8), entryPtr(1, 0), entryPtr(1, 0))
	s.Wait()

	assert.False(t, ds[0].Fire)
	assert.True(t, ds[1].Fire)
	assert.False(t, ds[2].Fire)
	assert.Equal(t, []string{"first-in-line"}, sink.reasons())
}

func TestSession_BaselineNeverFires(t *testing.T) {
	sink := &recordingSink{}
	s := NewSession(context.Background(), "c1", sink)

	d := s.Observe(entryPtr(1, 0))
	s.Wait()

	assert.False(t, d.Fire)
	assert.Empty(t, sink.reasons())
	assert.Equal(t, PhaseArmed, s.Phase())
	require.NotNil(t, s.State().PreviousPosition)
	assert.Equal(t, 1, *s.State().PreviousPosition)
}

func TestSession_PushedBackDoesNotFire(t *testing.T) {
	sink := &recordingSink{}
	s := NewSession(context.Background(), "c1", sink)

	observeAll(s, entryPtr(2, 8), entryPtr(3, 15), entryPtr(4, 20))
	s.Wait()

	assert.Empty(t, sink.reasons())
	assert.Equal(t, 4, *s.State().PreviousPosition)
}

func TestSession_MessageCarriesTagAndMetadata(t *testing.T) {
	sink := &recordingSink{}
	s := NewSession(context.Background(), "c1", sink)

	observeAll(s, entryPtr(3, 15), entryPtr(2, 8))
	s.Wait()

	require.Len(t, sink.msgs, 1)
	msg := sink.msgs[0]
	assert.Equal(t, "c1", msg.RecipientID)
	assert.Equal(t, "queue-a1", msg.Tag)
	assert.NotEmpty(t, msg.CorrelationID)
	assert.Equal(t, 2, msg.Metadata["position"])
	assert.Equal(t, 8, msg.Metadata["estimatedWaitMinutes"])
	assert.Contains(t, msg.Body, "8 minutes")
}

func TestSession_ResetIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	s := NewSession(context.Background(), "c1", sink)

	observeAll(s, entryPtr(2, 8), entryPtr(1, 0))
	s.Observe(nil)
	s.Observe(nil)
	s.Wait()

	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, domain.NotificationState{}, s.State())

	// A fresh watch starts with a new baseline and may fire at #1 again.
	observeAll(s, entryPtr(2, 8), entryPtr(1, 0))
	s.Wait()
	assert.Equal(t, []string{"first-in-line", "first-in-line"}, sink.reasons())
}

func TestSession_ResultFromEndedWatchIsDropped(t *testing.T) {
	sink := newBlockingSink()
	var results []Delivery
	var mu sync.Mutex
	s := NewSession(context.Background(), "c1", sink, WithResultHandler(func(d Delivery) {
		mu.Lock()
		results = append(results, d)
		mu.Unlock()
	}))

	observeAll(s, entryPtr(2, 8), entryPtr(1, 0))
	<-sink.started
	s.Observe(nil)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, results)
}

func TestSession_ResultReportedWhileCurrent(t *testing.T) {
	sink := newBlockingSink()
	got := make(chan Delivery, 1)
	s := NewSession(context.Background(), "c1", sink, WithResultHandler(func(d Delivery) { got <- d }))

	observeAll(s, entryPtr(3, 15), entryPtr(2, 8))
	<-sink.started
	close(sink.release)

	select {
	case d := <-got:
		require.NoError(t, d.Err)
		assert.Equal(t, ReasonSecondInLine, d.Decision.Reason)
		assert.Equal(t, notify.OutcomeDelivered, d.Result.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("delivery result not reported")
	}
}

func TestSession_CloseCancelsPendingPrompt(t *testing.T) {
	perms := &promptOnly{}
	display := &noopDisplay{}
	sink := notify.NewLocalSink(perms, display)
	s := NewSession(context.Background(), "c1", sink)

	observeAll(s, entryPtr(2, 8), entryPtr(1, 0))
	s.Close()
	s.Wait()

	assert.False(t, display.shown)
	assert.Equal(t, Decision{}, s.Observe(entryPtr(1, 0)))
}

func TestSession_SlowSinkDoesNotBlockObservations(t *testing.T) {
	sink := newBlockingSink()
	s := NewSession(context.Background(), "c1", sink)
	defer func() {
		s.Close()
		s.Wait()
	}()

	done := make(chan struct{})
	go func() {
		observeAll(s, entryPtr(3, 15), entryPtr(2, 8), entryPtr(1, 0), entryPtr(3, 15), entryPtr(2, 8))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observations blocked on delivery")
	}
	assert.Equal(t, 2, *s.State().PreviousPosition)
}

// promptOnly leaves the permission undecided and waits on the prompt forever.
type promptOnly struct{}

func (promptOnly) Permission() notify.Permission { return notify.PermissionDefault }

func (promptOnly) RequestPermission(ctx context.Context) (notify.Permission, error) {
	<-ctx.Done()
	return notify.PermissionDefault, ctx.Err()
}

type noopDisplay struct {
	mu    sync.Mutex
	shown bool
}

func (d *noopDisplay) Show(context.Context, notify.Notice) error {
	d.mu.Lock()
	d.shown = true
	d.mu.Unlock()
	return nil
}
